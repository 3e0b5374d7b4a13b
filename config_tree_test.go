package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimra/srl-bfd-agent/dnode"
)

func TestSplitJsPath(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{".bfd", []string{"bfd"}},
		{".bfd.profile{.name==\"fast\"}", []string{"bfd", "profile"}},
		{".bfd.sessions.single_hop{.dest_addr==\"10.0.0.1\"&&.interface==\"ethernet-1/1.0\"}", []string{"bfd", "sessions", "single-hop"}},
		{".bfd.sessions.multi_hop", []string{"bfd", "sessions", "multi-hop"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitJsPath(tt.in))
		})
	}
}

func TestApplyConfigSingleHop(t *testing.T) {
	tree := dnode.NewRoot()
	keys := []string{"10.0.0.1", "ethernet-1/1.0", "default"}
	err := applyConfig(tree, configSet, ".bfd.sessions.single_hop", keys,
		`{"single_hop":{"dest_addr":{"value":"10.0.0.9"},"detection_multiplier":{"value":5},"passive_mode":{"value":true}}}`)
	require.NoError(t, err)

	entry := tree.Find("bfd/sessions/single-hop")
	require.NotNil(t, entry)
	assert.Equal(t, "/bfd/sessions/single-hop[dest-addr='10.0.0.1'][interface='ethernet-1/1.0'][vrf='default']", entry.Path())
	v, err := entry.Uint32("detection-multiplier")
	require.NoError(t, err)
	assert.EqualValues(t, 5, v)
	b, err := entry.Bool("passive-mode")
	require.NoError(t, err)
	assert.True(t, b)
	// keys are not overwritten by the data
	assert.Equal(t, "10.0.0.1", entry.StringOr("dest-addr", ""))

	// a later notification replaces the leaves
	err = applyConfig(tree, configSet, ".bfd.sessions.single_hop", keys,
		`{"single_hop":{"required_receive_interval":{"value":"50000"}}}`)
	require.NoError(t, err)
	assert.False(t, entry.Exists("detection-multiplier"))
	assert.Equal(t, "50000", entry.StringOr("required-receive-interval", ""))

	require.NoError(t, applyConfig(tree, configDelete, ".bfd.sessions.single_hop", keys, ""))
	assert.Nil(t, tree.Find("bfd/sessions/single-hop"))
}

func TestApplyConfigProfile(t *testing.T) {
	tree := dnode.NewRoot()
	require.NoError(t, applyConfig(tree, configSet, ".bfd.profile", []string{"fast"},
		`{"desired_transmission_interval":{"value":20000},"timers":{"minimum_ttl":{"value":200}}}`))
	p := tree.Find("bfd/profile")
	require.NotNil(t, p)
	assert.Equal(t, "fast", p.StringOr("name", ""))
	assert.Equal(t, "20000", p.StringOr("desired-transmission-interval", ""))
	assert.Equal(t, "200", p.StringOr("timers/minimum-ttl", ""))

	// deleting something that is not there is not an error
	require.NoError(t, applyConfig(tree, configDelete, ".bfd.profile", []string{"slow"}, ""))
	assert.NotNil(t, tree.Find("bfd/profile"))
}

func TestApplyConfigErrors(t *testing.T) {
	tree := dnode.NewRoot()
	err := applyConfig(tree, configSet, ".bfd.sessions.multi_hop", []string{"10.0.0.1"}, "")
	assert.ErrorIs(t, err, errKeyCount)

	err = applyConfig(tree, configSet, ".bfd.profile", []string{"fast"}, "{not json")
	assert.ErrorIs(t, err, errInvalidJSON)

	err = applyConfig(tree, configSet, ".bfd", []string{"extra"}, "")
	assert.ErrorIs(t, err, errKeyCount)

	err = applyConfig(tree, configSet, "", nil, "")
	assert.ErrorIs(t, err, errUnknownPath)
}
