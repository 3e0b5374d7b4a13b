package bfd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimra/srl-bfd-agent/bfd"
)

func TestBuildKey(t *testing.T) {
	k, err := bfd.BuildKey(false, "10.0.0.1", "", "*", "default")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", k.Peer.String())
	assert.False(t, k.Local.IsValid())
	assert.Empty(t, k.Interface)
	assert.Equal(t, bfd.FamilyIPv4, k.Family)
	assert.Equal(t, "shop peer=10.0.0.1 vrf=default", k.String())

	k, err = bfd.BuildKey(true, "2001:db8::1", "2001:db8::2", "ethernet-1/1.0", "red")
	require.NoError(t, err)
	assert.Equal(t, bfd.FamilyIPv6, k.Family)
	assert.True(t, k.MultiHop)
	assert.Equal(t, "2001:db8::2", k.Local.String())
	assert.Equal(t, "ethernet-1/1.0", k.Interface)

	mapped, err := bfd.BuildKey(false, "::ffff:10.0.0.1", "", "*", "default")
	require.NoError(t, err)
	plain, err := bfd.BuildKey(false, "10.0.0.1", "", "*", "default")
	require.NoError(t, err)
	assert.Equal(t, plain, mapped)
}

func TestBuildKeyErrors(t *testing.T) {
	_, err := bfd.BuildKey(false, "not-an-ip", "", "*", "default")
	assert.ErrorContains(t, err, "dest-addr")
	_, err = bfd.BuildKey(true, "10.0.0.1", "bogus", "*", "default")
	assert.ErrorContains(t, err, "source-addr")
}

func TestBuildKeyDistinct(t *testing.T) {
	type in struct {
		mhop               bool
		dest, src, ifn, vr string
	}
	inputs := []in{
		{false, "10.0.0.1", "", "*", "default"},
		{true, "10.0.0.1", "", "*", "default"},
		{false, "10.0.0.1", "10.0.0.2", "*", "default"},
		{false, "10.0.0.1", "", "eth0", "default"},
		{false, "10.0.0.1", "", "eth1", "default"},
		{false, "10.0.0.1", "", "*", "red"},
		{false, "10.0.0.2", "", "*", "default"},
		{false, "2001:db8::1", "", "*", "default"},
	}
	seen := make(map[bfd.Key]in)
	for _, i := range inputs {
		k, err := bfd.BuildKey(i.mhop, i.dest, i.src, i.ifn, i.vr)
		require.NoError(t, err)
		again, err := bfd.BuildKey(i.mhop, i.dest, i.src, i.ifn, i.vr)
		require.NoError(t, err)
		assert.Equal(t, k, again, "deterministic")
		prev, dup := seen[k]
		assert.False(t, dup, "%+v collides with %+v", i, prev)
		seen[k] = i
	}
}
