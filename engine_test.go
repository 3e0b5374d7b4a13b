package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/karimra/srl-bfd-agent/bfd"
)

// fakePublisher keeps the published state in memory.
type fakePublisher struct {
	m     sync.Mutex
	state map[string]string
	fail  error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{state: make(map[string]string)}
}

func (p *fakePublisher) TelemetryAddOrUpdate(_ context.Context, jsPath, jsData string) error {
	p.m.Lock()
	defer p.m.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.state[jsPath] = jsData
	return nil
}

func (p *fakePublisher) TelemetryDelete(_ context.Context, jsPath string) error {
	p.m.Lock()
	defer p.m.Unlock()
	delete(p.state, jsPath)
	return nil
}

func (p *fakePublisher) get(jsPath string) (gjson.Result, bool) {
	p.m.Lock()
	defer p.m.Unlock()
	js, ok := p.state[jsPath]
	return gjson.Parse(js), ok
}

func (p *fakePublisher) len() int {
	p.m.Lock()
	defer p.m.Unlock()
	return len(p.state)
}

func TestEngineLifecycle(t *testing.T) {
	ctx := context.Background()
	pub := newFakePublisher()
	e := NewEngine(pub, ".bfd_agent", nil)

	k, err := bfd.BuildKey(true, "2001:db8::2", "2001:db8::1", bfd.WildcardInterface, "red")
	require.NoError(t, err)
	s := bfd.NewSession(k)
	s.SetField(bfd.FieldMinTx, 20000)

	h, err := e.Register(ctx, s)
	require.NoError(t, err)
	assert.EqualValues(t, 1, h)
	s.SetHandle(h)

	path := `.bfd_agent.session{.local_discriminator==1}`
	js, ok := pub.get(path)
	require.True(t, ok)
	assert.EqualValues(t, 1, js.Get("local_discriminator").Uint())
	assert.Equal(t, "2001:db8::2", js.Get("peer").String())
	assert.Equal(t, "2001:db8::1", js.Get("local").String())
	assert.Equal(t, "red", js.Get("vrf").String())
	assert.Equal(t, "ipv6", js.Get("family").String())
	assert.True(t, js.Get("multi_hop").Bool())
	assert.EqualValues(t, 20000, js.Get("desired_transmission_interval").Uint())
	assert.EqualValues(t, bfd.DefaultMinimumTTL, js.Get("minimum_ttl").Uint())
	assert.Equal(t, "enable", js.Get("admin_state").String())
	assert.False(t, js.Get("interface").Exists())

	h2, err := e.Register(ctx, bfd.NewSession(k))
	require.NoError(t, err)
	assert.EqualValues(t, 2, h2)

	e.Release(ctx, s)
	_, ok = pub.get(path)
	assert.False(t, ok)
	assert.Equal(t, 1, pub.len())
}

func TestEngineSingleHopState(t *testing.T) {
	k, err := bfd.BuildKey(false, "10.0.0.2", "", "ethernet-1/1.0", bfd.DefaultVRF)
	require.NoError(t, err)
	s := bfd.NewSession(k)
	p := bfd.DefaultParams()
	p.AdminDown = true

	js, err := sessionState(7, s, p)
	require.NoError(t, err)
	res := gjson.Parse(js)
	assert.Equal(t, "disable", res.Get("admin_state").String())
	assert.Equal(t, "ethernet-1/1.0", res.Get("interface").String())
	assert.Equal(t, "ipv4", res.Get("family").String())
	assert.False(t, res.Get("local").Exists())
	assert.False(t, res.Get("minimum_ttl").Exists())
	assert.EqualValues(t, bfd.DefaultDetectMultiplier, res.Get("detection_multiplier").Uint())
}

func TestEngineRegisterPublishFailure(t *testing.T) {
	pub := newFakePublisher()
	pub.fail = errors.New("telemetry unavailable")
	e := NewEngine(pub, ".bfd_agent", nil)
	k, err := bfd.BuildKey(false, "10.0.0.2", "", bfd.WildcardInterface, bfd.DefaultVRF)
	require.NoError(t, err)

	h, err := e.Register(context.Background(), bfd.NewSession(k))
	assert.Error(t, err)
	assert.Zero(t, h)
}
