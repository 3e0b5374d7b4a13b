package bfd_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimra/srl-bfd-agent/bfd"
	"github.com/karimra/srl-bfd-agent/bfd/bfdtest"
)

func registered(t *testing.T, ctx context.Context, reg *bfd.Registry, e bfd.Engine, dest string) *bfd.Session {
	t.Helper()
	s := bfd.NewSession(mustKey(t, dest))
	h, err := e.Register(ctx, s)
	require.NoError(t, err)
	s.SetHandle(h)
	reg.Retain(s)
	require.NoError(t, reg.Insert(s))
	return s
}

func TestProfileCreateDestroy(t *testing.T) {
	ctx := context.Background()
	ps := bfd.NewProfileStore(bfd.NewRegistry(), bfdtest.New())

	p, err := ps.Create(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, "fast", p.Name())
	assert.Equal(t, bfd.DefaultParams(), p.Params())

	_, err = ps.Create(ctx, "fast")
	assert.ErrorIs(t, err, bfd.ErrProfileExists)

	require.NoError(t, ps.Destroy(ctx, "fast"))
	assert.ErrorIs(t, ps.Destroy(ctx, "fast"), bfd.ErrProfileNotFound)
	assert.Equal(t, 0, ps.Len())
}

func TestProfileUpdatePropagates(t *testing.T) {
	ctx := context.Background()
	reg := bfd.NewRegistry()
	e := bfdtest.New()
	ps := bfd.NewProfileStore(reg, e)

	_, err := ps.Create(ctx, "P")
	require.NoError(t, err)
	require.NoError(t, ps.Update(ctx, "P", func(p *bfd.Params) { p.MinTx = 20000 }))

	s := registered(t, ctx, reg, e, "10.0.0.1")
	other := registered(t, ctx, reg, e, "10.0.0.2")
	require.NoError(t, ps.Attach(ctx, "P", s))
	assert.EqualValues(t, 20000, s.Applied().MinTx)

	require.NoError(t, ps.Update(ctx, "P", func(p *bfd.Params) { p.MinTx = 30000 }))
	assert.EqualValues(t, 30000, s.Applied().MinTx)
	got, ok := e.Params(s.Handle())
	require.True(t, ok)
	assert.EqualValues(t, 30000, got.MinTx)
	assert.EqualValues(t, bfd.DefaultMinTx, other.Applied().MinTx)
}

func TestProfileExplicitFieldWins(t *testing.T) {
	ctx := context.Background()
	reg := bfd.NewRegistry()
	e := bfdtest.New()
	ps := bfd.NewProfileStore(reg, e)
	_, err := ps.Create(ctx, "P")
	require.NoError(t, err)
	require.NoError(t, ps.Update(ctx, "P", func(p *bfd.Params) {
		p.MinTx = 20000
		p.MinRx = 20000
	}))

	s := registered(t, ctx, reg, e, "10.0.0.1")
	s.SetField(bfd.FieldMinRx, 50000)
	require.NoError(t, ps.Attach(ctx, "P", s))

	eff := s.Effective()
	assert.EqualValues(t, 20000, eff.MinTx)
	assert.EqualValues(t, 50000, eff.MinRx)
}

func TestProfileDestroyRevertsSessions(t *testing.T) {
	ctx := context.Background()
	reg := bfd.NewRegistry()
	e := bfdtest.New()
	ps := bfd.NewProfileStore(reg, e)
	_, err := ps.Create(ctx, "P")
	require.NoError(t, err)
	require.NoError(t, ps.Update(ctx, "P", func(p *bfd.Params) { p.EchoInterval = 70000 }))

	s := registered(t, ctx, reg, e, "10.0.0.1")
	require.NoError(t, ps.Attach(ctx, "P", s))
	assert.EqualValues(t, 70000, s.Applied().EchoInterval)

	require.NoError(t, ps.Destroy(ctx, "P"))
	assert.EqualValues(t, bfd.DefaultEchoInterval, s.Applied().EchoInterval)
	assert.Equal(t, "P", s.ProfileName())

	// re-creating the profile binds it again
	_, err = ps.Create(ctx, "P")
	require.NoError(t, err)
	require.NoError(t, ps.Update(ctx, "P", func(p *bfd.Params) { p.EchoInterval = 80000 }))
	assert.EqualValues(t, 80000, s.Applied().EchoInterval)
}

func TestProfileAttachBeforeCreate(t *testing.T) {
	ctx := context.Background()
	reg := bfd.NewRegistry()
	e := bfdtest.New()
	ps := bfd.NewProfileStore(reg, e)

	s := registered(t, ctx, reg, e, "10.0.0.1")
	require.NoError(t, ps.Attach(ctx, "later", s))
	assert.Equal(t, bfd.DefaultParams(), s.Applied())

	_, err := ps.Create(ctx, "later")
	require.NoError(t, err)
	require.NoError(t, ps.Update(ctx, "later", func(p *bfd.Params) { p.Passive = true }))
	assert.True(t, s.Applied().Passive)

	require.NoError(t, ps.Detach(ctx, s))
	assert.False(t, s.Applied().Passive)
}

func TestProfileUpdateRollback(t *testing.T) {
	ctx := context.Background()
	reg := bfd.NewRegistry()
	e := bfdtest.New()
	ps := bfd.NewProfileStore(reg, e)
	_, err := ps.Create(ctx, "P")
	require.NoError(t, err)
	s := registered(t, ctx, reg, e, "10.0.0.1")
	require.NoError(t, ps.Attach(ctx, "P", s))

	e.FailApply = true
	err = ps.Update(ctx, "P", func(p *bfd.Params) { p.MinTx = 40000 })
	require.Error(t, err)

	p, ok := ps.Lookup("P")
	require.True(t, ok)
	assert.EqualValues(t, bfd.DefaultMinTx, p.Params().MinTx)
	assert.EqualValues(t, bfd.DefaultMinTx, s.Applied().MinTx)
}

func TestProfileRestore(t *testing.T) {
	ctx := context.Background()
	reg := bfd.NewRegistry()
	e := bfdtest.New()
	ps := bfd.NewProfileStore(reg, e)
	p, err := ps.Create(ctx, "P")
	require.NoError(t, err)
	require.NoError(t, ps.Update(ctx, "P", func(pp *bfd.Params) { pp.MinTx = 20000 }))
	s := registered(t, ctx, reg, e, "10.0.0.1")
	require.NoError(t, ps.Attach(ctx, "P", s))

	require.NoError(t, ps.Destroy(ctx, "P"))
	assert.EqualValues(t, bfd.DefaultMinTx, s.Applied().MinTx)

	require.NoError(t, ps.Restore(ctx, p))
	got, ok := ps.Lookup("P")
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.EqualValues(t, 20000, s.Applied().MinTx)
	assert.ErrorIs(t, ps.Restore(ctx, p), bfd.ErrProfileExists)

	// nothing is kept when a session cannot follow
	require.NoError(t, ps.Destroy(ctx, "P"))
	e.FailApply = true
	assert.Error(t, ps.Restore(ctx, p))
	assert.Equal(t, 0, ps.Len())
	assert.EqualValues(t, bfd.DefaultMinTx, s.Applied().MinTx)
}

func TestSessionConfigSnapshot(t *testing.T) {
	ctx := context.Background()
	reg := bfd.NewRegistry()
	e := bfdtest.New()
	ps := bfd.NewProfileStore(reg, e)
	_, err := ps.Create(ctx, "P")
	require.NoError(t, err)
	require.NoError(t, ps.Update(ctx, "P", func(pp *bfd.Params) { pp.MinRx = 40000 }))
	s := registered(t, ctx, reg, e, "10.0.0.1")
	require.NoError(t, ps.Attach(ctx, "P", s))
	s.SetField(bfd.FieldDetectMultiplier, 7)
	require.NoError(t, s.Reapply(ctx, e))

	saved := s.SaveConfig()
	s.ResetConfig()
	require.NoError(t, s.Reapply(ctx, e))
	assert.Equal(t, bfd.DefaultParams(), s.Applied())
	assert.Empty(t, s.ProfileName())

	s.RestoreConfig(saved)
	require.NoError(t, s.Reapply(ctx, e))
	assert.Equal(t, "P", s.ProfileName())
	assert.EqualValues(t, 7, s.Applied().DetectMultiplier)
	assert.EqualValues(t, 40000, s.Applied().MinRx)
}
