package nb

import (
	"context"
	"fmt"

	"github.com/karimra/srl-bfd-agent/bfd"
)

// Acquire records that a producer other than the configuration, such as a
// routing protocol, needs the session identified by k. The session is
// created and registered with the engine when nobody held it yet. Acquiring
// a session twice is a no-op.
func (c *Coordinator) Acquire(ctx context.Context, k bfd.Key) (*bfd.Session, error) {
	s, ok := c.reg.Lookup(k)
	if ok {
		if !s.Has(bfd.FlagProtocol) {
			s.SetFlag(bfd.FlagProtocol)
			c.reg.Retain(s)
		}
		return s, nil
	}
	s = bfd.NewSession(k)
	h, err := c.engine.Register(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("register session %s: %w", k, err)
	}
	s.SetHandle(h)
	s.SetFlag(bfd.FlagProtocol)
	c.reg.Retain(s)
	if err := c.reg.Insert(s); err != nil {
		c.engine.Release(ctx, s)
		return nil, err
	}
	c.logger.Info("session requested", "session", k, "handle", h)
	c.metrics.sessions(c.reg.Len())
	return s, nil
}

// Release gives back the reference taken by Acquire. Releasing a session
// the producer does not hold is a no-op.
func (c *Coordinator) Release(ctx context.Context, k bfd.Key) {
	s, ok := c.reg.Lookup(k)
	if !ok || !s.Has(bfd.FlagProtocol) {
		return
	}
	s.ClearFlag(bfd.FlagProtocol)
	c.release(ctx, s)
	c.metrics.sessions(c.reg.Len())
}
