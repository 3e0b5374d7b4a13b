package nb

import (
	"context"
	"errors"
	"fmt"

	"github.com/karimra/srl-bfd-agent/bfd"
	"github.com/karimra/srl-bfd-agent/dnode"
)

const (
	pathBFD       = "/bfd"
	pathProfile   = "/bfd/profile"
	pathSingleHop = "/bfd/sessions/single-hop"
	pathMultiHop  = "/bfd/sessions/multi-hop"
)

var errUnknownInterface = errors.New("interface does not exist")

// staged is the resource a session create carries from prepare to abort.
type staged struct {
	s *bfd.Session
	// created is set when prepare allocated s
	created bool
	// takeover is set when s belongs to an entry the batch deletes
	takeover bool
	saved    bfd.ConfigState
	// the steps apply completed, undone by abort
	registered bool
	inserted   bool
	bound      bool
	reset      bool
}

// sessionLeaves are the leaves shared by both session lists.
var sessionLeaves = map[string]bfd.Field{
	"detection-multiplier":               bfd.FieldDetectMultiplier,
	"desired-transmission-interval":      bfd.FieldMinTx,
	"required-receive-interval":          bfd.FieldMinRx,
	"desired-echo-transmission-interval": bfd.FieldEchoInterval,
	"administrative-down":                bfd.FieldAdminDown,
	"passive-mode":                       bfd.FieldPassive,
	"echo-mode":                          bfd.FieldEcho,
}

func (c *Coordinator) registerSchema() {
	c.handle(pathBFD, callbacks{
		destroy: phases{
			EventApply: bfdDestroyApply,
			EventAbort: runUndo,
		},
	})
	c.registerProfileSchema()

	for _, list := range []string{pathSingleHop, pathMultiHop} {
		c.handle(list, callbacks{
			create: phases{
				EventValidate: sessionCreateValidate,
				EventPrepare:  sessionCreatePrepare,
				EventApply:    sessionCreateApply,
				EventAbort:    sessionCreateAbort,
			},
			destroy: phases{
				EventValidate: sessionDestroyValidate,
				EventApply:    sessionDestroyApply,
				EventAbort:    runUndo,
			},
		})
		for leaf, f := range sessionLeaves {
			c.handle(list+"/"+leaf, sessionFieldCallbacks(f))
		}
		c.handle(list+"/profile", callbacks{
			modify: phases{
				EventValidate: sessionLeafValidate,
				EventApply:    sessionProfileModifyApply,
				EventAbort:    runUndo,
			},
			destroy: phases{
				EventValidate: sessionLeafValidate,
				EventApply:    sessionProfileDestroyApply,
				EventAbort:    runUndo,
			},
		})
	}
	c.handle(pathMultiHop+"/minimum-ttl", sessionFieldCallbacks(bfd.FieldMinimumTTL))
	// single-hop source-addr is informational, the key is fixed at create
	c.handle(pathSingleHop+"/source-addr", callbacks{})
}

func sessionFieldCallbacks(f bfd.Field) callbacks {
	return callbacks{
		modify: phases{
			EventValidate: fieldValidate(f, sessionLeafValidate),
			EventApply:    sessionFieldModifyApply(f),
			EventAbort:    runUndo,
		},
		destroy: phases{
			EventValidate: sessionLeafValidate,
			EventApply:    sessionFieldDestroyApply(f),
			EventAbort:    runUndo,
		},
	}
}

// sessionKey builds the key of a session list entry.
func sessionKey(n *dnode.Node) (bfd.Key, error) {
	dest, err := n.String("./dest-addr")
	if err != nil {
		return bfd.Key{}, err
	}
	return bfd.BuildKey(
		n.Name() == "multi-hop",
		dest,
		n.StringOr("./source-addr", ""),
		n.StringOr("./interface", bfd.WildcardInterface),
		n.StringOr("./vrf", bfd.DefaultVRF),
	)
}

// lookupSession resolves the session configured by entry, through its
// binding first.
func (c *Coordinator) lookupSession(entry *dnode.Node) (*bfd.Session, error) {
	if s, ok := c.bindings[entry.Path()].(*bfd.Session); ok {
		return s, nil
	}
	k, err := sessionKey(entry)
	if err != nil {
		return nil, err
	}
	s, ok := c.reg.Lookup(k)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", k, bfd.ErrSessionNotFound)
	}
	return s, nil
}

func sessionCreateValidate(_ context.Context, c *Coordinator, ch *change) error {
	n := ch.node
	k, err := sessionKey(n)
	if err != nil {
		return validationErr(err)
	}
	ifname := n.StringOr("./interface", bfd.WildcardInterface)
	if err := bfd.ValidateLinkLocal(k.Peer, ifname); err != nil {
		return validationErr(err)
	}

	match := map[string]string{
		"dest-addr": n.StringOr("./dest-addr", ""),
		"vrf":       n.StringOr("./vrf", bfd.DefaultVRF),
	}
	if k.MultiHop {
		match["source-addr"] = n.StringOr("./source-addr", "")
	}
	var ifnames []string
	if sessions := n.Parent(); sessions != nil {
		sessions.Iterate(n.Name(), match, func(e *dnode.Node) bool {
			ifnames = append(ifnames, e.StringOr("./interface", bfd.WildcardInterface))
			return true
		})
	}
	if err := bfd.ValidateInterfaceExclusive(ifnames); err != nil {
		return validationErr(err)
	}

	if c.ifaceKnown != nil && k.Interface != "" && !c.ifaceKnown(k.Interface) {
		return validationErr(fmt.Errorf("%q: %w", k.Interface, errUnknownInterface))
	}
	return nil
}

// sessionCreatePrepare stages the session. The registry is left untouched
// apart from the reference taken on a session another producer owns, or on
// one whose entry is deleted in the same batch under a different spelling.
func sessionCreatePrepare(_ context.Context, c *Coordinator, ch *change) error {
	k, err := sessionKey(ch.node)
	if err != nil {
		return validationErr(err)
	}
	if s, ok := c.reg.Lookup(k); ok {
		if s.Has(bfd.FlagConfig) {
			if taken, ok := c.destroying[s]; ok && !taken {
				c.destroying[s] = true
				c.reg.Retain(s)
				ch.resource = &staged{s: s, takeover: true}
				return nil
			}
			return inconsistencyErr(fmt.Errorf("session %s: %w", k, bfd.ErrSessionExists))
		}
		s.SetFlag(bfd.FlagConfig)
		c.reg.Retain(s)
		ch.resource = &staged{s: s}
		return nil
	}
	s := bfd.NewSession(k)
	s.SetFlag(bfd.FlagConfig)
	c.reg.Retain(s)
	ch.resource = &staged{s: s, created: true}
	return nil
}

func sessionCreateApply(ctx context.Context, c *Coordinator, ch *change) error {
	st := ch.resource.(*staged)
	s := st.s
	if st.takeover {
		// the new entry starts from defaults, its leaves follow in the batch
		st.saved = s.SaveConfig()
		s.ResetConfig()
		if err := s.Reapply(ctx, c.engine); err != nil {
			s.RestoreConfig(st.saved)
			return resourceErr(fmt.Errorf("session %s: %w", s.Key(), err))
		}
		st.reset = true
	}
	if s.Handle() == 0 {
		h, err := c.engine.Register(ctx, s)
		if err != nil {
			return resourceErr(fmt.Errorf("register session %s: %w", s.Key(), err))
		}
		s.SetHandle(h)
		st.registered = true
	}
	cur, ok := c.reg.Lookup(s.Key())
	switch {
	case !ok:
		if err := c.reg.Insert(s); err != nil {
			return resourceErr(err)
		}
		st.inserted = true
	case cur != s:
		// two entries of the batch normalize to the same key
		return inconsistencyErr(fmt.Errorf("session %s: %w", s.Key(), bfd.ErrSessionExists))
	}
	c.bind(ch.node, s)
	st.bound = true
	c.logger.Info("session configured", "session", s.Key(), "refcount", s.Refcount(), "handle", s.Handle())
	return nil
}

// sessionCreateAbort frees a session this change allocated and gives back
// the reference taken on a shared one. Running it twice is harmless.
func sessionCreateAbort(ctx context.Context, c *Coordinator, ch *change) error {
	st, ok := ch.resource.(*staged)
	if !ok {
		return nil
	}
	ch.resource = nil
	s := st.s
	if st.bound {
		c.unbind(ch.node)
	}
	if st.takeover {
		if st.reset {
			s.RestoreConfig(st.saved)
			_ = s.Reapply(ctx, c.engine)
		}
		c.reg.Release(s)
		return nil
	}
	if st.registered {
		c.engine.Release(ctx, s)
		s.SetHandle(0)
	}
	if st.created || s.Refcount() <= 1 {
		if st.inserted {
			_, _ = c.reg.Remove(s.Key())
		}
		s.ClearFlag(bfd.FlagConfig)
		return nil
	}
	s.ClearFlag(bfd.FlagConfig)
	c.reg.Release(s)
	return nil
}

func sessionDestroyValidate(_ context.Context, c *Coordinator, ch *change) error {
	s, err := c.lookupSession(ch.node)
	if err != nil {
		return inconsistencyErr(err)
	}
	if s.Has(bfd.FlagConfig) {
		c.destroying[s] = false
	}
	return nil
}

// sessionDestroyApply detaches the entry from its session. The reference
// is dropped, and the engine handle freed, only once the batch commits.
func sessionDestroyApply(_ context.Context, c *Coordinator, ch *change) error {
	s, bound := c.unbind(ch.node).(*bfd.Session)
	if !bound {
		var err error
		if s, err = c.lookupSession(ch.node); err != nil {
			return nil
		}
	}
	if !s.Has(bfd.FlagConfig) {
		return nil
	}
	// a create of the batch took the session over and keeps the flag
	taken := c.destroying[s]
	if !taken {
		s.ClearFlag(bfd.FlagConfig)
	}
	ch.undo = func(context.Context) {
		if !taken {
			s.SetFlag(bfd.FlagConfig)
		}
		if bound {
			c.bind(ch.node, s)
		}
	}
	ch.commit = func(ctx context.Context) {
		c.release(ctx, s)
	}
	return nil
}

// bfdDestroyApply drops every session the configuration owns when the
// whole /bfd container goes away.
func bfdDestroyApply(_ context.Context, c *Coordinator, ch *change) error {
	var owned []*bfd.Session
	for _, s := range c.reg.Sessions() {
		if !s.Has(bfd.FlagConfig) {
			continue
		}
		s.ClearFlag(bfd.FlagConfig)
		owned = append(owned, s)
	}
	unbound := make(map[string]any)
	for path, obj := range c.bindings {
		if _, ok := obj.(*bfd.Session); ok {
			unbound[path] = obj
			delete(c.bindings, path)
		}
	}
	ch.undo = func(context.Context) {
		for _, s := range owned {
			s.SetFlag(bfd.FlagConfig)
		}
		for path, obj := range unbound {
			c.bindings[path] = obj
		}
	}
	ch.commit = func(ctx context.Context) {
		for _, s := range owned {
			c.release(ctx, s)
		}
	}
	return nil
}

// sessionLeafValidate checks that the session a leaf belongs to is known,
// either committed or created in the same batch.
func sessionLeafValidate(_ context.Context, c *Coordinator, ch *change) error {
	entry := ch.node.Parent()
	if entry == nil {
		return inconsistencyErr(bfd.ErrSessionNotFound)
	}
	if _, err := sessionKey(entry); err != nil {
		return validationErr(err)
	}
	return nil
}

func fieldValidate(f bfd.Field, next phaseFunc) phaseFunc {
	check := bfd.Validator(f)
	return func(ctx context.Context, c *Coordinator, ch *change) error {
		v, err := leafValue(ch.node, f)
		if err != nil {
			return validationErr(err)
		}
		if check != nil {
			if err := check(v); err != nil {
				return validationErr(fmt.Errorf("%s: %w", f, err))
			}
		}
		if next != nil {
			return next(ctx, c, ch)
		}
		return nil
	}
}

// leafValue reads a field leaf, booleans as 0 or 1.
func leafValue(n *dnode.Node, f bfd.Field) (uint32, error) {
	switch f {
	case bfd.FieldAdminDown, bfd.FieldPassive, bfd.FieldEcho:
		b, err := n.Bool(".")
		if err != nil {
			return 0, err
		}
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return n.Uint32(".")
}

func sessionFieldModifyApply(f bfd.Field) phaseFunc {
	return func(ctx context.Context, c *Coordinator, ch *change) error {
		s, err := c.lookupSession(ch.node.Parent())
		if err != nil {
			return inconsistencyErr(err)
		}
		v, err := leafValue(ch.node, f)
		if err != nil {
			return resourceErr(err)
		}
		prev, wasSet := s.Config(f)
		if !s.SetField(f, v) {
			return nil
		}
		undo := func(ctx context.Context) {
			if wasSet {
				s.SetField(f, prev)
			} else {
				s.ClearField(f)
			}
			_ = s.Reapply(ctx, c.engine)
		}
		if err := s.Reapply(ctx, c.engine); err != nil {
			undo(ctx)
			return resourceErr(err)
		}
		ch.undo = undo
		return nil
	}
}

func sessionFieldDestroyApply(f bfd.Field) phaseFunc {
	return func(ctx context.Context, c *Coordinator, ch *change) error {
		s, err := c.lookupSession(ch.node.Parent())
		if err != nil {
			// the session went away with its entry
			return nil
		}
		prev, wasSet := s.Config(f)
		if !wasSet || !s.ClearField(f) {
			return nil
		}
		undo := func(ctx context.Context) {
			s.SetField(f, prev)
			_ = s.Reapply(ctx, c.engine)
		}
		if err := s.Reapply(ctx, c.engine); err != nil {
			undo(ctx)
			return resourceErr(err)
		}
		ch.undo = undo
		return nil
	}
}

func sessionProfileModifyApply(ctx context.Context, c *Coordinator, ch *change) error {
	s, err := c.lookupSession(ch.node.Parent())
	if err != nil {
		return inconsistencyErr(err)
	}
	name := ch.node.Value()
	prev := s.ProfileName()
	if prev == name {
		return nil
	}
	if err := c.profiles.Attach(ctx, name, s); err != nil {
		return resourceErr(err)
	}
	ch.undo = func(ctx context.Context) {
		_ = c.profiles.Attach(ctx, prev, s)
	}
	return nil
}

func sessionProfileDestroyApply(ctx context.Context, c *Coordinator, ch *change) error {
	s, err := c.lookupSession(ch.node.Parent())
	if err != nil {
		return nil
	}
	prev := s.ProfileName()
	if prev == "" {
		return nil
	}
	if err := c.profiles.Detach(ctx, s); err != nil {
		return resourceErr(err)
	}
	ch.undo = func(ctx context.Context) {
		_ = c.profiles.Attach(ctx, prev, s)
	}
	return nil
}

// runUndo reverts an applied change that recorded how to.
func runUndo(ctx context.Context, _ *Coordinator, ch *change) error {
	if ch.undo != nil {
		ch.undo(ctx)
		ch.undo = nil
	}
	return nil
}
