// Package nb runs configuration transactions against the BFD sessions and
// profiles. Every change goes through validate, prepare and apply, and is
// aborted when the batch it belongs to fails.
package nb

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/karimra/srl-bfd-agent/bfd"
	"github.com/karimra/srl-bfd-agent/dnode"
)

type Event uint8

const (
	EventValidate Event = iota
	EventPrepare
	EventApply
	EventAbort
	eventCount
)

func (e Event) String() string {
	switch e {
	case EventValidate:
		return "validate"
	case EventPrepare:
		return "prepare"
	case EventApply:
		return "apply"
	case EventAbort:
		return "abort"
	}
	return "unknown"
}

// change is one pending change and its scratch state.
type change struct {
	op   dnode.Op
	node *dnode.Node
	// resource carries the object staged by prepare or apply
	resource any
	// undo reverts an applied change when the batch is aborted
	undo func(context.Context)
	// commit runs once every change of the batch is applied and cannot
	// fail
	commit func(context.Context)
}

type phaseFunc func(ctx context.Context, c *Coordinator, ch *change) error

// phases is indexed by Event, a nil entry is a no-op.
type phases [eventCount]phaseFunc

type callbacks struct {
	create  phases
	modify  phases
	destroy phases
}

func (cb *callbacks) table(op dnode.Op) *phases {
	switch op {
	case dnode.OpCreate:
		return &cb.create
	case dnode.OpModify:
		return &cb.modify
	}
	return &cb.destroy
}

type Coordinator struct {
	engine   bfd.Engine
	reg      *bfd.Registry
	profiles *bfd.ProfileStore
	// bindings maps node paths to the *bfd.Session or *bfd.Profile they
	// configure
	bindings map[string]any
	schema   map[string]*callbacks
	// destroying holds the config sessions whose entries the current
	// batch deletes
	destroying map[*bfd.Session]bool

	logger     *slog.Logger
	metrics    *Metrics
	ifaceKnown func(string) bool
}

type Option func(*Coordinator)

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithInterfaceChecker rejects sessions on interfaces for which known
// returns false.
func WithInterfaceChecker(known func(ifname string) bool) Option {
	return func(c *Coordinator) {
		c.ifaceKnown = known
	}
}

func New(e bfd.Engine, opts ...Option) *Coordinator {
	reg := bfd.NewRegistry()
	c := &Coordinator{
		engine:   e,
		reg:      reg,
		profiles: bfd.NewProfileStore(reg, e),
		bindings: make(map[string]any),
		schema:   make(map[string]*callbacks),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registerSchema()
	return c
}

func (c *Coordinator) Registry() *bfd.Registry      { return c.reg }
func (c *Coordinator) Profiles() *bfd.ProfileStore { return c.profiles }

func (c *Coordinator) handle(path string, cb callbacks) {
	c.schema[path] = &cb
}

// Result summarizes a committed transaction.
type Result struct {
	ID      string
	Changes []dnode.Change
}

// Commit applies the difference between the running and the candidate
// trees. Nothing is kept when it returns an error.
func (c *Coordinator) Commit(ctx context.Context, running, candidate *dnode.Node) (*Result, error) {
	return c.Process(ctx, dnode.Diff(running, candidate))
}

// Process runs a batch of changes through all phases. Every change is
// validated before any is prepared, and prepared before any is applied. If
// a prepare or apply fails the batch is aborted in reverse order. Work that
// cannot be undone, such as freeing engine handles, is deferred to commit
// hooks that run after the last apply.
func (c *Coordinator) Process(ctx context.Context, diff []dnode.Change) (*Result, error) {
	start := time.Now()
	res := &Result{ID: uuid.NewString(), Changes: diff}
	logger := c.logger.With("trx", res.ID)
	if len(diff) == 0 {
		return res, nil
	}
	changes := make([]*change, 0, len(diff))
	for _, d := range diff {
		changes = append(changes, &change{op: d.Op, node: d.Node})
	}
	c.destroying = make(map[*bfd.Session]bool)
	defer func() { c.destroying = nil }()

	for _, ch := range changes {
		if err := c.dispatch(ctx, EventValidate, ch); err != nil {
			return res, c.reject(logger, err, start)
		}
	}
	for i, ch := range changes {
		if err := c.dispatch(ctx, EventPrepare, ch); err != nil {
			c.abort(ctx, changes[:i+1])
			return res, c.reject(logger, err, start)
		}
	}
	for _, ch := range changes {
		if err := c.dispatch(ctx, EventApply, ch); err != nil {
			c.abort(ctx, changes)
			return res, c.reject(logger, err, start)
		}
	}
	for _, ch := range changes {
		if ch.commit != nil {
			ch.commit(ctx)
		}
	}
	logger.Info("transaction committed", "changes", len(changes), "sessions", c.reg.Len(), "profiles", c.profiles.Len())
	c.metrics.observe(OK, time.Since(start), c.reg.Len(), c.profiles.Len())
	return res, nil
}

func (c *Coordinator) reject(logger *slog.Logger, err *Error, start time.Time) error {
	logger.Warn("transaction rejected", "event", err.Event, "op", err.Op, "path", err.Path, "outcome", err.Outcome, "error", err.Msg)
	c.metrics.observe(err.Outcome, time.Since(start), c.reg.Len(), c.profiles.Len())
	return err
}

func (c *Coordinator) abort(ctx context.Context, changes []*change) {
	for i := len(changes) - 1; i >= 0; i-- {
		c.dispatch(ctx, EventAbort, changes[i])
	}
}

// dispatch runs the handler of ch for ev. Abort never fails.
func (c *Coordinator) dispatch(ctx context.Context, ev Event, ch *change) *Error {
	cb, ok := c.schema[ch.node.SchemaPath()]
	if !ok {
		return nil
	}
	fn := cb.table(ch.op)[ev]
	if fn == nil {
		return nil
	}
	c.logger.Debug("change", "event", ev, "op", ch.op, "path", ch.node.Path())
	err := fn(ctx, c, ch)
	if err == nil {
		return nil
	}
	if ev == EventAbort {
		c.logger.Error("abort failed", "path", ch.node.Path(), "error", err)
		return nil
	}
	return wrap(ev, ch, err)
}

func (c *Coordinator) bind(n *dnode.Node, obj any) {
	c.bindings[n.Path()] = obj
}

func (c *Coordinator) unbind(n *dnode.Node) any {
	obj, ok := c.bindings[n.Path()]
	if !ok {
		return nil
	}
	delete(c.bindings, n.Path())
	return obj
}

// release drops one reference on s and frees its engine handle when it was
// the last one.
func (c *Coordinator) release(ctx context.Context, s *bfd.Session) {
	if !c.reg.Release(s) {
		return
	}
	if s.Handle() != 0 {
		c.engine.Release(ctx, s)
		s.SetHandle(0)
	}
	c.logger.Info("session deleted", "session", s.Key())
}
