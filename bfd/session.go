package bfd

import (
	"context"
)

// Flags track which producers own a session and a few immutable traits.
type Flags uint8

const (
	// FlagConfig is set while the configuration stream defines the session.
	FlagConfig Flags = 1 << iota
	// FlagProtocol is set while another producer (the protocol engine or a
	// routing protocol) requests the session.
	FlagProtocol
	FlagMultiHop
	FlagIPv6
)

// Handle is the protocol engine reference of a registered session, 0 means
// not registered.
type Handle uint32

// Engine is the liveness protocol engine the sessions are pushed to.
type Engine interface {
	Register(ctx context.Context, s *Session) (Handle, error)
	Apply(ctx context.Context, s *Session) error
	Release(ctx context.Context, s *Session)
}

type Session struct {
	key      Key
	flags    Flags
	refcount int

	config   Params // explicitly configured values
	set      Field  // fields present in config
	profName string
	profile  *Profile

	applied Params
	handle  Handle
}

// NewSession allocates an unregistered session with a zero refcount.
func NewSession(k Key) *Session {
	s := &Session{
		key:     k,
		config:  DefaultParams(),
		applied: DefaultParams(),
	}
	if k.MultiHop {
		s.flags |= FlagMultiHop
	}
	if k.Family == FamilyIPv6 {
		s.flags |= FlagIPv6
	}
	return s
}

func (s *Session) Key() Key            { return s.key }
func (s *Session) Flags() Flags        { return s.flags }
func (s *Session) Has(f Flags) bool    { return s.flags&f != 0 }
func (s *Session) SetFlag(f Flags)     { s.flags |= f }
func (s *Session) ClearFlag(f Flags)   { s.flags &^= f }
func (s *Session) Refcount() int       { return s.refcount }
func (s *Session) Handle() Handle      { return s.handle }
func (s *Session) ProfileName() string { return s.profName }

// Config returns the explicitly configured value of f, if any.
func (s *Session) Config(f Field) (uint32, bool) {
	return s.config.Value(f), s.set&f != 0
}

// SetField records an explicit value. It reports whether the session
// configuration changed.
func (s *Session) SetField(f Field, v uint32) bool {
	changed := s.config.SetValue(f, v)
	if s.set&f == 0 {
		s.set |= f
		return true
	}
	return changed
}

// ClearField drops an explicit value so the profile or default applies again.
func (s *Session) ClearField(f Field) bool {
	if s.set&f == 0 {
		return false
	}
	s.set &^= f
	return true
}

// Effective computes the parameters in force: defaults, then the attached
// profile, then every explicitly configured field.
func (s *Session) Effective() Params {
	p := DefaultParams()
	if s.profile != nil {
		p = s.profile.params
	}
	p.overlay(&s.config, s.set)
	return p
}

// SetHandle records the engine registration. A registered session is
// considered to run with its current effective parameters.
func (s *Session) SetHandle(h Handle) {
	s.handle = h
	if h != 0 {
		s.applied = s.Effective()
	}
}

// Applied returns the parameters last pushed to the engine.
func (s *Session) Applied() Params { return s.applied }

// Reapply pushes the effective parameters to the engine when they differ
// from the ones last applied. Unregistered sessions only record them.
func (s *Session) Reapply(ctx context.Context, e Engine) error {
	eff := s.Effective()
	if eff == s.applied {
		return nil
	}
	prev := s.applied
	s.applied = eff
	if s.handle == 0 || e == nil {
		return nil
	}
	if err := e.Apply(ctx, s); err != nil {
		s.applied = prev
		return err
	}
	return nil
}

// ConfigState is what the configuration stream set on a session.
type ConfigState struct {
	config   Params
	set      Field
	profName string
	profile  *Profile
}

func (s *Session) SaveConfig() ConfigState {
	return ConfigState{config: s.config, set: s.set, profName: s.profName, profile: s.profile}
}

func (s *Session) RestoreConfig(st ConfigState) {
	s.config, s.set, s.profName, s.profile = st.config, st.set, st.profName, st.profile
}

// ResetConfig drops every explicit value and the profile reference. The
// engine is not told until the next Reapply.
func (s *Session) ResetConfig() {
	s.config = DefaultParams()
	s.set = 0
	s.profName, s.profile = "", nil
}
