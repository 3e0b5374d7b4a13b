package bfd

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrProfileExists   = errors.New("bfd: profile already exists")
	ErrProfileNotFound = errors.New("bfd: profile not found")
)

// Profile is a named template of session parameters. Profiles do not track
// the sessions using them, those are found by name.
type Profile struct {
	name   string
	params Params
}

func (p *Profile) Name() string   { return p.name }
func (p *Profile) Params() Params { return p.params }

// ProfileStore owns the profiles and pushes their changes to the sessions
// of reg that reference them.
type ProfileStore struct {
	profiles map[string]*Profile
	reg      *Registry
	engine   Engine
}

func NewProfileStore(reg *Registry, e Engine) *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*Profile),
		reg:      reg,
		engine:   e,
	}
}

func (ps *ProfileStore) Lookup(name string) (*Profile, bool) {
	p, ok := ps.profiles[name]
	return p, ok
}

func (ps *ProfileStore) Len() int {
	return len(ps.profiles)
}

// Names returns the profile names in lexical order.
func (ps *ProfileStore) Names() []string {
	names := make([]string, 0, len(ps.profiles))
	for n := range ps.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Create adds a profile with default parameters and binds it to the
// sessions already referencing name.
func (ps *ProfileStore) Create(ctx context.Context, name string) (*Profile, error) {
	if _, ok := ps.profiles[name]; ok {
		return nil, ErrProfileExists
	}
	p := &Profile{name: name, params: DefaultParams()}
	if err := ps.Restore(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Restore puts back a profile removed by Destroy, parameters included, and
// binds it to the sessions referencing its name.
func (ps *ProfileStore) Restore(ctx context.Context, p *Profile) error {
	if _, ok := ps.profiles[p.name]; ok {
		return ErrProfileExists
	}
	ps.profiles[p.name] = p
	if err := ps.propagate(ctx, p.name, func(s *Session) { s.profile = p }); err != nil {
		delete(ps.profiles, p.name)
		return err
	}
	return nil
}

// Destroy removes a profile. Sessions referencing it keep the name but fall
// back to their own values until a profile with that name comes back.
func (ps *ProfileStore) Destroy(ctx context.Context, name string) error {
	p, ok := ps.profiles[name]
	if !ok {
		return ErrProfileNotFound
	}
	delete(ps.profiles, name)
	if err := ps.propagate(ctx, name, func(s *Session) { s.profile = nil }); err != nil {
		ps.profiles[name] = p
		return err
	}
	return nil
}

// Update mutates the profile parameters and re-applies every session using
// it. Nothing is kept if any session cannot be re-applied.
func (ps *ProfileStore) Update(ctx context.Context, name string, fn func(*Params)) error {
	p, ok := ps.profiles[name]
	if !ok {
		return ErrProfileNotFound
	}
	prev := p.params
	fn(&p.params)
	if p.params == prev {
		return nil
	}
	if err := ps.propagate(ctx, name, nil); err != nil {
		p.params = prev
		ps.restore(ctx, name)
		return err
	}
	return nil
}

// Attach makes s use the named profile. The profile does not need to exist
// yet.
func (ps *ProfileStore) Attach(ctx context.Context, name string, s *Session) error {
	prevName, prev := s.profName, s.profile
	s.profName = name
	s.profile = ps.profiles[name]
	if err := s.Reapply(ctx, ps.engine); err != nil {
		s.profName, s.profile = prevName, prev
		return err
	}
	return nil
}

// Detach reverts s to its own parameters.
func (ps *ProfileStore) Detach(ctx context.Context, s *Session) error {
	return ps.Attach(ctx, "", s)
}

func (ps *ProfileStore) propagate(ctx context.Context, name string, bind func(*Session)) error {
	var done []*Session
	for _, s := range ps.reg.Sessions() {
		if s.profName != name {
			continue
		}
		prev := s.profile
		if bind != nil {
			bind(s)
		}
		if err := s.Reapply(ctx, ps.engine); err != nil {
			s.profile = prev
			for _, d := range done {
				d.profile = prev
				_ = d.Reapply(ctx, ps.engine)
			}
			return fmt.Errorf("profile %q: session %s: %w", name, s.key, err)
		}
		done = append(done, s)
	}
	return nil
}

// restore re-applies the sessions of a profile whose update was rolled back.
func (ps *ProfileStore) restore(ctx context.Context, name string) {
	for _, s := range ps.reg.Sessions() {
		if s.profName == name {
			_ = s.Reapply(ctx, ps.engine)
		}
	}
}
