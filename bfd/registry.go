package bfd

import (
	"errors"
	"sort"
)

var (
	ErrSessionExists   = errors.New("bfd: session already exists")
	ErrSessionNotFound = errors.New("bfd: session not found")
)

// Registry indexes the live sessions by key. It is not safe for concurrent
// use, all mutations come from the single transaction writer.
type Registry struct {
	sessions map[Key]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[Key]*Session)}
}

func (r *Registry) Lookup(k Key) (*Session, bool) {
	s, ok := r.sessions[k]
	return s, ok
}

func (r *Registry) Insert(s *Session) error {
	if _, ok := r.sessions[s.key]; ok {
		return ErrSessionExists
	}
	r.sessions[s.key] = s
	return nil
}

func (r *Registry) Remove(k Key) (*Session, error) {
	s, ok := r.sessions[k]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(r.sessions, k)
	return s, nil
}

func (r *Registry) Retain(s *Session) {
	s.refcount++
}

// Release drops one reference. When none is left the session is removed
// and true is returned; the caller frees the engine handle.
func (r *Registry) Release(s *Session) bool {
	if s.refcount > 0 {
		s.refcount--
	}
	if s.refcount > 0 {
		return false
	}
	if cur, ok := r.sessions[s.key]; ok && cur == s {
		delete(r.sessions, s.key)
	}
	return true
}

func (r *Registry) Len() int {
	return len(r.sessions)
}

// Sessions returns the sessions ordered by key string.
func (r *Registry) Sessions() []*Session {
	ss := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		ss = append(ss, s)
	}
	sort.Slice(ss, func(i, j int) bool {
		return ss[i].key.String() < ss[j].key.String()
	})
	return ss
}
