// Package bfdtest provides an in-memory bfd.Engine.
package bfdtest

import (
	"context"
	"errors"
	"sync"

	"github.com/karimra/srl-bfd-agent/bfd"
)

var ErrRegisterFailed = errors.New("bfdtest: register failed")

// Engine records what it is asked to do. It hands out increasing handles
// starting at 1.
type Engine struct {
	m sync.Mutex
	// FailRegister makes every Register call fail.
	FailRegister bool
	// FailApply makes every Apply call fail.
	FailApply bool

	next     bfd.Handle
	sessions map[bfd.Handle]bfd.Params
	applies  int
	releases int
}

func New() *Engine {
	return &Engine{sessions: make(map[bfd.Handle]bfd.Params)}
}

func (e *Engine) Register(_ context.Context, s *bfd.Session) (bfd.Handle, error) {
	e.m.Lock()
	defer e.m.Unlock()
	if e.FailRegister {
		return 0, ErrRegisterFailed
	}
	e.next++
	e.sessions[e.next] = s.Effective()
	return e.next, nil
}

func (e *Engine) Apply(_ context.Context, s *bfd.Session) error {
	e.m.Lock()
	defer e.m.Unlock()
	if e.FailApply {
		return errors.New("bfdtest: apply failed")
	}
	e.applies++
	e.sessions[s.Handle()] = s.Applied()
	return nil
}

func (e *Engine) Release(_ context.Context, s *bfd.Session) {
	e.m.Lock()
	defer e.m.Unlock()
	e.releases++
	delete(e.sessions, s.Handle())
}

// Params returns what the engine last received for h.
func (e *Engine) Params(h bfd.Handle) (bfd.Params, bool) {
	e.m.Lock()
	defer e.m.Unlock()
	p, ok := e.sessions[h]
	return p, ok
}

// Active is the number of registered sessions.
func (e *Engine) Active() int {
	e.m.Lock()
	defer e.m.Unlock()
	return len(e.sessions)
}

func (e *Engine) Applies() int {
	e.m.Lock()
	defer e.m.Unlock()
	return e.applies
}

func (e *Engine) Releases() int {
	e.m.Lock()
	defer e.m.Unlock()
	return e.releases
}
