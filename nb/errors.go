package nb

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/karimra/srl-bfd-agent/dnode"
)

// MaxErrMsgLen bounds the message reported back for a rejected change.
const MaxErrMsgLen = 512

type Outcome uint8

const (
	OK Outcome = iota
	ValidationError
	ResourceError
	InconsistencyError
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case ValidationError:
		return "validation-error"
	case ResourceError:
		return "resource-error"
	case InconsistencyError:
		return "inconsistency-error"
	}
	return "unknown"
}

var (
	ErrValidation    = errors.New("validation error")
	ErrResource      = errors.New("resource error")
	ErrInconsistency = errors.New("inconsistency error")
)

// Error describes why a change was rejected.
type Error struct {
	Outcome Outcome
	Event   Event
	Op      dnode.Op
	Path    string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s %s: %s", e.Event, e.Op, e.Path, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the outcome.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Outcome == ValidationError
	case ErrResource:
		return e.Outcome == ResourceError
	case ErrInconsistency:
		return e.Outcome == InconsistencyError
	}
	return false
}

func validationErr(err error) error {
	return &Error{Outcome: ValidationError, Err: err}
}

func resourceErr(err error) error {
	return &Error{Outcome: ResourceError, Err: err}
}

func inconsistencyErr(err error) error {
	return &Error{Outcome: InconsistencyError, Err: err}
}

// wrap completes a handler error with where it happened. Errors that carry
// no outcome are validation errors before apply and resource errors after.
func wrap(ev Event, ch *change, err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Outcome: ResourceError, Err: err}
		if ev == EventValidate {
			e.Outcome = ValidationError
		}
	}
	e.Event = ev
	e.Op = ch.op
	e.Path = ch.node.Path()
	if e.Msg == "" && e.Err != nil {
		e.Msg = e.Err.Error()
	}
	if len(e.Msg) > MaxErrMsgLen {
		n := MaxErrMsgLen
		for n > 0 && !utf8.RuneStart(e.Msg[n]) {
			n--
		}
		e.Msg = e.Msg[:n]
	}
	return e
}
