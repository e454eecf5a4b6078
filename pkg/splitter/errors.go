package splitter

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindValidation is a request the current capacity or configuration rejects.
	KindValidation Kind = iota
	// KindNotFound is a server or split that does not exist under the parent.
	KindNotFound
	// KindBusy is lock contention; the request may be retried unchanged.
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindBusy:
		return "busy"
	}
	return "unknown"
}

// Error is a rejection reported to the caller with a human readable message.
// Nothing has been changed when an Error is returned.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFound(msg string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: err}
}

func busy(msg string, err error) *Error {
	return &Error{Kind: KindBusy, Message: msg, Err: err}
}

// KindOf returns the kind of a splitter error and false for any other error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
