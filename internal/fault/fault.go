// Package fault defines the typed errors the domain services return.
// Stores keep wrapping low-level errors with fmt.Errorf; services translate
// outcomes that callers must distinguish (missing node, wrong owner, name
// conflict...) into *fault.Error so the web layer can map them to status
// codes without string matching.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindUnknown is the zero value; treated as an internal error.
	KindUnknown Kind = iota
	// KindNotFound: node, grant, label or user absent or not visible to the requester.
	KindNotFound
	// KindForbidden: authorization failure (wrong owner, no share grant).
	KindForbidden
	// KindConflict: duplicate share, unresolvable name collision, policy violation.
	KindConflict
	// KindInvalidInput: malformed path trees, missing required fields.
	KindInvalidInput
	// KindStorage: underlying blob read/write/copy/delete failed.
	KindStorage
	// KindTransient: busy lock or similar; the caller may retry.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid input"
	case KindStorage:
		return "storage failure"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "tree.Restore"
	Message string // human-readable, safe to return to the client
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a fault error. The variadic tail accepts an optional cause.
func E(kind Kind, op, message string, cause ...error) *Error {
	e := &Error{Kind: kind, Op: op, Message: message}
	if len(cause) > 0 {
		e.Err = cause[0]
	}
	return e
}

func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err, or KindUnknown when err is not a fault.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
