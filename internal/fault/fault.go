package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound          Kind = "not_found"
	Authorization     Kind = "authorization"
	StateConflict     Kind = "state_conflict"
	InsufficientFunds Kind = "insufficient_funds"
	Expired           Kind = "expired"
	SelfTrade         Kind = "self_trade"
	InvalidArgument   Kind = "invalid_argument"
)

var (
	ErrNotFound          = &Error{Kind: NotFound}
	ErrAuthorization     = &Error{Kind: Authorization}
	ErrStateConflict     = &Error{Kind: StateConflict}
	ErrInsufficientFunds = &Error{Kind: InsufficientFunds}
	ErrExpired           = &Error{Kind: Expired}
	ErrSelfTrade         = &Error{Kind: SelfTrade}
	ErrInvalidArgument   = &Error{Kind: InvalidArgument}
)

// Error is a rejected call. Reason is the message surfaced to the caller.
type Error struct {
	Kind   Kind
	Reason string
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return e.Reason
}

// Is matches any *Error of the same kind, so the package level sentinels work
// with errors.Is regardless of the reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// KindOf returns the kind of the first *Error in the chain, or "" if there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
