// Package roomerr defines the caller-actionable error taxonomy of the chat core.
// Every expected failure carries a stable machine code; anything without a code
// is treated as an internal failure and must not leak storage detail.
package roomerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindAlreadyMember    Kind = "already_member"
	KindNotMember        Kind = "not_member"
	KindBanned           Kind = "banned"
	KindMuted            Kind = "muted"
	KindApprovalRequired Kind = "approval_required"
	KindExpired          Kind = "expired"
	KindExhausted        Kind = "exhausted"
	KindValidation       Kind = "validation_error"
	KindConflict         Kind = "conflict"
	KindInternal         Kind = "internal"
)

// Error pairs a machine-readable code with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is makes two Errors match on Kind so errors.Is works with the sentinels below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks. Call sites that need a specific message
// build one with E instead.
var (
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden        = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrAlreadyMember    = &Error{Kind: KindAlreadyMember, Message: "already a member"}
	ErrNotMember        = &Error{Kind: KindNotMember, Message: "not a member"}
	ErrBanned           = &Error{Kind: KindBanned, Message: "banned from this room"}
	ErrMuted            = &Error{Kind: KindMuted, Message: "muted in this room"}
	ErrApprovalRequired = &Error{Kind: KindApprovalRequired, Message: "join requires approval"}
	ErrExpired          = &Error{Kind: KindExpired, Message: "invite link expired"}
	ErrExhausted        = &Error{Kind: KindExhausted, Message: "invite link exhausted"}
	ErrConflict         = &Error{Kind: KindConflict, Message: "concurrent update lost"}
)

// KindOf extracts the machine code of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
