// Package dedeperrors defines the structured error-kind sum type the
// core bubbles up to its callers. It deliberately has no dependency on
// net/http or grpc: transports own their own translation tables from
// Kind to status code.
package dedeperrors

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is a closed set of failure classes.
type Kind string

const (
	NotFound          Kind = "not_found"
	Conflict          Kind = "conflict"
	InvalidState      Kind = "invalid_state"
	DeadlineExceeded  Kind = "deadline_exceeded"
	MergeConflictKind Kind = "merge_conflict"
	Unavailable       Kind = "unavailable"
	StoreError        Kind = "store_error"
)

// ConflictType distinguishes the two revert-conflict shapes.
type ConflictType string

const (
	ConflictSubsequentMerge ConflictType = "subsequent_merge"
	ConflictTicketModified  ConflictType = "ticket_modified"
)

// ConflictEntry is one entry in a MergeConflict's payload.
type ConflictEntry struct {
	Type     ConflictType
	MergeID  uuid.UUID
	TicketID uuid.UUID
	Detail   string
}

// Error is the single error type the core ever returns. Code is a
// short machine-readable tag matching the API failure names
// (e.g. "duplicate_ticket_number", "already_reverted");
// Kind is the broader class used for transport-level mapping.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Conflicts []ConflictEntry
	cause     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a plain error of the given kind/code.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an error of the given kind/code around a lower-level cause.
func Wrap(kind Kind, code string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Code: code, Message: msg, cause: cause}
}

// WithConflicts attaches a MergeConflict payload and returns the receiver.
func (e *Error) WithConflicts(conflicts []ConflictEntry) *Error {
	e.Conflicts = conflicts
	return e
}

// Is supports errors.Is comparisons against sentinel Kind values by
// wrapping them in a bare *Error{Kind: k}.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Kind == t.Kind && e.Code == t.Code
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err, defaulting to StoreError for any
// error that isn't one of ours; callers treat unrecognized failures
// conservatively as opaque store failures rather than silently passing
// them through uninterpreted.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return StoreError
}
