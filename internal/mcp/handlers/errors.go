// Package handlers adapts the three themed tools to their collaborators.
//
// A handler receives an already decoded request, performs the external
// action and returns protocol content. Failures are reported as *Error
// values matching either ErrInvalidParams or ErrCollaborator.
package handlers

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParams marks requests that decoded but are not acceptable.
	ErrInvalidParams = errors.New("invalid params")

	// ErrCollaborator marks failures of the interaction, memory or search
	// backend.
	ErrCollaborator = errors.New("collaborator failure")
)

// Error is a handler failure with a caller-facing message.
type Error struct {
	kind  error
	msg   string
	cause error
}

// Error returns the caller-facing message only.
func (e *Error) Error() string {
	return e.msg
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return target == e.kind
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

func invalidParams(cause error, format string, args ...any) error {
	return &Error{kind: ErrInvalidParams, msg: fmt.Sprintf(format, args...), cause: cause}
}

func collaboratorFailure(cause error, format string, args ...any) error {
	return &Error{kind: ErrCollaborator, msg: fmt.Sprintf(format, args...), cause: cause}
}
