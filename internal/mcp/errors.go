package mcp

import (
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// ErrorKind classifies dispatcher failures.
type ErrorKind int

const (
	// KindUnknownTool: the name matches none of the active theme's ids.
	KindUnknownTool ErrorKind = iota
	// KindToolDisabled: a non-leader tool that is currently disabled.
	KindToolDisabled
	// KindInvalidParams: arguments failed schema validation or decoding,
	// or the handler rejected them.
	KindInvalidParams
	// KindCollaborator: the interaction, memory or search backend failed.
	KindCollaborator
)

// String returns the kind as used in metrics and logs.
func (k ErrorKind) String() string {
	switch k {
	case KindUnknownTool:
		return "unknown_tool"
	case KindToolDisabled:
		return "tool_disabled"
	case KindInvalidParams:
		return "invalid_params"
	case KindCollaborator:
		return "collaborator_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Code returns the JSON-RPC error code sent for this kind.
func (k ErrorKind) Code() int64 {
	switch k {
	case KindUnknownTool:
		return jsonrpc.CodeInvalidRequest
	case KindInvalidParams:
		return jsonrpc.CodeInvalidParams
	default:
		return jsonrpc.CodeInternalError
	}
}

// DispatchError is the failure of one tool call. Message is the caller
// facing text, usually rendered from a theme template.
type DispatchError struct {
	Kind    ErrorKind
	Tool    string
	Message string
	Err     error
}

func (e *DispatchError) Error() string {
	return e.Message
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// WireError converts the failure into the error sent on the wire.
func (e *DispatchError) WireError() *jsonrpc.Error {
	return &jsonrpc.Error{Code: e.Kind.Code(), Message: e.Message}
}

// KindOf returns the kind of a dispatcher error. Errors that did not come
// from the dispatcher report KindCollaborator.
func KindOf(err error) ErrorKind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindCollaborator
}
