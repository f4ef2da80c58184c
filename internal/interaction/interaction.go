// Package interaction is the human-in-the-loop collaborator behind the
// leader tool. A Renderer shows a Request to the user and blocks until the
// user answers or dismisses it.
package interaction

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
)

// Request is a prompt shown to the user.
type Request struct {
	ID                string   `json:"id"`
	Message           string   `json:"message"`
	PredefinedOptions []string `json:"predefined_options,omitempty"`
	IsMarkdown        bool     `json:"is_markdown"`
}

// Image is an attachment returned by the user. Data is base64 encoded.
type Image struct {
	Data      string `json:"data"`
	MediaType string `json:"media_type"`
	Filename  string `json:"filename,omitempty"`
}

// Response is the user's answer.
type Response struct {
	UserInput       string   `json:"user_input,omitempty"`
	SelectedOptions []string `json:"selected_options,omitempty"`
	Images          []Image  `json:"images,omitempty"`
	Cancelled       bool     `json:"cancelled,omitempty"`
}

// Renderer displays a request and waits for the user. Implementations must
// honour ctx cancellation.
type Renderer interface {
	Show(ctx context.Context, req *Request) (*Response, error)
}

// ErrEmptyMessage is returned for requests without a message.
var ErrEmptyMessage = errors.New("interaction request has no message")

// NewRequestID returns a new sortable request identifier.
func NewRequestID() string {
	return ulid.Make().String()
}

// NewRequest builds a request with a fresh id. Empty option lists are
// normalized to nil.
func NewRequest(message string, options []string, markdown bool) *Request {
	if len(options) == 0 {
		options = nil
	}
	return &Request{
		ID:                NewRequestID(),
		Message:           message,
		PredefinedOptions: options,
		IsMarkdown:        markdown,
	}
}

// Validate checks the fields a renderer needs.
func (r *Request) Validate() error {
	if r == nil || r.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}
