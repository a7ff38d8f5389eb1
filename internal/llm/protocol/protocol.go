// Package protocol defines the wire format of OpenAI-compatible chat
// completion calls.
package protocol

import (
	"encoding/json"

	"github.com/kehao95/rlmtrace/internal/usage"
)

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat completion request.
type Request struct {
	Model    string
	Messages []Message
}

// Completion is the decoded result of a successful call.
type Completion struct {
	// Content is the text of the first choice.
	Content string
	// Reasoning is the model's reasoning trace, when the provider returns one.
	Reasoning string
	// Message is the first choice's message exactly as the provider sent it.
	Message json.RawMessage
	Usage   usage.Usage
}

// Protocol encodes requests and decodes responses for one API format.
type Protocol interface {
	// EncodeRequest converts a request to a provider-specific body.
	EncodeRequest(req Request) ([]byte, error)

	// DecodeResponse parses a 200 response body.
	DecodeResponse(body []byte) (Completion, error)

	// ClassifyError interprets an error response body.
	ClassifyError(statusCode int, body []byte) error

	// ContentType returns the request Content-Type header value.
	ContentType() string

	// EndpointPath returns the API endpoint path (e.g., "/chat/completions").
	EndpointPath() string
}
