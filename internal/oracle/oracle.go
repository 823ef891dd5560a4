// Package oracle wraps the hosted chat-completion endpoint behind a small
// text-in, text-out interface.
package oracle

import (
	"context"
	"errors"
)

// Message roles understood by the oracle.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrEmptyResponse is returned when the completion carries no content.
	ErrEmptyResponse = errors.New("oracle returned an empty response")

	// ErrUnavailable wraps transport and API failures of the hosted endpoint.
	ErrUnavailable = errors.New("oracle request failed")
)

// Message is a single chat message.
type Message struct {
	Role    string
	Content string
}

// Request is a chat completion request against a named deployment.
type Request struct {
	Deployment  string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
	JSONMode    bool
}

// Client completes chat requests.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Temperature returns a pointer for Request.Temperature.
func Temperature(t float64) *float64 {
	return &t
}

// System, User and Assistant build messages.
func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Func adapts a function to Client.
type Func func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
