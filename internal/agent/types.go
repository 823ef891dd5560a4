// Package agent orchestrates the manager-prompt conversation and the
// assignment workflow, and serves them over HTTP and websocket.
package agent

import (
	"errors"
	"strings"

	"github.com/ashureev/taskforge/internal/domain"
	"github.com/ashureev/taskforge/internal/managerprompt"
)

var (
	// ErrSessionBusy is returned when another request is already processing the session.
	ErrSessionBusy = errors.New("session is busy processing another message")

	// ErrSessionComplete is returned for messages sent to a finished conversation.
	ErrSessionComplete = errors.New("conversation is already complete, start a new session")

	// ErrEmptyMessage is returned for a blank conversation message.
	ErrEmptyMessage = managerprompt.ErrEmptyMessage

	// ErrInvalidDescription is returned when a workflow request lacks a task description.
	ErrInvalidDescription = errors.New("invalid task description")
)

// MissingFieldsError lists absent request fields.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "Missing required fields: " + strings.Join(e.Fields, ", ")
}

// Turn is the result of one conversation message.
type Turn struct {
	SessionID string
	Round     int
	Complete  bool
	Reply     string
	Document  *domain.ManagerPrompt
	Source    managerprompt.Source
	Defaulted []string

	// Workflow is set when the conversation completed and the assignment
	// workflow succeeded; WorkflowError when it failed.
	Workflow      *WorkflowResult
	WorkflowError string
}

// WorkflowResult is the output of the full assignment workflow.
type WorkflowResult struct {
	Issues        []string              `json:"jiraTasks"`
	ManagerPrompt *domain.ManagerPrompt `json:"managerPrompt"`
	Assignment    domain.Assignment     `json:"homeAssignment"`
	PromptSource  managerprompt.Source  `json:"promptSource,omitempty"`
	Defaulted     []string              `json:"defaultedFields,omitempty"`
}

// Request is the body of /user-message, /prompt and every websocket frame.
// Message is either a string (conversation turn) or an object (workflow).
type Request struct {
	Message   rawMessage `json:"message"`
	SessionID string     `json:"session_id,omitempty"`
}

// Response is the envelope returned for conversation and workflow requests.
type Response struct {
	Answer          any             `json:"answer,omitempty"`
	Result          *WorkflowResult `json:"result,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
	Complete        bool            `json:"complete"`
	Round           int             `json:"round,omitempty"`
	Source          string          `json:"source,omitempty"`
	DefaultedFields []string        `json:"defaulted_fields,omitempty"`
	WorkflowError   string          `json:"workflow_error,omitempty"`
}

// HistoryResponse is returned by GET /conversation/{sessionID}.
type HistoryResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []domain.Message `json:"messages"`
	Round     int              `json:"round"`
	Complete  bool             `json:"complete"`
	Memory    string           `json:"memory"`
}

func turnResponse(t *Turn) Response {
	resp := Response{
		Result:          t.Workflow,
		SessionID:       t.SessionID,
		Complete:        t.Complete,
		Round:           t.Round,
		Source:          string(t.Source),
		DefaultedFields: t.Defaulted,
		WorkflowError:   t.WorkflowError,
	}
	if t.Document != nil {
		resp.Answer = t.Document
	} else {
		resp.Answer = t.Reply
	}
	return resp
}

func workflowResponse(r *WorkflowResult) Response {
	return Response{
		Answer:          r.ManagerPrompt,
		Result:          r,
		Complete:        true,
		Source:          string(r.PromptSource),
		DefaultedFields: r.Defaulted,
	}
}
