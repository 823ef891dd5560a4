// Package managerprompt turns hiring-manager input into a ManagerPrompt
// document, either over a short conversation or from a single message.
package managerprompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/taskforge/internal/domain"
	"github.com/ashureev/taskforge/internal/jsonrepair"
	"github.com/ashureev/taskforge/internal/memory"
	"github.com/ashureev/taskforge/internal/oracle"
)

// Source tells where a document came from.
type Source string

const (
	SourceOracle Source = "oracle"
	SourceMemory Source = "memory"
)

// ErrEmptyMessage is returned by OneShot for a blank message.
var ErrEmptyMessage = errors.New("message must be a non-empty string")

// ErrIncomplete is returned by Complete when required blocks are missing.
var ErrIncomplete = errors.New("manager prompt is incomplete")

// Outcome is the result of a turn. Exactly one of Document or Reply is set.
type Outcome struct {
	Document  *domain.ManagerPrompt
	Source    Source
	Defaulted []string
	Reply     string
}

// Final reports whether the outcome carries a terminal document.
func (o Outcome) Final() bool {
	return o.Document != nil
}

// Generator drives the manager-prompt oracle.
type Generator struct {
	oracle     oracle.Client
	deployment string
	now        func() time.Time
}

// NewGenerator creates a Generator bound to a deployment.
func NewGenerator(client oracle.Client, deployment string) *Generator {
	return &Generator{
		oracle:     client,
		deployment: deployment,
		now:        time.Now,
	}
}

// Turn runs one conversational round over history. When force is set the
// oracle is told to emit the final document, and a reply that still is not a
// complete document is replaced by one built from rec. An oracle failure
// always falls back to the memory document. Only context cancellation is
// returned as an error.
func (g *Generator) Turn(ctx context.Context, history []domain.Message, rec memory.Record, force bool) (Outcome, error) {
	messages := []oracle.Message{
		oracle.System(conversationSystemPrompt),
		oracle.System(scratchpadMessage(rec.Summary())),
	}
	for _, m := range history {
		switch m.Role {
		case domain.RoleUser:
			messages = append(messages, oracle.User(m.Content))
		case domain.RoleAssistant:
			messages = append(messages, oracle.Assistant(m.Content))
		}
	}
	if force {
		messages = append(messages, oracle.System(forceFinalInstruction))
	}

	reply, err := g.oracle.Complete(ctx, oracle.Request{
		Deployment: g.deployment,
		Messages:   messages,
		MaxTokens:  1024,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		slog.Warn("Manager prompt oracle failed, using memory document",
			"round", rec.Round,
			"error", err)
		return g.memoryOutcome(rec), nil
	}

	if doc, ok := parseDocument(reply); ok {
		return Outcome{Document: doc, Source: SourceOracle}, nil
	}
	if force {
		slog.Info("Oracle reply incomplete at final round, using memory document", "round", rec.Round)
		return g.memoryOutcome(rec), nil
	}
	return Outcome{Reply: reply}, nil
}

// OneShot produces a document from a single message without follow-ups.
// If the oracle fails or replies with an incomplete document, the document
// is built from keywords detected in the message.
func (g *Generator) OneShot(ctx context.Context, message string) (Outcome, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Outcome{}, ErrEmptyMessage
	}

	reply, err := g.oracle.Complete(ctx, oracle.Request{
		Deployment:  g.deployment,
		Messages:    []oracle.Message{oracle.System(oneShotSystemPrompt), oracle.User(message)},
		MaxTokens:   1024,
		Temperature: oracle.Temperature(0.7),
	})
	if err == nil {
		if doc, ok := parseDocument(reply); ok {
			return Outcome{Document: doc, Source: SourceOracle}, nil
		}
		slog.Warn("One-shot manager prompt reply incomplete, using memory document")
	} else {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		slog.Warn("One-shot manager prompt oracle failed, using memory document", "error", err)
	}

	rec := memory.Update(memory.Record{}, message).Advance()
	return g.memoryOutcome(rec), nil
}

func (g *Generator) memoryOutcome(rec memory.Record) Outcome {
	doc, defaulted := FromMemory(rec, g.now())
	return Outcome{Document: doc, Source: SourceMemory, Defaulted: defaulted}
}

// Complete checks that doc has every required block.
func Complete(doc *domain.ManagerPrompt) error {
	if doc == nil {
		return ErrIncomplete
	}
	if err := domain.ValidateStruct(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrIncomplete, err)
	}
	return nil
}

func parseDocument(reply string) (*domain.ManagerPrompt, bool) {
	var doc domain.ManagerPrompt
	if err := jsonrepair.Decode(reply, &doc); err != nil {
		return nil, false
	}
	if err := Complete(&doc); err != nil {
		slog.Debug("Manager prompt reply rejected", "error", err)
		return nil, false
	}
	if doc.Final == "" {
		doc.Final = "true"
	}
	return &doc, true
}
