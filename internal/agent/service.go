package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/taskforge/internal/assignment"
	"github.com/ashureev/taskforge/internal/domain"
	"github.com/ashureev/taskforge/internal/issues"
	"github.com/ashureev/taskforge/internal/managerprompt"
	"github.com/ashureev/taskforge/internal/memory"
	"github.com/ashureev/taskforge/internal/store"
	"github.com/ashureev/taskforge/internal/template"
)

// Deps are the collaborators of a Service.
type Deps struct {
	Store       store.Store
	Prompts     *managerprompt.Generator
	Issues      *issues.Pipeline
	Templates   template.Provider
	Assignments *assignment.Generator
	MaxRounds   int
	Log         ConversationLogger
}

// Service runs conversations and the assignment workflow.
type Service struct {
	store       store.Store
	prompts     *managerprompt.Generator
	issues      *issues.Pipeline
	templates   template.Provider
	assignments *assignment.Generator
	maxRounds   int
	log         ConversationLogger

	sessionLocks sync.Map // sessionID -> *sync.Mutex
}

// NewService creates a Service.
func NewService(d Deps) (*Service, error) {
	if d.Store == nil || d.Prompts == nil || d.Issues == nil || d.Templates == nil || d.Assignments == nil {
		return nil, errors.New("agent: store, prompts, issues, templates and assignments are required")
	}
	if d.MaxRounds < 1 {
		d.MaxRounds = 2
	}
	if d.Log == nil {
		d.Log = NoopConversationLogger{}
	}
	return &Service{
		store:       d.Store,
		prompts:     d.Prompts,
		issues:      d.Issues,
		templates:   d.Templates,
		assignments: d.Assignments,
		maxRounds:   d.MaxRounds,
		log:         d.Log,
	}, nil
}

// Converse processes one conversation message. An empty or unknown
// sessionID starts a new session. The round counter advances before the
// oracle is asked, and the turn that reaches the round limit always
// produces a document. When the conversation completes, the assignment
// workflow runs on the document; its failure is reported in the turn
// rather than as an error.
func (s *Service) Converse(ctx context.Context, sessionID, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	sess, unlock, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.Complete {
		s.Forget(sess.ID)
		return nil, ErrSessionComplete
	}

	rec := memory.Update(sess.Memory, text).Advance()
	force := rec.Round >= s.maxRounds
	history := append(append([]domain.Message(nil), sess.Messages...), domain.Message{Role: domain.RoleUser, Content: text})

	s.logEvent(sess.ID, "outbound", "user_message", text, map[string]any{"round": rec.Round})

	outcome, err := s.prompts.Turn(ctx, history, rec, force)
	if err != nil {
		return nil, fmt.Errorf("manager prompt turn: %w", err)
	}

	answer := outcome.Reply
	if outcome.Final() {
		data, err := json.Marshal(outcome.Document)
		if err != nil {
			return nil, fmt.Errorf("encode manager prompt: %w", err)
		}
		answer = string(data)
	}

	updated, err := s.store.Update(ctx, sess.ID, func(stored *domain.Session) error {
		stored.Append(domain.RoleUser, text)
		stored.Append(domain.RoleAssistant, answer)
		stored.Memory = rec
		stored.Complete = outcome.Final()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if updated.Complete {
		// Later messages are rejected by the stored Complete flag.
		s.Forget(updated.ID)
	}

	turn := &Turn{
		SessionID: updated.ID,
		Round:     rec.Round,
		Complete:  updated.Complete,
		Reply:     outcome.Reply,
		Document:  outcome.Document,
		Source:    outcome.Source,
		Defaulted: outcome.Defaulted,
	}
	s.logEvent(sess.ID, "inbound", "assistant_message", answer, map[string]any{
		"round":            rec.Round,
		"complete":         turn.Complete,
		"source":           string(turn.Source),
		"defaulted_fields": turn.Defaulted,
	})
	slog.Info("Conversation turn",
		"session_id", turn.SessionID,
		"round", turn.Round,
		"forced", force,
		"complete", turn.Complete,
		"source", turn.Source)

	if !turn.Complete {
		return turn, nil
	}

	result, err := s.assemble(ctx, outcome.Document.Describe(), outcome)
	if err != nil {
		slog.Error("Assignment workflow failed after conversation", "session_id", turn.SessionID, "error", err)
		turn.WorkflowError = err.Error()
		s.logEvent(sess.ID, "inbound", "workflow_error", err.Error(), nil)
		return turn, nil
	}
	turn.Workflow = result
	s.logEvent(sess.ID, "inbound", "assignment", result.Assignment.Title(), map[string]any{"issues": result.Issues})
	return turn, nil
}

// acquire locks the session and loads it, creating a new session when id
// is empty or unknown. The returned func releases the lock.
func (s *Service) acquire(ctx context.Context, id string) (*domain.Session, func(), error) {
	if id != "" {
		lock, _ := s.sessionLocks.LoadOrStore(id, &sync.Mutex{})
		mutex := lock.(*sync.Mutex)
		if !mutex.TryLock() {
			slog.Warn("Session busy", "session_id", id)
			return nil, nil, ErrSessionBusy
		}

		sess, err := s.store.Get(ctx, id)
		if err == nil {
			return sess, mutex.Unlock, nil
		}
		mutex.Unlock()
		if !errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("load session: %w", err)
		}
		s.sessionLocks.Delete(id)
		slog.Info("Unknown session, starting a new one", "requested_id", id)
	}

	sess, err := s.store.Create(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	lock, _ := s.sessionLocks.LoadOrStore(sess.ID, &sync.Mutex{})
	mutex := lock.(*sync.Mutex)
	mutex.Lock()
	return sess, mutex.Unlock, nil
}

// RunWorkflow turns a task description into an assignment: the issue
// pipeline, the one-shot manager prompt and the template description are
// gathered concurrently, then the assignment is generated.
func (s *Service) RunWorkflow(ctx context.Context, desc domain.TasksDescription) (*WorkflowResult, error) {
	desc.Description = strings.TrimSpace(desc.Description)
	desc.Language = strings.TrimSpace(desc.Language)
	if err := domain.ValidateStruct(desc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}

	message := desc.Description
	if desc.Language != "" {
		message += "\nLanguages and frameworks: " + desc.Language
	}

	var (
		outcome managerprompt.Outcome
		found   []string
		repo    map[string]any
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if outcome, err = s.prompts.OneShot(gctx, message); err != nil {
			return fmt.Errorf("generate manager prompt: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		found, err = s.findIssues(gctx, desc)
		return err
	})
	g.Go(func() error {
		var err error
		repo, err = s.describeTemplate(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.generate(ctx, found, repo, outcome)
}

// assemble runs the workflow for a document produced by a conversation.
func (s *Service) assemble(ctx context.Context, desc domain.TasksDescription, outcome managerprompt.Outcome) (*WorkflowResult, error) {
	var (
		found []string
		repo  map[string]any
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		found, err = s.findIssues(gctx, desc)
		return err
	})
	g.Go(func() error {
		var err error
		repo, err = s.describeTemplate(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.generate(ctx, found, repo, outcome)
}

func (s *Service) findIssues(ctx context.Context, desc domain.TasksDescription) ([]string, error) {
	found, err := s.issues.Run(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	return found, nil
}

func (s *Service) describeTemplate(ctx context.Context) (map[string]any, error) {
	repo, err := s.templates.Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("describe template repository: %w", err)
	}
	return repo, nil
}

func (s *Service) generate(ctx context.Context, found []string, repo map[string]any, outcome managerprompt.Outcome) (*WorkflowResult, error) {
	in, err := assignment.NewInput(found, outcome.Document, repo)
	if err != nil {
		return nil, err
	}
	result, err := s.assignments.Generate(ctx, in)
	if err != nil {
		return nil, err
	}
	slog.Info("Assignment generated", "title", result.Title(), "issues", len(found), "prompt_source", outcome.Source)
	return &WorkflowResult{
		Issues:        found,
		ManagerPrompt: outcome.Document,
		Assignment:    result,
		PromptSource:  outcome.Source,
		Defaulted:     outcome.Defaulted,
	}, nil
}

// GenerateAssignment calls the assignment generator directly.
func (s *Service) GenerateAssignment(ctx context.Context, in assignment.Input) (domain.Assignment, error) {
	if missing := in.Missing(); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	return s.assignments.Generate(ctx, in)
}

// History returns a stored session.
func (s *Service) History(ctx context.Context, id string) (*domain.Session, error) {
	return s.store.Get(ctx, id)
}

// Forget drops per-session state held outside the store. It is called when
// the sweeper expires a session.
func (s *Service) Forget(sessionID string) {
	s.sessionLocks.Delete(sessionID)
}

// Close releases resources.
func (s *Service) Close() {
	if err := s.log.Close(); err != nil {
		slog.Warn("failed to close conversation logger", "error", err)
	}
}

func (s *Service) logEvent(sessionID, direction, eventType, content string, meta map[string]any) {
	s.log.Log(ConversationLogEvent{
		SessionID:  sessionID,
		Channel:    "conversation",
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Meta:       meta,
	})
}
