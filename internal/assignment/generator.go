// Package assignment asks the oracle for a homeAssignment document built from
// tracker issues, a manager prompt and a template repository description.
package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/taskforge/internal/domain"
	"github.com/ashureev/taskforge/internal/oracle"
)

// ErrInvalidJSON is returned when the oracle reply is not a JSON object.
var ErrInvalidJSON = errors.New("failed to generate valid JSON response")

const systemPrompt = `You are an assistant designed to generate technical home assignments for developer candidates based on three input sources:

1. Jira Tasks JSON: Analyze the list of tasks and understand the technical stack and job expectations.
2. Prompt JSON: Understand the hiring manager's goals, role type, seniority level, and preferred focus (e.g., frontend, backend, DevOps).
3. Template Repository JSON: Extract the structure, file patterns, and placeholder logic to base the assignment on.

Using these three inputs, create a well-structured JSON homeAssignment with the following:
- Title and short description
- List of required tasks
- Technologies and tools to be used
- Evaluation criteria
- Clear instructions on what to submit

The assignment should be:
- Aligned with the role and difficulty level in the prompt
- Inspired by real Jira tasks
- Consistent with the template structure

Respond only with valid JSON formatted as a homeAssignment object.`

// Input holds the three sources of an assignment. Each is kept as raw JSON
// so callers can pass whatever shape they received.
type Input struct {
	Issues        json.RawMessage `json:"jiraTasks"`
	ManagerPrompt json.RawMessage `json:"prompt"`
	TemplateRepo  json.RawMessage `json:"templateRepo"`
}

// Missing lists the absent inputs by their request field names.
func (in Input) Missing() []string {
	var missing []string
	if isEmpty(in.Issues) {
		missing = append(missing, "jiraTasks")
	}
	if isEmpty(in.ManagerPrompt) {
		missing = append(missing, "prompt")
	}
	if isEmpty(in.TemplateRepo) {
		missing = append(missing, "templateRepo")
	}
	return missing
}

// NewInput marshals typed values into an Input.
func NewInput(issues []string, prompt *domain.ManagerPrompt, templateRepo map[string]any) (Input, error) {
	var in Input
	var err error
	if in.Issues, err = json.Marshal(issues); err != nil {
		return Input{}, fmt.Errorf("marshal issues: %w", err)
	}
	if in.ManagerPrompt, err = json.Marshal(prompt); err != nil {
		return Input{}, fmt.Errorf("marshal manager prompt: %w", err)
	}
	if in.TemplateRepo, err = json.Marshal(templateRepo); err != nil {
		return Input{}, fmt.Errorf("marshal template repo: %w", err)
	}
	return in, nil
}

// Generator produces assignments.
type Generator struct {
	oracle     oracle.Client
	deployment string
}

// NewGenerator creates a Generator bound to a deployment.
func NewGenerator(client oracle.Client, deployment string) *Generator {
	return &Generator{oracle: client, deployment: deployment}
}

// Generate requests a JSON-mode completion and returns the parsed object.
// A reply that is not a JSON object yields ErrInvalidJSON; it is not retried.
func (g *Generator) Generate(ctx context.Context, in Input) (domain.Assignment, error) {
	userMessage, err := userPrompt(in)
	if err != nil {
		return nil, err
	}

	reply, err := g.oracle.Complete(ctx, oracle.Request{
		Deployment: g.deployment,
		Messages:   []oracle.Message{oracle.System(systemPrompt), oracle.User(userMessage)},
		MaxTokens:  4096,
		JSONMode:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate assignment: %w", err)
	}

	var out domain.Assignment
	if err := json.Unmarshal([]byte(reply), &out); err != nil || out == nil {
		slog.Warn("Assignment reply is not a JSON object", "deployment", g.deployment, "length", len(reply))
		return nil, ErrInvalidJSON
	}
	return out, nil
}

func userPrompt(in Input) (string, error) {
	issues, err := indent(in.Issues)
	if err != nil {
		return "", fmt.Errorf("format issues: %w", err)
	}
	prompt, err := indent(in.ManagerPrompt)
	if err != nil {
		return "", fmt.Errorf("format manager prompt: %w", err)
	}
	repo, err := indent(in.TemplateRepo)
	if err != nil {
		return "", fmt.Errorf("format template repo: %w", err)
	}
	return fmt.Sprintf(`Generate a technical home assignment based on the following inputs:

JIRA TASKS:
%s

PROMPT:
%s

TEMPLATE REPOSITORY:
%s`, issues, prompt, repo), nil
}

func indent(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// isEmpty treats missing, null, false, "", [] and {} as absent.
func isEmpty(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
