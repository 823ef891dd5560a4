package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ManagerPrompt is the structured job-requirements document produced by the
// manager-prompt agent, either by the oracle or synthesized from memory.
type ManagerPrompt struct {
	Final                 Flag                   `json:"final"`
	ManagerPrompt         *PromptMeta            `json:"managerPrompt" validate:"required"`
	Role                  *RoleBlock             `json:"role" validate:"required"`
	Requirements          *Requirements          `json:"requirements" validate:"required"`
	AssignmentPreferences *AssignmentPreferences `json:"assignment_preferences" validate:"required"`
}

// Flag is a "true"/"false" string that also accepts JSON booleans.
type Flag string

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(strconv.FormatBool(b))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = Flag(s)
	return nil
}

// PromptMeta carries version and generation time.
type PromptMeta struct {
	Version     string `json:"version"`
	GeneratedOn string `json:"generatedOn"`
}

// RoleBlock describes the position being hired for.
type RoleBlock struct {
	Title       string   `json:"title" validate:"required"`
	Level       string   `json:"level"`
	Focus       []string `json:"focus"`
	Description string   `json:"description"`
}

// Requirements holds the skill lists.
type Requirements struct {
	Skills *Skills `json:"skills" validate:"required"`
}

// Skills splits required and optional skills.
type Skills struct {
	MustHave   []string `json:"must_have"`
	NiceToHave []string `json:"nice_to_have"`
}

// AssignmentPreferences captures how the take-home should be shaped.
type AssignmentPreferences struct {
	Difficulty     string   `json:"difficulty"`
	EstimatedHours string   `json:"estimated_hours"`
	AreasToTest    []string `json:"areas_to_test"`
}

// Describe renders the document as a flat task description for topic extraction.
func (m *ManagerPrompt) Describe() TasksDescription {
	var parts, langs []string
	if m.Role != nil {
		parts = append(parts, m.Role.Title, m.Role.Level)
		parts = append(parts, m.Role.Focus...)
		if m.Role.Description != "" {
			parts = append(parts, m.Role.Description)
		}
	}
	if m.Requirements != nil && m.Requirements.Skills != nil {
		langs = append(langs, m.Requirements.Skills.MustHave...)
		langs = append(langs, m.Requirements.Skills.NiceToHave...)
	}
	if m.AssignmentPreferences != nil {
		parts = append(parts, m.AssignmentPreferences.AreasToTest...)
	}
	return TasksDescription{
		Description: joinNonEmpty(parts),
		Language:    joinNonEmpty(langs),
	}
}

// TasksDescription is the free-text description of desired work plus the
// target language/framework list.
type TasksDescription struct {
	Description string `json:"tasks_description" validate:"required"`
	Language    string `json:"language"`
}

// UnmarshalJSON accepts both "tasks_description" and "task_description".
func (t *TasksDescription) UnmarshalJSON(data []byte) error {
	var raw struct {
		TasksDescription string `json:"tasks_description"`
		TaskDescription  string `json:"task_description"`
		Language         string `json:"language"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Description = raw.TasksDescription
	if t.Description == "" {
		t.Description = raw.TaskDescription
	}
	t.Language = raw.Language
	return nil
}

// Assignment is the oracle-produced homeAssignment document. No schema is
// enforced beyond being a JSON object.
type Assignment map[string]any

// Title returns the assignment title under any of the conventional keys.
func (a Assignment) Title() string {
	for _, key := range []string{"title", "assignmentTitle", "name"} {
		if s, ok := a[key].(string); ok && s != "" {
			return s
		}
	}
	if nested, ok := a["homeAssignment"].(map[string]any); ok {
		return Assignment(nested).Title()
	}
	return ""
}

func joinNonEmpty(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
