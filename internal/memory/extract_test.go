package memory

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func list(t *testing.T, o Opt[[]string]) []string {
	t.Helper()
	v, ok := o.Get()
	if !ok {
		t.Fatal("expected list field to be set")
	}
	return v
}

func TestUpdateSeniorBackendScenario(t *testing.T) {
	rec := Update(Record{}, "I need a senior backend developer, must-have skills python and docker, 5-8 hours, test functionality")

	if got := rec.Level.Or(""); got != "Senior" {
		t.Fatalf("level = %q, want Senior", got)
	}
	if got := rec.Role.Or(""); got != "Developer" {
		t.Fatalf("role = %q, want Developer", got)
	}
	if diff := cmp.Diff([]string{"backend", "devops"}, list(t, rec.Focus)); diff != "" {
		t.Fatalf("focus mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"python", "docker"}, list(t, rec.MustHave)); diff != "" {
		t.Fatalf("must_have mismatch (-want +got):\n%s", diff)
	}
	if rec.NiceToHave.IsSet() {
		t.Fatal("nice_to_have should stay unset")
	}
	if got := rec.EstimatedHours.Or(""); got != "5-8" {
		t.Fatalf("estimated_hours = %q, want 5-8", got)
	}
	if diff := cmp.Diff([]string{"functionality"}, list(t, rec.AreasToTest)); diff != "" {
		t.Fatalf("areas_to_test mismatch (-want +got):\n%s", diff)
	}
	if rec.Difficulty.IsSet() {
		t.Fatal("difficulty should stay unset")
	}
	if rec.Round != 0 {
		t.Fatalf("Update must not touch the round counter, got %d", rec.Round)
	}
}

func TestUpdateFirstMatchWins(t *testing.T) {
	rec := Update(Record{}, "looking for a senior engineer")
	rec = Update(rec, "actually make it junior")

	if got := rec.Level.Or(""); got != "Senior" {
		t.Fatalf("level = %q, want Senior to be retained", got)
	}
}

func TestUpdateCollectsAllFocusAreas(t *testing.T) {
	rec := Update(Record{}, "The stack is React on top of Docker")
	if diff := cmp.Diff([]string{"frontend", "devops"}, list(t, rec.Focus)); diff != "" {
		t.Fatalf("focus mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateFocusIsWriteOnce(t *testing.T) {
	rec := Update(Record{}, "mostly backend work")
	rec = Update(rec, "some mobile too")
	if diff := cmp.Diff([]string{"backend"}, list(t, rec.Focus)); diff != "" {
		t.Fatalf("focus mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateSkillClassification(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantMust []string
		wantNice []string
	}{
		{
			name:     "plain mention defaults to must have",
			message:  "we use python and redis",
			wantMust: []string{"python", "redis"},
		},
		{
			name:     "nice to have signal",
			message:  "kafka would be a bonus",
			wantNice: []string{"kafka"},
		},
		{
			name:     "both signals resolve to must have",
			message:  "go is required, graphql preferred: golang and graphql",
			wantMust: []string{"golang", "graphql"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Update(Record{}, tt.message)
			if diff := cmp.Diff(tt.wantMust, rec.MustHave.Or(nil)); diff != "" {
				t.Fatalf("must_have mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantNice, rec.NiceToHave.Or(nil)); diff != "" {
				t.Fatalf("nice_to_have mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdateNiceToHaveFilledLater(t *testing.T) {
	rec := Update(Record{}, "must know python")
	rec = Update(rec, "terraform is optional")

	if diff := cmp.Diff([]string{"python"}, list(t, rec.MustHave)); diff != "" {
		t.Fatalf("must_have mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"terraform"}, list(t, rec.NiceToHave)); diff != "" {
		t.Fatalf("nice_to_have mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateHours(t *testing.T) {
	tests := map[string]string{
		"should take 3-4 hours":     "3-4",
		"between 2 to 6 hours":      "2-6",
		"about 5 hours":             "5",
		"roughly 1 hour of work":    "1",
		"no time budget given here": "",
	}
	for message, want := range tests {
		got := Update(Record{}, message).EstimatedHours.Or("")
		if got != want {
			t.Errorf("hours for %q = %q, want %q", message, got, want)
		}
	}
}

func TestUpdateDifficultyFirstFamily(t *testing.T) {
	rec := Update(Record{}, "an easy task, not too hard")
	if got := rec.Difficulty.Or(""); got != "Easy" {
		t.Fatalf("difficulty = %q, want Easy", got)
	}
}

func TestRoleRequiresPositionSignal(t *testing.T) {
	if rec := Update(Record{}, "our manager wants this soon"); rec.Role.IsSet() {
		t.Fatalf("role should not be set without a position signal, got %q", rec.Role.Or(""))
	}
	rec := Update(Record{}, "the position is for an architect")
	if got := rec.Role.Or(""); got != "Architect" {
		t.Fatalf("role = %q, want Architect", got)
	}
}

func TestContainsTermWordBoundaries(t *testing.T) {
	tests := []struct {
		text string
		term string
		want bool
	}{
		{"build a ui", "ui", true},
		{"build pipeline", "ui", false},
		{"senior c++ dev", "c++", true},
		{"uses node.js daily", "node.js", true},
		{"ci/cd pipelines", "ci/cd", true},
		{"reactive streams", "react", false},
		{"a dockerized service", "docker", true},
		{"reactjs frontend", "react", true},
		{"uses middleware", "mid", false},
		{"interested in go", "rest", false},
		{"scalability work", "scala", false},
		{"a designer role", "design", false},
		{"a leading company", "lead", false},
		{"restful apis", "rest", false},
		{"she expressed interest", "express", false},
	}
	for _, tt := range tests {
		if got := containsTerm(tt.text, tt.term); got != tt.want {
			t.Errorf("containsTerm(%q, %q) = %v, want %v", tt.text, tt.term, got, tt.want)
		}
	}
}

func TestUpdateMatchesInflectedTerms(t *testing.T) {
	rec := Update(Record{}, "a dockerized microservice with a reactjs client")
	if diff := cmp.Diff([]string{"frontend", "backend", "devops"}, list(t, rec.Focus)); diff != "" {
		t.Fatalf("focus mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"react", "docker"}, list(t, rec.MustHave)); diff != "" {
		t.Fatalf("must_have mismatch (-want +got):\n%s", diff)
	}
}

func TestAdvanceIsMonotonic(t *testing.T) {
	rec := Record{}
	for i := 1; i <= 3; i++ {
		rec = rec.Advance()
		if rec.Round != i {
			t.Fatalf("round = %d, want %d", rec.Round, i)
		}
	}
}

func TestSummaryRendersPlaceholders(t *testing.T) {
	rec := Update(Record{}, "senior role")
	summary := rec.Summary()
	if !strings.Contains(summary, "Level: Senior") {
		t.Fatalf("summary missing level: %q", summary)
	}
	if !strings.Contains(summary, "Difficulty: "+NotSpecified) {
		t.Fatalf("summary missing placeholder: %q", summary)
	}
}

func TestRecordJSONKeepsUnsetDistinct(t *testing.T) {
	rec := Update(Record{}, "must have python").Advance()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Level.IsSet() {
		t.Fatal("unset level must survive a round trip as unset")
	}
	if diff := cmp.Diff([]string{"python"}, got.MustHave.Or(nil)); diff != "" {
		t.Fatalf("must_have mismatch (-want +got):\n%s", diff)
	}
	if got.Round != 1 {
		t.Fatalf("round = %d, want 1", got.Round)
	}
}

func TestUnsetListsUndetectedFields(t *testing.T) {
	if diff := cmp.Diff([]string{"role", "level", "focus", "must_have", "nice_to_have", "difficulty", "estimated_hours", "areas_to_test"}, Record{}.Unset()); diff != "" {
		t.Fatalf("empty record mismatch (-want +got):\n%s", diff)
	}
	rec := Update(Record{}, "an easy task for a junior")
	if diff := cmp.Diff([]string{"role", "focus", "must_have", "nice_to_have", "estimated_hours", "areas_to_test"}, rec.Unset()); diff != "" {
		t.Fatalf("unset mismatch (-want +got):\n%s", diff)
	}
}
