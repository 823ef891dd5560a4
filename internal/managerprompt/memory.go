package managerprompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/taskforge/internal/domain"
	"github.com/ashureev/taskforge/internal/memory"
)

// Defaults used for fields the conversation never filled.
const (
	DefaultRole           = "Developer"
	DefaultLevel          = "Mid-level"
	DefaultDifficulty     = "Medium"
	DefaultEstimatedHours = "3-4"
)

var (
	defaultFocus       = []string{"general"}
	defaultMustHave    = []string{"programming"}
	defaultAreasToTest = []string{"code quality", "functionality"}
)

// FromMemory builds a complete document from rec, substituting defaults for
// unset fields. It returns the document and the names of defaulted fields.
func FromMemory(rec memory.Record, now time.Time) (*domain.ManagerPrompt, []string) {
	list := func(o memory.Opt[[]string], def []string) []string {
		return append([]string{}, o.Or(def)...)
	}

	role := rec.Role.Or(DefaultRole)
	level := rec.Level.Or(DefaultLevel)
	focus := list(rec.Focus, defaultFocus)
	mustHave := list(rec.MustHave, defaultMustHave)
	niceToHave := list(rec.NiceToHave, nil)
	difficulty := rec.Difficulty.Or(DefaultDifficulty)
	hours := rec.EstimatedHours.Or(DefaultEstimatedHours)
	areas := list(rec.AreasToTest, defaultAreasToTest)

	doc := &domain.ManagerPrompt{
		Final: "true",
		ManagerPrompt: &domain.PromptMeta{
			Version:     "1.0",
			GeneratedOn: now.Format("2006-01-02"),
		},
		Role: &domain.RoleBlock{
			Title:       role,
			Level:       level,
			Focus:       focus,
			Description: describeRole(level, role, focus),
		},
		Requirements: &domain.Requirements{
			Skills: &domain.Skills{
				MustHave:   mustHave,
				NiceToHave: niceToHave,
			},
		},
		AssignmentPreferences: &domain.AssignmentPreferences{
			Difficulty:     difficulty,
			EstimatedHours: hours,
			AreasToTest:    areas,
		},
	}
	return doc, rec.Unset()
}

func describeRole(level, role string, focus []string) string {
	return fmt.Sprintf("%s %s position focused on %s.", level, role, strings.Join(focus, ", "))
}
