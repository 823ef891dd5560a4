package memory

import (
	"regexp"
	"strings"
)

type category struct {
	label    string
	keywords []string
}

var roleKeywords = []string{"developer", "engineer", "designer", "architect", "devops", "manager", "lead"}

// A role keyword only counts when the message talks about the position itself.
var roleSignals = []string{"title", "position", "developer"}

var levelFamilies = []category{
	{label: "Junior", keywords: []string{"junior", "entry", "beginner", "jr"}},
	{label: "Mid-level", keywords: []string{"mid", "intermediate", "regular"}},
	{label: "Senior", keywords: []string{"senior", "experienced", "expert", "sr", "lead"}},
}

var focusCategories = []category{
	{label: "frontend", keywords: []string{"frontend", "front-end", "front end", "react", "angular", "vue", "css", "html", "ui/ux"}},
	{label: "backend", keywords: []string{"backend", "back-end", "back end", "api", "apis", "server", "database", "microservice", "microservices"}},
	{label: "fullstack", keywords: []string{"fullstack", "full-stack", "full stack"}},
	{label: "devops", keywords: []string{"devops", "docker", "kubernetes", "k8s", "ci/cd", "terraform", "deployment", "infrastructure"}},
	{label: "mobile", keywords: []string{"mobile", "ios", "android", "react native", "flutter", "swift", "kotlin"}},
	{label: "data", keywords: []string{"data", "machine learning", "ml", "analytics", "etl", "pandas", "spark"}},
	{label: "security", keywords: []string{"security", "authentication", "authorization", "encryption", "oauth", "owasp"}},
}

var skillVocabulary = []string{
	"python", "java", "javascript", "typescript", "golang", "rust", "c++", "c#", "ruby", "php",
	"swift", "kotlin", "scala", "react", "angular", "vue", "node.js", "nodejs", "express", "django",
	"flask", "fastapi", "spring", ".net", "sql", "postgresql", "mysql", "mongodb", "redis", "graphql",
	"rest", "docker", "kubernetes", "aws", "azure", "gcp", "terraform", "git", "html", "css",
	"kafka", "linux",
}

var niceToHaveSignals = []string{"nice to have", "nice-to-have", "preferred", "bonus", "optional", "plus"}

var mustHaveSignals = []string{"must", "must-have", "must have", "required", "requires", "essential", "mandatory"}

var testAreaCategories = []category{
	{label: "functionality", keywords: []string{"functionality", "functional", "features", "feature"}},
	{label: "code quality", keywords: []string{"code quality", "clean code", "readability", "maintainability", "best practices"}},
	{label: "testing", keywords: []string{"unit test", "unit tests", "testing", "tests", "tdd", "coverage"}},
	{label: "performance", keywords: []string{"performance", "optimization", "scalability", "efficiency"}},
	{label: "security", keywords: []string{"security", "secure", "vulnerabilities"}},
	{label: "architecture", keywords: []string{"architecture", "design", "system design", "design patterns"}},
	{label: "problem solving", keywords: []string{"algorithm", "algorithms", "problem solving", "data structures"}},
}

var difficultyFamilies = []category{
	{label: "Easy", keywords: []string{"easy", "simple", "basic"}},
	{label: "Medium", keywords: []string{"medium", "moderate"}},
	{label: "Hard", keywords: []string{"hard", "difficult", "challenging", "advanced", "complex"}},
}

var (
	hoursRangePattern  = regexp.MustCompile(`(\d+)\s*(?:-|–|to)\s*(\d+)\s*(?:hours?|hrs?)\b`)
	hoursSinglePattern = regexp.MustCompile(`(\d+)\s*(?:hours?|hrs?)\b`)
)

// Update scans message for every field still unset in rec and returns the
// resulting record. Fields already set are never overwritten.
func Update(rec Record, message string) Record {
	out := rec.Clone()
	text := strings.ToLower(message)

	if !out.Role.IsSet() {
		if role, ok := detectRole(text); ok {
			out.Role = Some(role)
		}
	}
	if !out.Level.IsSet() {
		if level, ok := firstFamily(text, levelFamilies); ok {
			out.Level = Some(level)
		}
	}
	if !out.Focus.IsSet() {
		if focus := allCategories(text, focusCategories); len(focus) > 0 {
			out.Focus = Some(focus)
		}
	}
	if skills := matchTerms(text, skillVocabulary); len(skills) > 0 {
		if isNiceToHave(text) {
			if !out.NiceToHave.IsSet() {
				out.NiceToHave = Some(skills)
			}
		} else if !out.MustHave.IsSet() {
			out.MustHave = Some(skills)
		}
	}
	if !out.AreasToTest.IsSet() {
		if areas := allCategories(text, testAreaCategories); len(areas) > 0 {
			out.AreasToTest = Some(areas)
		}
	}
	if !out.Difficulty.IsSet() {
		if difficulty, ok := firstFamily(text, difficultyFamilies); ok {
			out.Difficulty = Some(difficulty)
		}
	}
	if !out.EstimatedHours.IsSet() {
		if hours, ok := detectHours(text); ok {
			out.EstimatedHours = Some(hours)
		}
	}
	return out
}

func detectRole(text string) (string, bool) {
	if len(matchTerms(text, roleSignals)) == 0 {
		return "", false
	}
	for _, kw := range roleKeywords {
		if containsTerm(text, kw) {
			return strings.ToUpper(kw[:1]) + kw[1:], true
		}
	}
	return "", false
}

// isNiceToHave is true only when a nice-to-have signal appears and no
// must-have signal does.
func isNiceToHave(text string) bool {
	return len(matchTerms(text, niceToHaveSignals)) > 0 && len(matchTerms(text, mustHaveSignals)) == 0
}

func detectHours(text string) (string, bool) {
	if m := hoursRangePattern.FindStringSubmatch(text); m != nil {
		return m[1] + "-" + m[2], true
	}
	if m := hoursSinglePattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

func firstFamily(text string, families []category) (string, bool) {
	for _, f := range families {
		if len(matchTerms(text, f.keywords)) > 0 {
			return f.label, true
		}
	}
	return "", false
}

func allCategories(text string, categories []category) []string {
	var labels []string
	for _, c := range categories {
		if len(matchTerms(text, c.keywords)) > 0 {
			labels = append(labels, c.label)
		}
	}
	return labels
}

// matchTerms returns the terms found in text, in vocabulary order, without duplicates.
func matchTerms(text string, terms []string) []string {
	var found []string
	seen := make(map[string]bool)
	for _, term := range terms {
		if !seen[term] && containsTerm(text, term) {
			seen[term] = true
			found = append(found, term)
		}
	}
	return found
}

// termSuffixes are inflections accepted after a whole term, so "dockerized"
// and "reactjs" still count while "reactive" and "scalability" do not.
var termSuffixes = []string{"s", "js", "ized", "ised"}

// containsTerm reports whether term occurs in text without being glued to
// neighbouring word characters, so "ui" does not match "build". A term may
// be followed by one of termSuffixes.
func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	for from := 0; from < len(text); {
		idx := strings.Index(text[from:], term)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(term)
		before := !isWordByte(term[0]) || start == 0 || !isWordByte(text[start-1])
		if before && endsWord(text, end, term) {
			return true
		}
		from = start + 1
	}
	return false
}

func endsWord(text string, end int, term string) bool {
	if !isWordByte(term[len(term)-1]) || end == len(text) || !isWordByte(text[end]) {
		return true
	}
	for _, sfx := range termSuffixes {
		if !strings.HasPrefix(text[end:], sfx) {
			continue
		}
		if next := end + len(sfx); next == len(text) || !isWordByte(text[next]) {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
