// Package jsonrepair parses JSON embedded in model output, trying an ordered
// chain of increasingly lenient strategies.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Strategy is a single parse attempt.
type Strategy struct {
	Name  string
	Parse func(text string) (any, error)
}

// Attempt records why a strategy failed.
type Attempt struct {
	Strategy string
	Err      error
}

// ParseError is returned when every strategy fails.
type ParseError struct {
	Snippet  string
	Attempts []Attempt
}

func (e *ParseError) Error() string {
	reasons := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		reasons = append(reasons, a.Strategy+": "+a.Err.Error())
	}
	return fmt.Sprintf("parse json %q: %s", e.Snippet, strings.Join(reasons, "; "))
}

// ErrNoJSON is returned when the text contains no object or array.
var ErrNoJSON = errors.New("no JSON object or array found")

var (
	objectPattern     = regexp.MustCompile(`(?s)\{.*\}`)
	arrayPattern      = regexp.MustCompile(`(?s)\[.*\]`)
	bareKeyPattern    = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	trailingComma     = regexp.MustCompile(`,\s*([}\]])`)
	pythonLiteralWord = regexp.MustCompile(`\b(True|False|None)\b`)
)

// DefaultChain is exact, quote-normalized, aggressive-clean, then literal.
var DefaultChain = []Strategy{
	{Name: "exact", Parse: decodeStrict},
	{Name: "quote-normalized", Parse: func(s string) (any, error) {
		return decodeStrict(normalizeQuotes(s))
	}},
	{Name: "aggressive-clean", Parse: func(s string) (any, error) {
		return decodeStrict(aggressiveClean(s))
	}},
	{Name: "literal", Parse: func(s string) (any, error) {
		return decodeStrict(aggressiveClean(replacePythonLiterals(s)))
	}},
}

// Extract narrows text to the outermost JSON object, or array when no object
// is present.
func Extract(text string) (string, error) {
	text = strings.TrimSpace(text)
	if m := objectPattern.FindString(text); m != "" {
		return m, nil
	}
	if m := arrayPattern.FindString(text); m != "" {
		return m, nil
	}
	return "", ErrNoJSON
}

// Parse runs chain over the JSON found in text and returns the first success.
func Parse(text string, chain []Strategy) (any, error) {
	candidate, err := Extract(text)
	if err != nil {
		return nil, &ParseError{Snippet: snippet(text), Attempts: []Attempt{{Strategy: "extract", Err: err}}}
	}
	attempts := make([]Attempt, 0, len(chain))
	for _, s := range chain {
		v, err := s.Parse(candidate)
		if err == nil {
			return v, nil
		}
		attempts = append(attempts, Attempt{Strategy: s.Name, Err: err})
	}
	return nil, &ParseError{Snippet: snippet(candidate), Attempts: attempts}
}

// Decode parses text with DefaultChain and stores the result in v.
func Decode(text string, v any) error {
	parsed, err := Parse(text, DefaultChain)
	if err != nil {
		return err
	}
	data, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("re-encode parsed json: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode parsed json: %w", err)
	}
	return nil
}

func decodeStrict(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// normalizeQuotes rewrites single-quoted strings as double-quoted ones,
// escaping any double quotes they contain. Escaped single quotes inside
// single-quoted strings are kept as literal apostrophes.
func normalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inDouble, inSingle := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inDouble:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == '"' {
				inDouble = false
			}
		case inSingle:
			switch {
			case c == '\\' && i+1 < len(s) && s[i+1] == '\'':
				b.WriteByte('\'')
				i++
			case c == '\\' && i+1 < len(s):
				b.WriteByte(c)
				i++
				b.WriteByte(s[i])
			case c == '"':
				b.WriteString(`\"`)
			case c == '\'':
				b.WriteByte('"')
				inSingle = false
			default:
				b.WriteByte(c)
			}
		case c == '"':
			inDouble = true
			b.WriteByte(c)
		case c == '\'':
			inSingle = true
			b.WriteByte('"')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func aggressiveClean(s string) string {
	cleaned := normalizeQuotes(strings.TrimSpace(s))
	cleaned = bareKeyPattern.ReplaceAllString(cleaned, `$1"$2"$3`)
	cleaned = trailingComma.ReplaceAllString(cleaned, `$1`)
	return cleaned
}

func replacePythonLiterals(s string) string {
	return pythonLiteralWord.ReplaceAllStringFunc(s, func(w string) string {
		switch w {
		case "True":
			return "true"
		case "False":
			return "false"
		default:
			return "null"
		}
	})
}

func snippet(s string) string {
	const max = 50
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
