// Package memory implements the per-session conversation scratchpad: a fixed
// set of write-once fields filled by keyword detection, plus a round counter.
package memory

import (
	"fmt"
	"strings"
)

// NotSpecified is how an unset field is rendered in the scratchpad.
const NotSpecified = "Not specified"

// Record is the structured scratchpad for one session.
type Record struct {
	Role           Opt[string]   `json:"role"`
	Level          Opt[string]   `json:"level"`
	Focus          Opt[[]string] `json:"focus"`
	MustHave       Opt[[]string] `json:"must_have"`
	NiceToHave     Opt[[]string] `json:"nice_to_have"`
	Difficulty     Opt[string]   `json:"difficulty"`
	EstimatedHours Opt[string]   `json:"estimated_hours"`
	AreasToTest    Opt[[]string] `json:"areas_to_test"`
	Round          int           `json:"round"`
}

// Advance returns a copy of r with the round counter incremented.
func (r Record) Advance() Record {
	out := r.Clone()
	out.Round++
	return out
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	out.Focus = cloneList(r.Focus)
	out.MustHave = cloneList(r.MustHave)
	out.NiceToHave = cloneList(r.NiceToHave)
	out.AreasToTest = cloneList(r.AreasToTest)
	return out
}

// Unset lists the names of fields that have not been detected yet.
func (r Record) Unset() []string {
	var names []string
	for _, f := range r.fields() {
		if !f.set {
			names = append(names, f.key)
		}
	}
	return names
}

// Summary renders the scratchpad text fed to the oracle.
func (r Record) Summary() string {
	var b strings.Builder
	for _, f := range r.fields() {
		value := NotSpecified
		if f.set {
			value = f.text
		}
		fmt.Fprintf(&b, "%s: %s\n", f.label, value)
	}
	fmt.Fprintf(&b, "Round: %d\n", r.Round)
	return b.String()
}

type fieldView struct {
	key   string
	label string
	text  string
	set   bool
}

func (r Record) fields() []fieldView {
	return []fieldView{
		textField("role", "Role", r.Role),
		textField("level", "Level", r.Level),
		listField("focus", "Focus Areas", r.Focus),
		listField("must_have", "Must-Have Skills", r.MustHave),
		listField("nice_to_have", "Nice-to-Have Skills", r.NiceToHave),
		textField("difficulty", "Difficulty", r.Difficulty),
		textField("estimated_hours", "Estimated Hours", r.EstimatedHours),
		listField("areas_to_test", "Areas to Test", r.AreasToTest),
	}
}

func textField(key, label string, o Opt[string]) fieldView {
	v, ok := o.Get()
	return fieldView{key: key, label: label, text: v, set: ok}
}

func listField(key, label string, o Opt[[]string]) fieldView {
	v, ok := o.Get()
	return fieldView{key: key, label: label, text: strings.Join(v, ", "), set: ok}
}

func cloneList(o Opt[[]string]) Opt[[]string] {
	v, ok := o.Get()
	if !ok {
		return o
	}
	return Some(append([]string(nil), v...))
}
