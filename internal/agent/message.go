package agent

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/ashureev/taskforge/internal/domain"
)

var errUnsupportedMessage = errors.New("message must be a string or an object")

// rawMessage holds the undecoded "message" field.
type rawMessage json.RawMessage

func (m *rawMessage) UnmarshalJSON(data []byte) error {
	*m = append((*m)[:0], data...)
	return nil
}

func (m rawMessage) MarshalJSON() ([]byte, error) {
	if len(m) == 0 {
		return []byte("null"), nil
	}
	return m, nil
}

// Text returns the message when it is a JSON string.
func (m rawMessage) Text() (string, bool) {
	raw := bytes.TrimSpace(m)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Description decodes the message when it is a JSON object.
func (m rawMessage) Description() (domain.TasksDescription, bool, error) {
	raw := bytes.TrimSpace(m)
	if len(raw) == 0 || raw[0] != '{' {
		return domain.TasksDescription{}, false, nil
	}
	var desc domain.TasksDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return domain.TasksDescription{}, true, err
	}
	return desc, true, nil
}

// Empty reports a missing or null message.
func (m rawMessage) Empty() bool {
	raw := bytes.TrimSpace(m)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
