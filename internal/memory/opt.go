package memory

import (
	"bytes"
	"encoding/json"
)

// Opt holds a value that is either unset or set exactly once.
type Opt[T any] struct {
	value T
	set   bool
}

// Some returns a set Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

// IsSet reports whether a value has been recorded.
func (o Opt[T]) IsSet() bool {
	return o.set
}

// Get returns the value and whether it was set.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

// Or returns the value if set, def otherwise.
func (o Opt[T]) Or(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// MarshalJSON encodes an unset Opt as null.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null as unset.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
