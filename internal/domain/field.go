package domain

import (
	"encoding/json"
	"fmt"
)

// FieldStatus is the research state of one record field.
type FieldStatus string

const (
	StatusConfirmed FieldStatus = "confirmed" // value found in a source
	StatusEmpty     FieldStatus = "empty"     // searched, not applicable
	StatusUnknown   FieldStatus = "unknown"   // not searched or inconclusive
)

// IsValid checks if the status is a valid value.
func (s FieldStatus) IsValid() bool {
	return s == StatusConfirmed || s == StatusEmpty || s == StatusUnknown
}

// Field wraps a record value with its research status and provenance.
// Only Confirmed fields carry a meaningful Value.
type Field[T any] struct {
	Status     FieldStatus `json:"status"`
	Value      T           `json:"value,omitempty"`
	Source     string      `json:"source,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
	Evidence   []string    `json:"evidence,omitempty"`
	Reason     string      `json:"reason,omitempty"` // why the field is empty or unknown
}

// Confirmed returns a confirmed field.
func Confirmed[T any](v T, source string) Field[T] {
	return Field[T]{Status: StatusConfirmed, Value: v, Source: source, Confidence: 1}
}

// Empty returns a field searched and found not applicable.
func Empty[T any](reason string) Field[T] {
	return Field[T]{Status: StatusEmpty, Reason: reason}
}

// Unknown returns a field that was never resolved.
func Unknown[T any](reason string) Field[T] {
	return Field[T]{Status: StatusUnknown, Reason: reason}
}

// Get returns the value when confirmed.
func (f Field[T]) Get() (T, bool) {
	if f.Status == StatusConfirmed {
		return f.Value, true
	}
	var zero T
	return zero, false
}

// Or returns the confirmed value or def.
func (f Field[T]) Or(def T) T {
	if v, ok := f.Get(); ok {
		return v
	}
	return def
}

// Ptr returns a pointer to the confirmed value, nil otherwise.
func (f Field[T]) Ptr() *T {
	if v, ok := f.Get(); ok {
		return &v
	}
	return nil
}

// IsKnown reports whether the field was researched (confirmed or empty).
func (f Field[T]) IsKnown() bool {
	return f.Status == StatusConfirmed || f.Status == StatusEmpty
}

// rawField has Field's layout without its methods.
type rawField[T any] Field[T]

// MarshalJSON always writes the wrapped form. An unset field is written as unknown.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.Status == "" {
		f.Status = StatusUnknown
	}
	return json.Marshal(rawField[T](f))
}

// UnmarshalJSON accepts either the wrapped form or a bare value.
// A bare value is read as confirmed, a bare null as unknown.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Unknown[T]("null")
		return nil
	}

	var w rawField[T]
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &w); err == nil && w.Status.IsValid() {
			*f = Field[T](w)
			return nil
		}
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("field: %w", err)
	}
	*f = Confirmed(v, "")
	return nil
}
