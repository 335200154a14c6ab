package domain

import (
	"bytes"
	"encoding/json"
)

// Nullable is a patch field that tells an absent key apart from an explicit
// null. Set is true whenever the key appeared in the body; Valid is false when
// its value was null.
type Nullable[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Some returns a Nullable holding v.
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Valid: true, Value: v}
}

// Null returns a Nullable that clears the field.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// UnmarshalJSON records presence. encoding/json only calls it for keys that
// appear in the document. Unknown keys inside object values are rejected.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		n.Valid, n.Value = false, zero
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// Ptr returns a copy of the value, or nil when null or absent.
func (n Nullable[T]) Ptr() *T {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}
