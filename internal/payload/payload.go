// Package payload models the opaque structured payloads carried by runs,
// steps, versions, and ledger records (input/output/budget/usage columns).
//
// A payload is either null or a JSON object. The engine treats payload
// contents as opaque except for a handful of well-known keys; canonical
// serialization happens only at the fingerprinting and persistence
// boundary (see MarshalCanonical).
package payload

import (
	"encoding/json"
	"fmt"
)

// Value is an opaque JSON object payload. A nil Value is the null payload
// and serializes to SQL NULL.
type Value map[string]any

// IsNull reports whether the payload is the null payload.
func (v Value) IsNull() bool {
	return v == nil
}

// Clone returns a shallow copy of the payload. Cloning a null payload
// returns an empty (non-null) payload, matching the "load or start fresh"
// pattern used when amending step outputs.
func (v Value) Clone() Value {
	out := make(Value, len(v)+2)
	for k, val := range v {
		out[k] = val
	}
	return out
}

// String returns the string stored under key, or "" if the key is absent
// or not a string.
func (v Value) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Parse decodes a stored payload column. Empty input yields the null
// payload; anything else must be a JSON object.
func Parse(data string) (Value, error) {
	if data == "" {
		return nil, nil
	}
	var v Value
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return v, nil
}
