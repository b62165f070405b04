package store

import (
	"database/sql"
	"fmt"

	"github.com/zaler23/writer/internal/payload"
)

// marshalPayload converts a payload column to its stored representation.
// Null payloads become SQL NULL; everything else is canonical JSON TEXT,
// so persisted bytes are deterministic and fingerprint-compatible.
func marshalPayload(v payload.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	data, err := payload.MarshalCanonical(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses a stored payload column. SQL NULL maps to the
// null payload.
func unmarshalPayload(ns sql.NullString) (payload.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return payload.Parse(ns.String)
}

// nullable converts the ""-means-NULL string convention to a driver value.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// fromNull converts a scanned nullable TEXT column back to the ""-means-
// NULL convention.
func fromNull(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

// boolToInt stores booleans as SQLite INTEGER 0/1.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
