package payload

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical serialization of a payload.
// This is the ONLY serialization used for fingerprint computation and for
// persisting payload columns, so identical logical payloads always produce
// identical bytes.
//
// Canonical form:
//  1. Object keys sorted lexicographically by their canonical (escaped)
//     representation
//  2. Strings NFC normalized, then escaped to pure ASCII (\uXXXX for
//     everything outside 0x20..0x7E)
//  3. Compact output (no insignificant whitespace)
//  4. Floats in shortest round-trip form; NaN/Inf are rejected
//
// Unlike a closed IR, payloads are open-world: null values and floats are
// permitted because payload contents come from external callers.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		appendCanonicalString(buf, val)
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("non-finite number %v is forbidden in canonical JSON", val)
		}
		// Integral floats print without exponent or decimal point so that
		// values round-tripped through encoding/json stay stable.
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			buf.WriteString(strconv.FormatInt(int64(val), 10))
		} else {
			buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
		}
	case Value:
		return appendCanonicalObject(buf, val)
	case map[string]any:
		return appendCanonicalObject(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func appendCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		appendCanonicalString(buf, k)
		buf.WriteByte(':')
		if err := appendCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("object[%q]: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// appendCanonicalString writes an NFC-normalized, ASCII-escaped JSON string.
func appendCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r >= 0x20 && r < 0x7F {
				buf.WriteByte(byte(r))
			} else if r <= 0xFFFF {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(buf, `\u%04x\u%04x`, hi, lo)
			}
		}
	}
	buf.WriteByte('"')
}
