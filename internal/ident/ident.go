// Package ident generates prefixed, time-sortable identifiers.
//
// Identifiers have the form "<prefix>_<26 Crockford base32 chars>", e.g.
// "run_01J9XQ4T8RZVH3N6W2M5K7PBCD". The 26-character payload is a ULID-style
// encoding of 128 bits whose most significant 48 bits are a millisecond
// timestamp, so identifiers for one entity sort by creation time.
package ident

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// crockford is the Crockford base32 alphabet (no I, L, O, U).
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Generator produces unique identifiers for a given entity prefix.
//
// Implementations must be safe for concurrent use.
type Generator interface {
	New(prefix string) string
}

// ULID generates identifiers backed by UUIDv7.
//
// UUIDv7 places a 48-bit millisecond timestamp in the most significant bits
// followed by random bits, which is exactly the bit layout a ULID encodes.
// Re-encoding the 16 bytes as Crockford base32 yields a valid ULID payload.
//
// Thread-safety: ULID is stateless and safe for concurrent use.
type ULID struct{}

// New returns a fresh prefixed identifier.
//
// Panics if UUID generation fails (should never happen in practice).
func (ULID) New(prefix string) string {
	u := uuid.Must(uuid.NewV7())
	return prefix + "_" + encodeCrockford(u)
}

// encodeCrockford encodes 16 bytes as 26 Crockford base32 characters.
// 26 characters hold 130 bits; the top 2 bits are zero padding, matching
// the canonical ULID encoding.
func encodeCrockford(b [16]byte) string {
	var out [26]byte
	// Walk the output right to left, consuming 5 bits per character from
	// the little end of the 128-bit value.
	var acc uint64
	var bits uint
	src := 15
	for i := 25; i >= 0; i-- {
		if bits < 5 && src >= 0 {
			acc |= uint64(b[src]) << bits
			bits += 8
			src--
		}
		out[i] = crockford[acc&0x1F]
		acc >>= 5
		if bits >= 5 {
			bits -= 5
		} else {
			bits = 0
		}
	}
	return string(out[:])
}

// Sequence returns predetermined identifiers for testing.
//
// Identifiers are handed out in order regardless of prefix, formatted as
// "<prefix>_<token>". This enables deterministic engine tests and golden
// comparisons.
//
// Thread-safety: Sequence is safe for concurrent use via internal mutex.
type Sequence struct {
	mu     sync.Mutex
	prefix map[string]int
}

// NewSequence creates a deterministic generator. Each prefix gets its own
// counter starting at 1, so the first run ID is "run_1", the first step ID
// "step_1", and so on.
func NewSequence() *Sequence {
	return &Sequence{prefix: make(map[string]int)}
}

// New returns the next identifier for the prefix.
func (s *Sequence) New(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefix[prefix]++
	return fmt.Sprintf("%s_%d", prefix, s.prefix[prefix])
}
