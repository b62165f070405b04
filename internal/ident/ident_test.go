package ident

import (
	"strings"
	"testing"
	"time"
)

func TestULID_Format(t *testing.T) {
	id := ULID{}.New("run")
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("id %q missing prefix", id)
	}
	body := strings.TrimPrefix(id, "run_")
	if len(body) != 26 {
		t.Fatalf("id body %q has length %d, want 26", body, len(body))
	}
	for _, c := range body {
		if !strings.ContainsRune(crockford, c) {
			t.Errorf("id body contains %q, not in Crockford alphabet", c)
		}
	}
}

func TestULID_Unique(t *testing.T) {
	gen := ULID{}
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen.New("x")
		if seen[id] {
			t.Fatalf("duplicate id %q after %d generations", id, i)
		}
		seen[id] = true
	}
}

func TestULID_TimeOrdered(t *testing.T) {
	gen := ULID{}
	first := gen.New("run")
	time.Sleep(2 * time.Millisecond)
	second := gen.New("run")
	// The leading 48 bits are a millisecond timestamp and the encoding is
	// big-endian fixed-width, so later ids sort after earlier ones.
	if !(first < second) {
		t.Errorf("ids not time-ordered: %q >= %q", first, second)
	}
}

func TestSequence(t *testing.T) {
	gen := NewSequence()
	if got := gen.New("run"); got != "run_1" {
		t.Errorf("first run id = %q, want run_1", got)
	}
	if got := gen.New("run"); got != "run_2" {
		t.Errorf("second run id = %q, want run_2", got)
	}
	if got := gen.New("step"); got != "step_1" {
		t.Errorf("first step id = %q, want step_1 (per-prefix counters)", got)
	}
}
