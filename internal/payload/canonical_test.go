package payload

import (
	"math"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	got, err := MarshalCanonical(Value{"b": 1, "a": 2, "c": 3})
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	want := `{"a":2,"b":1,"c":3}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	v := Value{
		"title": "Ch 1",
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"z": 1, "a": true},
	}
	first, err := MarshalCanonical(v)
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(v)
		if err != nil {
			t.Fatalf("MarshalCanonical() iteration %d failed: %v", i, err)
		}
		if string(again) != string(first) {
			t.Fatalf("iteration %d produced different bytes: %s vs %s", i, again, first)
		}
	}
}

func TestMarshalCanonical_EscapesNonASCII(t *testing.T) {
	got, err := MarshalCanonical(Value{"name": "café"})
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	want := `{"name":"caf\u00e9"}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "é" precomposed (U+00E9) vs decomposed (e + U+0301) must serialize
	// identically.
	precomposed, err := MarshalCanonical(Value{"k": "é"})
	if err != nil {
		t.Fatalf("MarshalCanonical(precomposed) failed: %v", err)
	}
	decomposed, err := MarshalCanonical(Value{"k": "é"})
	if err != nil {
		t.Fatalf("MarshalCanonical(decomposed) failed: %v", err)
	}
	if string(precomposed) != string(decomposed) {
		t.Errorf("NFC forms differ: %s vs %s", precomposed, decomposed)
	}
}

func TestMarshalCanonical_SurrogatePairs(t *testing.T) {
	got, err := MarshalCanonical(Value{"k": "\U0001F600"})
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	want := `{"k":"\ud83d\ude00"}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMarshalCanonical_IntegralFloats(t *testing.T) {
	// encoding/json decodes all numbers to float64; integral values must
	// not grow a decimal point or exponent on the way back out.
	got, err := MarshalCanonical(Value{"n": float64(42)})
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	if string(got) != `{"n":42}` {
		t.Errorf("got %s, want {\"n\":42}", got)
	}

	got, err = MarshalCanonical(Value{"n": 1.5})
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	if string(got) != `{"n":1.5}` {
		t.Errorf("got %s, want {\"n\":1.5}", got)
	}
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := MarshalCanonical(Value{"n": bad}); err == nil {
			t.Errorf("MarshalCanonical(%v) should have failed", bad)
		}
	}
}

func TestMarshalCanonical_RejectsUnsupportedType(t *testing.T) {
	_, err := MarshalCanonical(Value{"ch": make(chan int)})
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
	if !strings.Contains(err.Error(), "unsupported type") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMarshalCanonical_RoundTripStability(t *testing.T) {
	// Canonical bytes parsed back and re-canonicalized must be identical.
	v := Value{
		"title": "Ch 1",
		"n":     float64(3),
		"pi":    1.5,
		"flag":  true,
		"none":  nil,
		"tags":  []any{"a", "b"},
	}
	first, err := MarshalCanonical(v)
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	parsed, err := Parse(string(first))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	second, err := MarshalCanonical(parsed)
	if err != nil {
		t.Fatalf("MarshalCanonical(parsed) failed: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("round trip changed bytes: %s vs %s", first, second)
	}
}

func TestMarshalCanonical_Golden(t *testing.T) {
	v := Value{
		"title": "Ch 1",
		"n":     float64(3),
		"pi":    1.5,
		"flag":  true,
		"none":  nil,
		"tags":  []any{"a", "b"},
		"nested": Value{
			"z": 1,
			"a": "é",
		},
	}
	got, err := MarshalCanonical(v)
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	g := goldie.New(t)
	g.Assert(t, "canonical_composite", got)
}
