package provider

import (
	"context"
	"testing"

	"github.com/zaler23/writer/internal/payload"
)

func TestMock_UsesTitleAndPrompt(t *testing.T) {
	resp, err := Mock{}.Generate(context.Background(), Request{
		ChapterTitle: "The Long Night",
		ChapterNo:    3,
		Input:        payload.Value{"prompt": "rain over the harbor"},
	})
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	want := "The Long Night\n\nrain over the harbor"
	if resp.Content != want {
		t.Errorf("content = %q, want %q", resp.Content, want)
	}
	if resp.ProviderID != "mock" || resp.ModelID != "mock-writer-v1" {
		t.Errorf("provenance = %q/%q", resp.ProviderID, resp.ModelID)
	}
}

func TestMock_FallsBackToChapterNumber(t *testing.T) {
	resp, err := Mock{}.Generate(context.Background(), Request{ChapterNo: 3})
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	want := "Chapter 3\n\n" + mockFallbackText
	if resp.Content != want {
		t.Errorf("content = %q, want %q", resp.Content, want)
	}
}

func TestMock_Deterministic(t *testing.T) {
	req := Request{ChapterTitle: "T", Input: payload.Value{"prompt": "p"}}
	first, _ := Mock{}.Generate(context.Background(), req)
	second, _ := Mock{}.Generate(context.Background(), req)
	if first.Content != second.Content {
		t.Errorf("content differs: %q vs %q", first.Content, second.Content)
	}
	if first.ProviderID != second.ProviderID || first.ModelID != second.ModelID {
		t.Error("provenance differs between identical requests")
	}
}

func TestRequest_CanonicalNullInputBecomesEmptyObject(t *testing.T) {
	p := Request{ProjectID: "proj_1"}.Canonical()
	input, ok := p["input_json"].(map[string]any)
	if !ok {
		t.Fatalf("input_json = %T, want map", p["input_json"])
	}
	if len(input) != 0 {
		t.Errorf("null input should canonicalize to an empty object, got %v", input)
	}
}
