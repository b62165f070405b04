package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Mock is the default deterministic generator. It synthesizes placeholder
// text from the chapter title and any "prompt" field in the run input,
// which makes contract tests reproducible without a real backend.
type Mock struct{}

const mockFallbackText = "Draft generated by the built-in mock writer."

// Generate returns deterministic placeholder content for the request.
func (Mock) Generate(_ context.Context, req Request) (Response, error) {
	title := strings.TrimSpace(req.ChapterTitle)
	if title == "" {
		title = fmt.Sprintf("Chapter %d", req.ChapterNo)
	}

	body := strings.TrimSpace(req.Input.String("prompt"))
	if body == "" {
		body = mockFallbackText
	}

	return Response{
		Content:    title + "\n\n" + body,
		ProviderID: "mock",
		ModelID:    "mock-writer-v1",
	}, nil
}

// Failing always fails with the configured error. Used to exercise the
// engine's provider-failure paths.
type Failing struct {
	Err error
}

// Generate returns the configured error, or a generic one if unset.
func (f Failing) Generate(context.Context, Request) (Response, error) {
	if f.Err != nil {
		return Response{}, f.Err
	}
	return Response{}, errors.New("generation failed")
}

// Static returns fixed content, useful for asserting exact version text.
type Static struct {
	Content    string
	ProviderID string
	ModelID    string
}

// Generate returns the fixed response.
func (s Static) Generate(context.Context, Request) (Response, error) {
	return Response{Content: s.Content, ProviderID: s.ProviderID, ModelID: s.ModelID}, nil
}
