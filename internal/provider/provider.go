// Package provider defines the generation capability the engine depends
// on. The engine never talks to a concrete backend: a Generator is passed
// in at construction, so multiple providers can coexist in tests and
// production.
package provider

import (
	"context"

	"github.com/zaler23/writer/internal/payload"
)

// Request is the structured payload handed to a Generator. It carries
// everything a backend needs to draft text for one chapter-targeting step.
type Request struct {
	ProjectID    string
	ChapterID    string
	ChapterTitle string
	VolumeNo     int
	ChapterNo    int
	RunID        string
	StepID       string
	Input        payload.Value
}

// Canonical returns the request as a payload for fingerprinting. Key names
// are part of the audit contract: identical logical requests must
// fingerprint identically across processes.
func (r Request) Canonical() payload.Value {
	input := r.Input
	if input.IsNull() {
		input = payload.Value{}
	}
	return payload.Value{
		"project_id":    r.ProjectID,
		"chapter_id":    r.ChapterID,
		"chapter_title": r.ChapterTitle,
		"volume_no":     r.VolumeNo,
		"chapter_no":    r.ChapterNo,
		"run_id":        r.RunID,
		"step_id":       r.StepID,
		"input_json":    map[string]any(input),
	}
}

// Response is a successful generation result. ProviderID, ModelID and
// Usage are optional provenance metadata; the engine synthesizes usage
// heuristically when absent.
type Response struct {
	Content    string
	ProviderID string
	ModelID    string
	Usage      payload.Value
}

// Generator produces text for a request or fails. Empty or blank content
// is treated as a failure by the engine.
//
// Implementations own their timeouts; a timeout surfaces to the engine as
// an ordinary error.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
