package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/zaler23/writer/internal/payload"
	"github.com/zaler23/writer/internal/store"
)

// Wire shapes. Nullable TEXT columns render as JSON null, payload columns
// as null or an object.

type projectOut struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Genre     *string `json:"genre"`
	Premise   *string `json:"premise"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func toProjectOut(p store.Project) projectOut {
	return projectOut{
		ID:        p.ID,
		Name:      p.Name,
		Genre:     optString(p.Genre),
		Premise:   optString(p.Premise),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type settingsOut struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"project_id"`
	Settings  payload.Value `json:"settings_json"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

type chapterOut struct {
	ID                 string        `json:"id"`
	ProjectID          string        `json:"project_id"`
	VolumeNo           int           `json:"volume_no"`
	ChapterNo          int           `json:"chapter_no"`
	Title              *string       `json:"title"`
	Status             string        `json:"status"`
	NeedsReview        bool          `json:"needs_review"`
	ReviewReason       *string       `json:"review_reason"`
	Plan               payload.Value `json:"plan_json"`
	TraversalProfileID *string       `json:"traversal_profile_id"`
	StyleGuideID       *string       `json:"style_guide_id"`
	LockVersion        int           `json:"lock_version"`
	CreatedAt          string        `json:"created_at"`
	UpdatedAt          string        `json:"updated_at"`
}

func toChapterOut(c store.Chapter) chapterOut {
	return chapterOut{
		ID:                 c.ID,
		ProjectID:          c.ProjectID,
		VolumeNo:           c.VolumeNo,
		ChapterNo:          c.ChapterNo,
		Title:              optString(c.Title),
		Status:             c.Status,
		NeedsReview:        c.NeedsReview,
		ReviewReason:       optString(c.ReviewReason),
		Plan:               c.Plan,
		TraversalProfileID: optString(c.TraversalProfileID),
		StyleGuideID:       optString(c.StyleGuideID),
		LockVersion:        c.LockVersion,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

type segmentOut struct {
	ID          string        `json:"id"`
	ChapterID   string        `json:"chapter_id"`
	SegmentNo   int           `json:"segment_no"`
	Title       *string       `json:"title"`
	POVNodeID   *string       `json:"pov_node_id"`
	SegmentType *string       `json:"segment_type"`
	ContentText *string       `json:"content_text"`
	Attrs       payload.Value `json:"attrs_json"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}

func toSegmentOut(s store.ChapterSegment) segmentOut {
	return segmentOut{
		ID:          s.ID,
		ChapterID:   s.ChapterID,
		SegmentNo:   s.SegmentNo,
		Title:       optString(s.Title),
		POVNodeID:   optString(s.POVNodeID),
		SegmentType: optString(s.SegmentType),
		ContentText: optString(s.ContentText),
		Attrs:       s.Attrs,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type reviewOut struct {
	ID           string        `json:"id"`
	ChapterID    string        `json:"chapter_id"`
	VersionID    string        `json:"version_id"`
	ReviewType   string        `json:"review_type"`
	Report       payload.Value `json:"report_json"`
	SourceRunID  *string       `json:"source_run_id"`
	SourceStepID *string       `json:"source_step_id"`
	CreatedAt    string        `json:"created_at"`
}

func toReviewOut(r store.ChapterReview) reviewOut {
	return reviewOut{
		ID:           r.ID,
		ChapterID:    r.ChapterID,
		VersionID:    r.VersionID,
		ReviewType:   r.ReviewType,
		Report:       r.Report,
		SourceRunID:  optString(r.SourceRunID),
		SourceStepID: optString(r.SourceStepID),
		CreatedAt:    r.CreatedAt,
	}
}

type versionOut struct {
	ID           string  `json:"id"`
	ChapterID    string  `json:"chapter_id"`
	VersionNo    int     `json:"version_no"`
	Stage        string  `json:"stage"`
	ContentText  string  `json:"content_text"`
	SourceRunID  *string `json:"source_run_id"`
	SourceStepID *string `json:"source_step_id"`
	CreatedAt    string  `json:"created_at"`
}

func toVersionOut(v store.ChapterTextVersion) versionOut {
	return versionOut{
		ID:           v.ID,
		ChapterID:    v.ChapterID,
		VersionNo:    v.VersionNo,
		Stage:        v.Stage,
		ContentText:  v.ContentText,
		SourceRunID:  optString(v.SourceRunID),
		SourceStepID: optString(v.SourceStepID),
		CreatedAt:    v.CreatedAt,
	}
}

type runOut struct {
	ID              string        `json:"id"`
	ProjectID       string        `json:"project_id"`
	SwarmProfileID  *string       `json:"swarm_profile_id"`
	RunType         string        `json:"run_type"`
	TargetChapterID *string       `json:"target_chapter_id"`
	Status          string        `json:"status"`
	Input           payload.Value `json:"input_json"`
	Output          payload.Value `json:"output_json"`
	Budget          payload.Value `json:"budget_json"`
	StartedAt       string        `json:"started_at"`
	FinishedAt      *string       `json:"finished_at"`
}

func toRunOut(r store.Run) runOut {
	return runOut{
		ID:              r.ID,
		ProjectID:       r.ProjectID,
		SwarmProfileID:  optString(r.SwarmProfileID),
		RunType:         r.RunType,
		TargetChapterID: optString(r.TargetChapterID),
		Status:          string(r.Status),
		Input:           r.Input,
		Output:          r.Output,
		Budget:          r.Budget,
		StartedAt:       r.StartedAt,
		FinishedAt:      optString(r.FinishedAt),
	}
}

type stepOut struct {
	ID               string        `json:"id"`
	RunID            string        `json:"run_id"`
	StepNo           int           `json:"step_no"`
	StepType         string        `json:"step_type"`
	Role             *string       `json:"role"`
	Status           string        `json:"status"`
	RequiresApproval bool          `json:"requires_approval"`
	ApprovalStatus   string        `json:"approval_status"`
	OverridePayload  payload.Value `json:"override_payload_json"`
	Input            payload.Value `json:"input_json"`
	Output           payload.Value `json:"output_json"`
	Budget           payload.Value `json:"budget_json"`
	StartedAt        string        `json:"started_at"`
	FinishedAt       *string       `json:"finished_at"`
	ErrorText        *string       `json:"error_text"`
}

func toStepOut(s store.RunStep) stepOut {
	return stepOut{
		ID:               s.ID,
		RunID:            s.RunID,
		StepNo:           s.StepNo,
		StepType:         s.StepType,
		Role:             optString(s.Role),
		Status:           string(s.Status),
		RequiresApproval: s.RequiresApproval,
		ApprovalStatus:   string(s.ApprovalStatus),
		OverridePayload:  s.OverridePayload,
		Input:            s.Input,
		Output:           s.Output,
		Budget:           s.Budget,
		StartedAt:        s.StartedAt,
		FinishedAt:       optString(s.FinishedAt),
		ErrorText:        optString(s.ErrorText),
	}
}

type listResponse[T any] struct {
	Items     []T     `json:"items"`
	NextAfter *string `json:"next_after,omitempty"`
}

func toListResponse[T any](items []T, nextAfter string) listResponse[T] {
	return listResponse[T]{Items: items, NextAfter: optString(nextAfter)}
}

func mapSlice[S, T any](in []S, f func(S) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// decodeBody parses a JSON request body into dst with a size cap.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		return fmt.Errorf("read request body: %w", errBadRequest)
	}
	if len(body) > maxRequestBodySize {
		return fmt.Errorf("request body too large: %w", errBadRequest)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", errBadRequest)
	}
	return nil
}

// pageParams parses limit/after query parameters with the given default
// limit; limit is clamped to 1..100.
func pageParams(r *http.Request, defaultLimit int) (int, string, error) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			return 0, "", fmt.Errorf("limit must be an integer in 1..100: %w", errBadRequest)
		}
		limit = n
	}
	return limit, r.URL.Query().Get("after"), nil
}
