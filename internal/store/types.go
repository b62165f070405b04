package store

import (
	"time"

	"github.com/zaler23/writer/internal/payload"
)

// RunStatus is the lifecycle state of a run.
//
// Transitions: created → running → {paused ⇄ running, completed, failed,
// cancelled}. completed, failed and cancelled are terminal.
type RunStatus string

const (
	RunCreated   RunStatus = "created"
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// StepStatus is the lifecycle state of a run step.
//
// Transitions: pending → running → {pending_approval → approved,
// completed} | failed. pending_approval is reachable only for steps
// created with requires_approval; approved only via explicit human
// approval or override.
type StepStatus string

const (
	StepPending         StepStatus = "pending"
	StepRunning         StepStatus = "running"
	StepPendingApproval StepStatus = "pending_approval"
	StepApproved        StepStatus = "approved"
	StepCompleted       StepStatus = "completed"
	StepFailed          StepStatus = "failed"
)

// ApprovalStatus tracks the human-approval sub-state of a step.
type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = "n/a"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
)

// Chapter statuses driven by the engine. Chapters are created "planned",
// move to "drafting" when a run starts, and "finalized" when a version
// lands.
const (
	ChapterPlanned   = "planned"
	ChapterDrafting  = "drafting"
	ChapterFinalized = "finalized"
)

// LLM call ledger outcomes.
const (
	CallSucceeded = "succeeded"
	CallFailed    = "failed"
)

// timeLayout renders UTC timestamps with microsecond precision and a
// literal Z suffix, the format all timestamp columns use.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in the store's canonical timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Nullable TEXT columns are modeled as plain strings where "" means NULL.
// None of them carry a meaningful empty string.

// Project is one writing project.
type Project struct {
	ID        string
	Name      string
	Genre     string
	Premise   string
	CreatedAt string
	UpdatedAt string
}

// ProjectSettings is the singleton settings blob for a project.
type ProjectSettings struct {
	ID        string
	ProjectID string
	Settings  payload.Value
	CreatedAt string
	UpdatedAt string
}

// Chapter is the target unit of work a run writes text for.
type Chapter struct {
	ID                 string
	ProjectID          string
	VolumeNo           int
	ChapterNo          int
	Title              string
	Status             string
	NeedsReview        bool
	ReviewReason       string
	Plan               payload.Value
	TraversalProfileID string
	StyleGuideID       string
	LockVersion        int
	CreatedAt          string
	UpdatedAt          string
}

// ChapterSegment is one ordered slice of a chapter's outline.
type ChapterSegment struct {
	ID          string
	ChapterID   string
	SegmentNo   int
	Title       string
	POVNodeID   string
	SegmentType string
	ContentText string
	Attrs       payload.Value
	CreatedAt   string
	UpdatedAt   string
}

// ChapterReview is a stored review report against a chapter version.
type ChapterReview struct {
	ID           string
	ChapterID    string
	VersionID    string
	ReviewType   string
	Report       payload.Value
	SourceRunID  string
	SourceStepID string
	CreatedAt    string
}

// ChapterTextVersion is an immutable snapshot of generated chapter text.
// Version numbers per chapter are gap-free and strictly increasing;
// they are assigned inside the same transaction that finalizes the
// chapter (see Tx.NextVersionNo).
type ChapterTextVersion struct {
	ID           string
	ChapterID    string
	VersionNo    int
	Stage        string
	ContentText  string
	SourceRunID  string
	SourceStepID string
	CreatedAt    string
}

// Run is one generation workflow instance targeting a chapter.
type Run struct {
	ID              string
	ProjectID       string
	SwarmProfileID  string
	RunType         string
	TargetChapterID string
	Status          RunStatus
	Input           payload.Value
	Output          payload.Value
	Budget          payload.Value
	StartedAt       string
	FinishedAt      string
}

// RunStep is one ordered unit of work within a run.
type RunStep struct {
	ID               string
	RunID            string
	StepNo           int
	StepType         string
	Role             string
	Status           StepStatus
	RequiresApproval bool
	ApprovalStatus   ApprovalStatus
	OverridePayload  payload.Value
	Input            payload.Value
	Output           payload.Value
	Budget           payload.Value
	StartedAt        string
	FinishedAt       string
	ErrorText        string
}

// LLMCall is one append-only ledger entry for a provider invocation
// attempt. Exactly one row exists per attempt; failed attempts carry no
// response hash.
type LLMCall struct {
	ID           string
	RunID        string
	StepID       string
	ProviderID   string
	ModelID      string
	Purpose      string
	RequestHash  string
	ResponseHash string
	Usage        payload.Value
	Status       string
	ErrorText    string
	CreatedAt    string
}
