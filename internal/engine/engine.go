package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zaler23/writer/internal/ident"
	"github.com/zaler23/writer/internal/payload"
	"github.com/zaler23/writer/internal/provider"
	"github.com/zaler23/writer/internal/store"
)

// Config contains the capabilities an Engine is built from. Store and
// Generator are required; IDs and Clock default to production
// implementations.
type Config struct {
	Store     *store.Store
	Generator provider.Generator
	IDs       ident.Generator
	Clock     Clock
}

// Engine coordinates runs. All methods are safe for concurrent use; the
// store serializes mutating passes, so at most one drive-to-stable pass
// per run is in flight at a time.
type Engine struct {
	store *store.Store
	gen   provider.Generator
	ids   ident.Generator
	clock Clock
}

// New creates an Engine from the given capabilities.
func New(cfg Config) *Engine {
	e := &Engine{
		store: cfg.Store,
		gen:   cfg.Generator,
		ids:   cfg.IDs,
		clock: cfg.Clock,
	}
	if e.ids == nil {
		e.ids = ident.ULID{}
	}
	if e.clock == nil {
		e.clock = WallClock{}
	}
	return e
}

// StepSpec describes one step to create with a run.
type StepSpec struct {
	Kind             string
	Role             string
	RequiresApproval bool
}

// CreateRunParams are the inputs to CreateRun.
type CreateRunParams struct {
	ProjectID      string
	ChapterID      string
	SwarmProfileID string
	RunType        string
	Input          payload.Value
	Budget         payload.Value

	// Steps defines the run's ordered steps. When empty, a single
	// draft/writer step is created with RequiresApproval applied to it.
	Steps            []StepSpec
	RequiresApproval bool

	// AutoStart drives the run to its first stable state before
	// returning.
	AutoStart bool
}

// CreateRun creates a run with its steps and, when requested, drives it to
// a stable state. Creation and the initial drive happen in one
/// transaction: a configuration error surfaces without leaving a partial
// run behind.
func (e *Engine) CreateRun(ctx context.Context, p CreateRunParams) (store.Run, error) {
	runType := p.RunType
	if runType == "" {
		runType = "chapter_write"
	}
	steps := p.Steps
	if len(steps) == 0 {
		steps = []StepSpec{{Kind: "draft", Role: "writer", RequiresApproval: p.RequiresApproval}}
	}

	runID := e.ids.New("run")
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		ok, err := tx.ProjectExists(ctx, p.ProjectID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("project %s: %w", p.ProjectID, store.ErrNotFound)
		}

		chapter, err := tx.GetChapter(ctx, p.ChapterID)
		if err != nil {
			return err
		}
		if chapter.ProjectID != p.ProjectID {
			return actionErr(CodeTargetMismatch, runID, "",
				"chapter does not belong to this project")
		}

		now := store.FormatTime(e.clock.Now())
		run := store.Run{
			ID:              runID,
			ProjectID:       p.ProjectID,
			SwarmProfileID:  p.SwarmProfileID,
			RunType:         runType,
			TargetChapterID: p.ChapterID,
			Status:          store.RunCreated,
			Input:           p.Input,
			Budget:          p.Budget,
			StartedAt:       now,
		}
		if err := tx.InsertRun(ctx, run); err != nil {
			return err
		}

		for i, spec := range steps {
			step := store.RunStep{
				ID:               e.ids.New("step"),
				RunID:            runID,
				StepNo:           i + 1,
				StepType:         spec.Kind,
				Role:             spec.Role,
				Status:           store.StepPending,
				RequiresApproval: spec.RequiresApproval,
				ApprovalStatus:   store.ApprovalNone,
				Budget:           p.Budget,
				StartedAt:        now,
			}
			if err := tx.InsertRunStep(ctx, step); err != nil {
				return err
			}
		}

		slog.Info("run created", "run", runID, "chapter", p.ChapterID, "steps", len(steps))

		if p.AutoStart {
			return e.driveToStable(ctx, tx, &run)
		}
		return nil
	})
	if err != nil {
		return store.Run{}, err
	}

	return e.store.GetRun(ctx, runID)
}
