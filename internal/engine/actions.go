package engine

import (
	"context"
	"log/slog"

	"github.com/zaler23/writer/internal/payload"
	"github.com/zaler23/writer/internal/store"
)

// Resume restarts a paused (or never-started) run and drives it to stable.
// Resuming into an unresolved approval gate is rejected: the gate must be
// approved or overridden instead.
func (e *Engine) Resume(ctx context.Context, runID string) (store.Run, error) {
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		run, err := tx.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status != store.RunPaused && run.Status != store.RunCreated {
			return actionErr(CodeNotResumable, runID, "",
				"run is not resumable in current status")
		}

		step, ok, err := tx.FirstActionableStep(ctx, runID)
		if err != nil {
			return err
		}
		if ok && step.Status == store.StepPendingApproval {
			return actionErr(CodeAwaitingApproval, runID, step.ID,
				"run is waiting for step approval")
		}

		if run.Status == store.RunPaused {
			run.Status = store.RunRunning
			if err := tx.UpdateRunState(ctx, run); err != nil {
				return err
			}
		}
		return e.driveToStable(ctx, tx, &run)
	})
	if err != nil {
		return store.Run{}, err
	}
	return e.store.GetRun(ctx, runID)
}

// Pause suspends a running run. Pure status flip: no side effects on
// steps, no finish timestamp.
func (e *Engine) Pause(ctx context.Context, runID string) (store.Run, error) {
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		run, err := tx.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status != store.RunRunning {
			return actionErr(CodeNotPausable, runID, "", "run is not running")
		}
		run.Status = store.RunPaused
		return tx.UpdateRunState(ctx, run)
	})
	if err != nil {
		return store.Run{}, err
	}
	return e.store.GetRun(ctx, runID)
}

// Cancel terminates a non-terminal run and flags its target chapter as
// needing review. Step states are left untouched; an in-flight provider
// call is not aborted, cancellation only prevents further automatic
// progress.
func (e *Engine) Cancel(ctx context.Context, runID string) (store.Run, error) {
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		run, err := tx.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status.Terminal() {
			return actionErr(CodeRunFinalized, runID, "", "run is already finalized")
		}

		now := store.FormatTime(e.clock.Now())
		run.Status = store.RunCancelled
		run.Output = payload.Value{keyCancelled: true}
		run.FinishedAt = now
		if err := tx.UpdateRunState(ctx, run); err != nil {
			return err
		}

		if run.TargetChapterID != "" {
			chapter, err := tx.GetChapter(ctx, run.TargetChapterID)
			if err != nil {
				return err
			}
			chapter.NeedsReview = true
			chapter.ReviewReason = "run_cancelled"
			chapter.UpdatedAt = now
			if err := tx.UpdateChapterState(ctx, chapter); err != nil {
				return err
			}
		}

		slog.Info("run cancelled", "run", runID)
		return nil
	})
	if err != nil {
		return store.Run{}, err
	}
	return e.store.GetRun(ctx, runID)
}

// Approve marks a pending-approval step approved and drives the run to
// stable. Only legal while the run is paused or running and the step is in
// its approval gate.
func (e *Engine) Approve(ctx context.Context, runID, stepID string) (store.RunStep, error) {
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		run, step, err := e.stepAwaitingApproval(ctx, tx, runID, stepID)
		if err != nil {
			return err
		}

		step.Status = store.StepApproved
		step.ApprovalStatus = store.ApprovalApproved
		if err := tx.UpdateRunStepState(ctx, step); err != nil {
			return err
		}

		run.Status = store.RunRunning
		if err := tx.UpdateRunState(ctx, run); err != nil {
			return err
		}

		slog.Info("step approved", "run", runID, "step", stepID)
		return e.driveToStable(ctx, tx, &run)
	})
	if err != nil {
		return store.RunStep{}, err
	}
	return e.store.GetRunStep(ctx, runID, stepID)
}

// Override replaces a pending-approval step's content with caller-supplied
// text, marks it approved, and drives the run to stable. The override
// payload and an overridden marker are recorded on the step so the
// provenance of the final text stays auditable.
func (e *Engine) Override(ctx context.Context, runID, stepID, content string) (store.RunStep, error) {
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		run, step, err := e.stepAwaitingApproval(ctx, tx, runID, stepID)
		if err != nil {
			return err
		}

		output := step.Output.Clone()
		output[keyContent] = content
		output[keyOverridden] = true

		step.Status = store.StepApproved
		step.ApprovalStatus = store.ApprovalApproved
		step.OverridePayload = payload.Value{keyContent: content}
		step.Output = output
		if err := tx.UpdateRunStepState(ctx, step); err != nil {
			return err
		}

		run.Status = store.RunRunning
		if err := tx.UpdateRunState(ctx, run); err != nil {
			return err
		}

		slog.Info("step overridden", "run", runID, "step", stepID)
		return e.driveToStable(ctx, tx, &run)
	})
	if err != nil {
		return store.RunStep{}, err
	}
	return e.store.GetRunStep(ctx, runID, stepID)
}

// stepAwaitingApproval loads the run and step and validates the shared
// approve/override preconditions.
func (e *Engine) stepAwaitingApproval(ctx context.Context, tx *store.Tx, runID, stepID string) (store.Run, store.RunStep, error) {
	run, err := tx.GetRun(ctx, runID)
	if err != nil {
		return store.Run{}, store.RunStep{}, err
	}
	if run.Status != store.RunPaused && run.Status != store.RunRunning {
		return store.Run{}, store.RunStep{}, actionErr(CodeNotApprovable, runID, stepID,
			"run cannot accept step approval in current status")
	}

	step, err := tx.GetRunStep(ctx, runID, stepID)
	if err != nil {
		return store.Run{}, store.RunStep{}, err
	}
	if step.Status != store.StepPendingApproval {
		return store.Run{}, store.RunStep{}, actionErr(CodeStepNotAwaitingApproval, runID, stepID,
			"step is not waiting for approval")
	}
	return run, step, nil
}
