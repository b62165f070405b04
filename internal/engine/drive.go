package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zaler23/writer/internal/fingerprint"
	"github.com/zaler23/writer/internal/payload"
	"github.com/zaler23/writer/internal/provider"
	"github.com/zaler23/writer/internal/store"
)

// Well-known payload keys. Generated-but-unapproved content lives under a
// distinct key so it can never be confused with a human-approved value.
const (
	keyGeneratedContent = "generated_content_text"
	keyContent          = "content_text"
	keyOverridden       = "overridden"
	keyChapterID        = "chapter_id"
	keyVersionID        = "chapter_version_id"
	keyVersionNo        = "version_no"
	keyStepID           = "step_id"
	keyWaitingStep      = "waiting_for_approval_step_id"
	keyError            = "error"
	keyCancelled        = "cancelled"
)

const errApprovedNoContent = "approved step has no content"

// versionRef identifies a produced chapter text version.
type versionRef struct {
	chapterID string
	versionID string
	stepID    string
}

// driveToStable advances the run until no further automatic progress is
// possible, mutating run in place. It must be called inside the pass's
// transaction; returning an error rolls the whole pass back.
//
// Terminal and paused runs are returned unchanged. Otherwise the loop
// dispatches the first non-completed step in sequence order; completing
// step k lets the same pass continue with step k+1. The run completes when
// no non-completed step remains.
func (e *Engine) driveToStable(ctx context.Context, tx *store.Tx, run *store.Run) error {
	if run.Status.Terminal() || run.Status == store.RunPaused {
		return nil
	}

	if run.TargetChapterID == "" {
		return actionErr(CodeMissingTarget, run.ID, "", "run has no target chapter")
	}
	chapter, err := tx.GetChapter(ctx, run.TargetChapterID)
	if err != nil {
		return err
	}
	if chapter.ProjectID != run.ProjectID {
		return actionErr(CodeTargetMismatch, run.ID, "",
			"target chapter does not belong to run project")
	}

	if run.Status == store.RunCreated {
		run.Status = store.RunRunning
		if err := tx.UpdateRunState(ctx, *run); err != nil {
			return err
		}
		chapter.Status = store.ChapterDrafting
		chapter.NeedsReview = false
		chapter.ReviewReason = ""
		chapter.UpdatedAt = store.FormatTime(e.clock.Now())
		if err := tx.UpdateChapterState(ctx, chapter); err != nil {
			return err
		}
	}

	var last *versionRef
	for {
		step, ok, err := tx.FirstActionableStep(ctx, run.ID)
		if err != nil {
			return err
		}
		if !ok {
			return e.completeRun(ctx, tx, run, last)
		}

		if step.Status == store.StepPending {
			step.Status = store.StepRunning
			if err := tx.UpdateRunStepState(ctx, step); err != nil {
				return err
			}
		}

		switch step.Status {
		case store.StepRunning:
			paused, ref, err := e.executeStep(ctx, tx, run, &step, &chapter)
			if err != nil || paused {
				return err
			}
			if ref == nil {
				// Step failed; the run is already failed.
				return nil
			}
			last = ref

		case store.StepPendingApproval:
			return e.pauseForApproval(ctx, tx, run, step.ID)

		case store.StepApproved:
			content := step.Output.String(keyContent)
			if content == "" {
				content = step.Output.String(keyGeneratedContent)
			}
			if strings.TrimSpace(content) == "" {
				return e.failStep(ctx, tx, run, &step, &chapter, errApprovedNoContent)
			}
			ref, err := e.finalizeStep(ctx, tx, run, &step, &chapter, content, store.ApprovalApproved)
			if err != nil {
				return err
			}
			last = ref

		default:
			// A failed step means the run already reached a stable failed
			// state; nothing further happens without a new run.
			return nil
		}
	}
}

// executeStep performs one provider invocation for a running step.
// Returns paused=true when the step entered its approval gate, ref when
// the step completed, and (false, nil, nil) when the step and run failed.
func (e *Engine) executeStep(ctx context.Context, tx *store.Tx, run *store.Run, step *store.RunStep, chapter *store.Chapter) (bool, *versionRef, error) {
	req := provider.Request{
		ProjectID:    run.ProjectID,
		ChapterID:    chapter.ID,
		ChapterTitle: chapter.Title,
		VolumeNo:     chapter.VolumeNo,
		ChapterNo:    chapter.ChapterNo,
		RunID:        run.ID,
		StepID:       step.ID,
		Input:        run.Input,
	}
	canonical, err := payload.MarshalCanonical(req.Canonical())
	if err != nil {
		return false, nil, fmt.Errorf("canonicalize request: %w", err)
	}
	requestHash, err := fingerprint.Request(req.Canonical())
	if err != nil {
		return false, nil, err
	}

	resp, genErr := e.gen.Generate(ctx, req)
	if genErr == nil && strings.TrimSpace(resp.Content) == "" {
		genErr = fmt.Errorf("provider returned empty content")
	}

	if genErr != nil {
		call := store.LLMCall{
			ID:          e.ids.New("llm"),
			RunID:       run.ID,
			StepID:      step.ID,
			Purpose:     step.StepType,
			RequestHash: requestHash,
			Status:      store.CallFailed,
			ErrorText:   genErr.Error(),
			CreatedAt:   store.FormatTime(e.clock.Now()),
		}
		if err := tx.InsertLLMCall(ctx, call); err != nil {
			return false, nil, err
		}
		slog.Error("generation failed", "run", run.ID, "step", step.ID, "error", genErr)
		return false, nil, e.failStep(ctx, tx, run, step, chapter, genErr.Error())
	}

	usage := resp.Usage
	if usage.IsNull() || len(usage) == 0 {
		// Heuristic when the provider reports nothing: roughly four bytes
		// per token on both sides.
		usage = payload.Value{
			"prompt_tokens":     max(1, len(canonical)/4),
			"completion_tokens": max(1, len(resp.Content)/4),
		}
	}
	responseHash, err := fingerprint.Response(payload.Value{keyContent: resp.Content})
	if err != nil {
		return false, nil, err
	}

	call := store.LLMCall{
		ID:           e.ids.New("llm"),
		RunID:        run.ID,
		StepID:       step.ID,
		ProviderID:   resp.ProviderID,
		ModelID:      resp.ModelID,
		Purpose:      step.StepType,
		RequestHash:  requestHash,
		ResponseHash: responseHash,
		Usage:        usage,
		Status:       store.CallSucceeded,
		CreatedAt:    store.FormatTime(e.clock.Now()),
	}
	if err := tx.InsertLLMCall(ctx, call); err != nil {
		return false, nil, err
	}
	slog.Debug("generation succeeded", "run", run.ID, "step", step.ID,
		"request_hash", requestHash, "response_hash", responseHash)

	if step.RequiresApproval {
		now := store.FormatTime(e.clock.Now())
		step.Status = store.StepPendingApproval
		step.ApprovalStatus = store.ApprovalPending
		step.Output = payload.Value{keyGeneratedContent: resp.Content}
		step.FinishedAt = now
		if err := tx.UpdateRunStepState(ctx, *step); err != nil {
			return false, nil, err
		}
		return true, nil, e.pauseForApproval(ctx, tx, run, step.ID)
	}

	ref, err := e.finalizeStep(ctx, tx, run, step, chapter, resp.Content, store.ApprovalNone)
	return false, ref, err
}

// finalizeStep hands content to the artifact versioner: appends the next
// immutable chapter text version, updates the step output with the new
// content and version identifiers, and marks the chapter finalized with
// its review flag cleared. All writes share the pass's transaction.
func (e *Engine) finalizeStep(ctx context.Context, tx *store.Tx, run *store.Run, step *store.RunStep, chapter *store.Chapter, content string, approval store.ApprovalStatus) (*versionRef, error) {
	now := store.FormatTime(e.clock.Now())

	versionNo, err := tx.NextVersionNo(ctx, chapter.ID)
	if err != nil {
		return nil, err
	}
	version := store.ChapterTextVersion{
		ID:           e.ids.New("chv"),
		ChapterID:    chapter.ID,
		VersionNo:    versionNo,
		Stage:        "final",
		ContentText:  content,
		SourceRunID:  run.ID,
		SourceStepID: step.ID,
		CreatedAt:    now,
	}
	if err := tx.InsertTextVersion(ctx, version); err != nil {
		return nil, err
	}

	output := step.Output.Clone()
	output[keyContent] = content
	output[keyVersionID] = version.ID
	output[keyVersionNo] = versionNo
	step.Status = store.StepCompleted
	step.ApprovalStatus = approval
	step.Output = output
	step.FinishedAt = now
	step.ErrorText = ""
	if err := tx.UpdateRunStepState(ctx, *step); err != nil {
		return nil, err
	}

	chapter.Status = store.ChapterFinalized
	chapter.NeedsReview = false
	chapter.ReviewReason = ""
	chapter.UpdatedAt = now
	if err := tx.UpdateChapterState(ctx, *chapter); err != nil {
		return nil, err
	}

	slog.Info("step completed", "run", run.ID, "step", step.ID,
		"version", version.ID, "version_no", versionNo)
	return &versionRef{chapterID: chapter.ID, versionID: version.ID, stepID: step.ID}, nil
}

// completeRun marks the run completed. last carries the identifiers of the
// version produced by the final step; a run with no steps completes
// vacuously with an empty output.
func (e *Engine) completeRun(ctx context.Context, tx *store.Tx, run *store.Run, last *versionRef) error {
	output := payload.Value{}
	if last != nil {
		output = payload.Value{
			keyChapterID: last.chapterID,
			keyVersionID: last.versionID,
			keyStepID:    last.stepID,
		}
	}
	run.Status = store.RunCompleted
	run.Output = output
	run.FinishedAt = store.FormatTime(e.clock.Now())
	if err := tx.UpdateRunState(ctx, *run); err != nil {
		return err
	}
	slog.Info("run completed", "run", run.ID)
	return nil
}

// pauseForApproval pauses the run while a step awaits approval, recording
// which step is awaited in the run output.
func (e *Engine) pauseForApproval(ctx context.Context, tx *store.Tx, run *store.Run, stepID string) error {
	run.Status = store.RunPaused
	run.Output = payload.Value{keyWaitingStep: stepID}
	if err := tx.UpdateRunState(ctx, *run); err != nil {
		return err
	}
	slog.Info("run paused for approval", "run", run.ID, "step", stepID)
	return nil
}

// failStep fails the step and the run, and flags the target chapter as
// needing review with the failure reason. The system is left inspectable:
// the step carries the error text, the run output the error.
func (e *Engine) failStep(ctx context.Context, tx *store.Tx, run *store.Run, step *store.RunStep, chapter *store.Chapter, reason string) error {
	now := store.FormatTime(e.clock.Now())

	step.Status = store.StepFailed
	step.ErrorText = reason
	step.FinishedAt = now
	if err := tx.UpdateRunStepState(ctx, *step); err != nil {
		return err
	}

	run.Status = store.RunFailed
	run.Output = payload.Value{keyError: reason}
	run.FinishedAt = now
	if err := tx.UpdateRunState(ctx, *run); err != nil {
		return err
	}

	chapter.NeedsReview = true
	chapter.ReviewReason = reason
	chapter.UpdatedAt = now
	if err := tx.UpdateChapterState(ctx, *chapter); err != nil {
		return err
	}

	slog.Warn("run failed", "run", run.ID, "step", step.ID, "reason", reason)
	return nil
}
