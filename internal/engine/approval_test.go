package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaler23/writer/internal/provider"
	"github.com/zaler23/writer/internal/store"
)

// startGatedRun creates a run whose single step requires approval and
// drives it into its approval gate.
func startGatedRun(t *testing.T, te *testEngine) (store.Run, store.RunStep) {
	t.Helper()
	run := te.createRun(t, CreateRunParams{RequiresApproval: true, AutoStart: true})
	require.Equal(t, store.RunPaused, run.Status)
	steps := te.steps(t, run.ID)
	require.Len(t, steps, 1)
	require.Equal(t, store.StepPendingApproval, steps[0].Status)
	return run, steps[0]
}

func TestApprovalGate_PausesRun(t *testing.T) {
	te := newTestEngine(t, provider.Static{Content: "generated draft"})

	run, step := startGatedRun(t, te)

	assert.Equal(t, store.ApprovalPending, step.ApprovalStatus)
	assert.Equal(t, "generated draft", step.Output.String("generated_content_text"))
	assert.Empty(t, step.Output.String("content_text"), "unapproved content never lands under the approved key")
	assert.NotEmpty(t, step.FinishedAt)
	assert.Equal(t, step.ID, run.Output.String("waiting_for_approval_step_id"))
	assert.Empty(t, run.FinishedAt, "paused is not terminal")

	// No version exists until the gate resolves.
	versions, _, err := te.store.ListTextVersions(context.Background(), te.chapterID, 10, "")
	require.NoError(t, err)
	assert.Empty(t, versions)

	// The provider call itself is already on the ledger.
	calls, err := te.store.ListLLMCalls(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, calls, 1)
}

func TestApprovalGate_NeverEnteredWithoutFlag(t *testing.T) {
	te := newTestEngine(t, provider.Static{Content: "text"})

	run := te.createRun(t, CreateRunParams{AutoStart: true})

	require.Equal(t, store.RunCompleted, run.Status)
	steps := te.steps(t, run.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, store.ApprovalNone, steps[0].ApprovalStatus)
}

func TestResume_RejectedWhileAwaitingApproval(t *testing.T) {
	te := newTestEngine(t, provider.Static{Content: "text"})
	run, step := startGatedRun(t, te)

	_, err := te.engine.Resume(context.Background(), run.ID)
	ae, ok := AsActionError(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, CodeAwaitingApproval, ae.Code)
	assert.Equal(t, step.ID, ae.StepID)

	// Rejection mutated nothing.
	got, err := te.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunPaused, got.Status)
}

func TestApprove_FinalizesGeneratedContent(t *testing.T) {
	te := newTestEngine(t, provider.Static{Content: "generated draft"})
	run, gated := startGatedRun(t, te)

	step, err := te.engine.Approve(context.Background(), run.ID, gated.ID)
	require.NoError(t, err)

	assert.Equal(t, store.StepCompleted, step.Status)
	assert.Equal(t, store.ApprovalApproved, step.ApprovalStatus)
	assert.Equal(t, "generated draft", step.Output.String("content_text"))
	assert.True(t, step.OverridePayload.IsNull(), "plain approval records no override")

	got, err := te.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, got.Status)

	versions, _, err := te.store.ListTextVersions(context.Background(), te.chapterID, 10, "")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "generated draft", versions[0].ContentText)

	// Approval re-uses the generated text; no second provider call.
	calls, err := te.store.ListLLMCalls(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, calls, 1)
}

func TestOverride_FinalizesExactCallerContent(t *testing.T) {
	te := newTestEngine(t, provider.Static{Content: "generated draft"})
	run, gated := startGatedRun(t, te)

	step, err := te.engine.Override(context.Background(), run.ID, gated.ID, "the human rewrite")
	require.NoError(t, err)

	assert.Equal(t, store.StepCompleted, step.Status)
	assert.Equal(t, store.ApprovalApproved, step.ApprovalStatus)
	assert.Equal(t, "the human rewrite", step.Output.String("content_text"))
	assert.Equal(t, true, step.Output["overridden"])
	assert.Equal(t, "the human rewrite", step.OverridePayload.String("content_text"))
	assert.Equal(t, "generated draft", step.Output.String("generated_content_text"),
		"the generated text stays on record next to the override")

	versions, _, err := te.store.ListTextVersions(context.Background(), te.chapterID, 10, "")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "the human rewrite", versions[0].ContentText,
		"the version carries the override verbatim")

	got, err := te.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, got.Status)
}

func TestOverride_BlankContentFailsStep(t *testing.T) {
	te := newTestEngine(t, provider.Static{Content: "generated draft"})
	run, gated := startGatedRun(t, te)

	step, err := te.engine.Override(context.Background(), run.ID, gated.ID, "   \n\t")
	require.NoError(t, err)

	assert.Equal(t, store.StepFailed, step.Status)
	assert.Equal(t, "approved step has no content", step.ErrorText)

	got, err := te.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunFailed, got.Status)
	assert.Equal(t, "approved step has no content", got.Output.String("error"))

	chapter := te.chapter(t)
	assert.True(t, chapter.NeedsReview)
	assert.Equal(t, "approved step has no content", chapter.ReviewReason)

	versions, _, err := te.store.ListTextVersions(context.Background(), te.chapterID, 10, "")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestApprove_RejectedWhenStepNotGated(t *testing.T) {
	te := newTestEngine(t, provider.Static{Content: "text"})

	run := te.createRun(t, CreateRunParams{AutoStart: true})
	require.Equal(t, store.RunCompleted, run.Status)
	steps := te.steps(t, run.ID)

	_, err := te.engine.Approve(context.Background(), run.ID, steps[0].ID)
	ae, ok := AsActionError(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, CodeNotApprovable, ae.Code, "terminal run rejects approval before the step is even inspected")
}

func TestApprove_RejectedForNonGatedStepOnLiveRun(t *testing.T) {
	te := newTestEngine(t, provider.Static{Content: "draft text"})

	// Two gated steps: resolve the first, then mis-target the already
	// completed one.
	run := te.createRun(t, CreateRunParams{
		Steps: []StepSpec{
			{Kind: "draft", Role: "writer", RequiresApproval: true},
			{Kind: "revise", Role: "editor", RequiresApproval: true},
		},
		AutoStart: true,
	})
	require.Equal(t, store.RunPaused, run.Status)
	steps := te.steps(t, run.ID)
	require.Len(t, steps, 2)

	_, err := te.engine.Approve(context.Background(), run.ID, steps[0].ID)
	require.NoError(t, err)

	// Run is paused again on the second gate; the first step is done.
	_, err = te.engine.Approve(context.Background(), run.ID, steps[0].ID)
	ae, ok := AsActionError(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, CodeStepNotAwaitingApproval, ae.Code)

	// Resolving the right step completes the run.
	_, err = te.engine.Approve(context.Background(), run.ID, steps[1].ID)
	require.NoError(t, err)
	got, err := te.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, got.Status)
}

func TestApprove_UnknownStep(t *testing.T) {
	te := newTestEngine(t, provider.Static{Content: "text"})
	run, _ := startGatedRun(t, te)

	_, err := te.engine.Approve(context.Background(), run.ID, "step_nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
