package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaler23/writer/internal/provider"
	"github.com/zaler23/writer/internal/store"
)

func TestProviderFailure_FailsRunAndFlagsChapter(t *testing.T) {
	te := newTestEngine(t, provider.Failing{Err: errors.New("backend unavailable")})

	run := te.createRun(t, CreateRunParams{AutoStart: true})

	assert.Equal(t, store.RunFailed, run.Status)
	assert.Equal(t, "backend unavailable", run.Output.String("error"))
	assert.NotEmpty(t, run.FinishedAt)

	steps := te.steps(t, run.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, store.StepFailed, steps[0].Status)
	assert.Equal(t, "backend unavailable", steps[0].ErrorText)
	assert.NotEmpty(t, steps[0].FinishedAt)

	chapter := te.chapter(t)
	assert.True(t, chapter.NeedsReview)
	assert.Equal(t, "backend unavailable", chapter.ReviewReason)

	// Failed runs produce no artifact.
	versions, _, err := te.store.ListTextVersions(context.Background(), te.chapterID, 10, "")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestProviderFailure_LedgerRowWithoutResponseHash(t *testing.T) {
	te := newTestEngine(t, provider.Failing{Err: errors.New("backend unavailable")})

	run := te.createRun(t, CreateRunParams{AutoStart: true})

	calls, err := te.store.ListLLMCalls(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, calls, 1, "even failed attempts leave a ledger row")
	call := calls[0]
	assert.Equal(t, store.CallFailed, call.Status)
	assert.Equal(t, "backend unavailable", call.ErrorText)
	assert.Len(t, call.RequestHash, 64, "the request was fingerprinted before the attempt")
	assert.Empty(t, call.ResponseHash, "no response, no response hash")
}

func TestBlankContent_TreatedAsFailure(t *testing.T) {
	te := newTestEngine(t, provider.Static{Content: "   \n\t "})

	run := te.createRun(t, CreateRunParams{AutoStart: true})

	assert.Equal(t, store.RunFailed, run.Status)
	assert.Equal(t, "provider returned empty content", run.Output.String("error"))

	chapter := te.chapter(t)
	assert.True(t, chapter.NeedsReview)
}

func TestFailedRun_RejectsFurtherTriggers(t *testing.T) {
	te := newTestEngine(t, provider.Failing{})
	ctx := context.Background()

	run := te.createRun(t, CreateRunParams{AutoStart: true})
	require.Equal(t, store.RunFailed, run.Status)

	_, err := te.engine.Resume(ctx, run.ID)
	ae, ok := AsActionError(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, CodeNotResumable, ae.Code)

	_, err = te.engine.Pause(ctx, run.ID)
	ae, ok = AsActionError(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, CodeNotPausable, ae.Code)

	_, err = te.engine.Cancel(ctx, run.ID)
	ae, ok = AsActionError(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, CodeRunFinalized, ae.Code)

	// Rejected triggers leave the run untouched: the single failed call
	// stays the only ledger row and the status does not move.
	calls, err := te.store.ListLLMCalls(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, calls, 1)
	after, err := te.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunFailed, after.Status)
	assert.Equal(t, run.FinishedAt, after.FinishedAt)
}

func TestNextRun_RecoversFailedChapter(t *testing.T) {
	te := newTestEngine(t, provider.Failing{Err: errors.New("backend unavailable")})

	failed := te.createRun(t, CreateRunParams{AutoStart: true})
	require.Equal(t, store.RunFailed, failed.Status)

	// A fresh run with a healthy provider clears the review flag and
	// finalizes the chapter.
	te.engine.gen = provider.Static{Content: "second attempt"}
	run := te.createRun(t, CreateRunParams{AutoStart: true})

	assert.Equal(t, store.RunCompleted, run.Status)
	chapter := te.chapter(t)
	assert.Equal(t, store.ChapterFinalized, chapter.Status)
	assert.False(t, chapter.NeedsReview)
	assert.Empty(t, chapter.ReviewReason)
}
