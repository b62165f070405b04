package store

import (
	"context"
	"testing"

	"github.com/zaler23/writer/internal/payload"
)

func TestLedger_AppendAndListInOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestProject(t, s, "proj_1")
	createTestChapter(t, s, "ch_1", "proj_1", 1, 1)
	createTestRun(t, s, "run_1", "proj_1", "ch_1")
	createTestStep(t, s, "step_1", "run_1", 1)

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertLLMCall(ctx, LLMCall{
			ID: "llm_1", RunID: "run_1", StepID: "step_1",
			Purpose: "draft", RequestHash: "aaa", Status: CallFailed,
			ErrorText: "backend unavailable", CreatedAt: testStamp(1),
		}); err != nil {
			return err
		}
		return tx.InsertLLMCall(ctx, LLMCall{
			ID: "llm_2", RunID: "run_1", StepID: "step_1",
			ProviderID: "mock", ModelID: "mock-writer-v1", Purpose: "draft",
			RequestHash: "aaa", ResponseHash: "bbb",
			Usage:     payload.Value{"prompt_tokens": float64(12)},
			Status:    CallSucceeded,
			CreatedAt: testStamp(2),
		})
	})
	if err != nil {
		t.Fatalf("insert calls failed: %v", err)
	}

	calls, err := s.ListLLMCalls(ctx, "run_1")
	if err != nil {
		t.Fatalf("ListLLMCalls() failed: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("have %d calls, want 2", len(calls))
	}
	if calls[0].ID != "llm_1" || calls[1].ID != "llm_2" {
		t.Errorf("calls out of creation order: %+v", calls)
	}

	failed := calls[0]
	if failed.Status != CallFailed || failed.ErrorText != "backend unavailable" {
		t.Errorf("failed call = %+v", failed)
	}
	if failed.ResponseHash != "" {
		t.Errorf("failed call must carry no response hash, got %q", failed.ResponseHash)
	}

	ok := calls[1]
	if ok.Status != CallSucceeded || ok.ResponseHash != "bbb" {
		t.Errorf("succeeded call = %+v", ok)
	}
	if ok.Usage.IsNull() {
		t.Error("usage payload lost")
	}
}

func TestLedger_ScopedToRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestProject(t, s, "proj_1")
	createTestChapter(t, s, "ch_1", "proj_1", 1, 1)
	createTestRun(t, s, "run_1", "proj_1", "ch_1")
	createTestRun(t, s, "run_2", "proj_1", "ch_1")

	err := s.WithTx(ctx, func(tx *Tx) error {
		return tx.InsertLLMCall(ctx, LLMCall{
			ID: "llm_1", RunID: "run_1", RequestHash: "aaa",
			Status: CallSucceeded, CreatedAt: testStamp(1),
		})
	})
	if err != nil {
		t.Fatalf("insert call failed: %v", err)
	}

	calls, err := s.ListLLMCalls(ctx, "run_2")
	if err != nil {
		t.Fatalf("ListLLMCalls() failed: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("run_2 should have no calls, got %+v", calls)
	}
}
