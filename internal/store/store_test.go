package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{
		"projects", "project_settings", "chapters", "chapter_text_versions",
		"chapter_segments", "chapter_reviews", "runs", "run_steps", "llm_calls",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		return tx.InsertProject(ctx, Project{
			ID: "proj_1", Name: "Novel", CreatedAt: testStamp(0), UpdatedAt: testStamp(0),
		})
	})
	if err != nil {
		t.Fatalf("WithTx() failed: %v", err)
	}

	if _, err := s.GetProject(ctx, "proj_1"); err != nil {
		t.Errorf("committed project not visible: %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertProject(ctx, Project{
			ID: "proj_1", Name: "Novel", CreatedAt: testStamp(0), UpdatedAt: testStamp(0),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	if _, err := s.GetProject(ctx, "proj_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rolled-back project should be gone, got err = %v", err)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = s.WithTx(ctx, func(tx *Tx) error {
			_ = tx.InsertProject(ctx, Project{
				ID: "proj_1", Name: "Novel", CreatedAt: testStamp(0), UpdatedAt: testStamp(0),
			})
			panic("boom")
		})
	}()

	if _, err := s.GetProject(ctx, "proj_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rolled-back project should be gone, got err = %v", err)
	}
}
