package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// testBase is the pinned wall time store tests stamp rows with.
var testBase = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// testStamp renders testBase shifted by offset seconds.
func testStamp(offset int) string {
	return FormatTime(testBase.Add(time.Duration(offset) * time.Second))
}

// createTestStore creates a store backed by a throwaway database file.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestProject inserts a project with minimal required fields.
func createTestProject(t *testing.T, s *Store, id string) Project {
	t.Helper()
	p := Project{
		ID:        id,
		Name:      "Project " + id,
		CreatedAt: testStamp(0),
		UpdatedAt: testStamp(0),
	}
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertProject(context.Background(), p)
	})
	if err != nil {
		t.Fatalf("InsertProject() failed: %v", err)
	}
	return p
}

// createTestChapter inserts a planned chapter in the given project.
func createTestChapter(t *testing.T, s *Store, id, projectID string, volumeNo, chapterNo int) Chapter {
	t.Helper()
	c := Chapter{
		ID:        id,
		ProjectID: projectID,
		VolumeNo:  volumeNo,
		ChapterNo: chapterNo,
		Status:    ChapterPlanned,
		CreatedAt: testStamp(0),
		UpdatedAt: testStamp(0),
	}
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertChapter(context.Background(), c)
	})
	if err != nil {
		t.Fatalf("InsertChapter() failed: %v", err)
	}
	return c
}

// createTestRun inserts a created run targeting the given chapter.
func createTestRun(t *testing.T, s *Store, id, projectID, chapterID string) Run {
	t.Helper()
	r := Run{
		ID:              id,
		ProjectID:       projectID,
		RunType:         "chapter_write",
		TargetChapterID: chapterID,
		Status:          RunCreated,
		StartedAt:       testStamp(0),
	}
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertRun(context.Background(), r)
	})
	if err != nil {
		t.Fatalf("InsertRun() failed: %v", err)
	}
	return r
}

// createTestStep inserts a pending draft step for the given run.
func createTestStep(t *testing.T, s *Store, id, runID string, stepNo int) RunStep {
	t.Helper()
	step := RunStep{
		ID:             id,
		RunID:          runID,
		StepNo:         stepNo,
		StepType:       "draft",
		Role:           "writer",
		Status:         StepPending,
		ApprovalStatus: ApprovalNone,
		StartedAt:      testStamp(0),
	}
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertRunStep(context.Background(), step)
	})
	if err != nil {
		t.Fatalf("InsertRunStep() failed: %v", err)
	}
	return step
}
