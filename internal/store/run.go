package store

import (
	"context"
	"database/sql"
	"fmt"
)

const runColumns = `id, project_id, swarm_profile_id, run_type,
	target_chapter_id, status, input_json, output_json, budget_json,
	started_at, finished_at`

// InsertRun inserts a new run row.
func (t *Tx) InsertRun(ctx context.Context, r Run) error {
	input, err := marshalPayload(r.Input)
	if err != nil {
		return err
	}
	output, err := marshalPayload(r.Output)
	if err != nil {
		return err
	}
	budget, err := marshalPayload(r.Budget)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.ProjectID, nullable(r.SwarmProfileID), r.RunType,
		nullable(r.TargetChapterID), r.Status, input, output, budget,
		r.StartedAt, nullable(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRunState writes the engine-owned run fields: status, output and
// finish timestamp.
func (t *Tx) UpdateRunState(ctx context.Context, r Run) error {
	output, err := marshalPayload(r.Output)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		UPDATE runs SET status = ?, output_json = ?, finished_at = ?
		WHERE id = ?
	`, r.Status, output, nullable(r.FinishedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update run state: %w", err)
	}
	return nil
}

// GetRun returns a run by ID, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	return getRun(ctx, s.db, id)
}

// GetRun returns a run by ID within the transaction.
func (t *Tx) GetRun(ctx context.Context, id string) (Run, error) {
	return getRun(ctx, t.tx, id)
}

func getRun(ctx context.Context, q querier, id string) (Run, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func scanRun(r rowScanner) (Run, error) {
	var run Run
	var swarmProfile, targetChapter, finishedAt sql.NullString
	var input, output, budget sql.NullString
	var status string
	err := r.Scan(&run.ID, &run.ProjectID, &swarmProfile, &run.RunType,
		&targetChapter, &status, &input, &output, &budget,
		&run.StartedAt, &finishedAt)
	if err != nil {
		return Run{}, err
	}
	run.SwarmProfileID = fromNull(swarmProfile)
	run.TargetChapterID = fromNull(targetChapter)
	run.Status = RunStatus(status)
	run.FinishedAt = fromNull(finishedAt)
	if run.Input, err = unmarshalPayload(input); err != nil {
		return Run{}, err
	}
	if run.Output, err = unmarshalPayload(output); err != nil {
		return Run{}, err
	}
	if run.Budget, err = unmarshalPayload(budget); err != nil {
		return Run{}, err
	}
	return run, nil
}

const stepColumns = `id, run_id, step_no, step_type, role, status,
	requires_approval, approval_status, override_payload_json, input_json,
	output_json, budget_json, started_at, finished_at, error_text`

// InsertRunStep inserts a new step row. Returns ErrDuplicate when the
// (run, step_no) pair is already taken.
func (t *Tx) InsertRunStep(ctx context.Context, s RunStep) error {
	override, err := marshalPayload(s.OverridePayload)
	if err != nil {
		return err
	}
	input, err := marshalPayload(s.Input)
	if err != nil {
		return err
	}
	output, err := marshalPayload(s.Output)
	if err != nil {
		return err
	}
	budget, err := marshalPayload(s.Budget)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO run_steps (`+stepColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.RunID, s.StepNo, s.StepType, nullable(s.Role), s.Status,
		boolToInt(s.RequiresApproval), s.ApprovalStatus, override, input,
		output, budget, s.StartedAt, nullable(s.FinishedAt), nullable(s.ErrorText),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("step %d of run %s: %w", s.StepNo, s.RunID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert run step: %w", err)
	}
	return nil
}

// UpdateRunStepState writes the engine-owned step fields.
func (t *Tx) UpdateRunStepState(ctx context.Context, s RunStep) error {
	override, err := marshalPayload(s.OverridePayload)
	if err != nil {
		return err
	}
	output, err := marshalPayload(s.Output)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		UPDATE run_steps SET status = ?, approval_status = ?,
			override_payload_json = ?, output_json = ?, finished_at = ?,
			error_text = ?
		WHERE id = ?
	`, s.Status, s.ApprovalStatus, override, output,
		nullable(s.FinishedAt), nullable(s.ErrorText), s.ID)
	if err != nil {
		return fmt.Errorf("update run step state: %w", err)
	}
	return nil
}

// GetRunStep returns the step with the given ID belonging to the run, or
// ErrNotFound.
func (s *Store) GetRunStep(ctx context.Context, runID, stepID string) (RunStep, error) {
	return getRunStep(ctx, s.db, runID, stepID)
}

// GetRunStep returns the step within the transaction.
func (t *Tx) GetRunStep(ctx context.Context, runID, stepID string) (RunStep, error) {
	return getRunStep(ctx, t.tx, runID, stepID)
}

func getRunStep(ctx context.Context, q querier, runID, stepID string) (RunStep, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+stepColumns+` FROM run_steps WHERE run_id = ? AND id = ?
	`, runID, stepID)
	step, err := scanStep(row)
	if err == sql.ErrNoRows {
		return RunStep{}, fmt.Errorf("step %s of run %s: %w", stepID, runID, ErrNotFound)
	}
	if err != nil {
		return RunStep{}, fmt.Errorf("get run step: %w", err)
	}
	return step, nil
}

// ListRunSteps returns all steps of a run in sequence order.
func (s *Store) ListRunSteps(ctx context.Context, runID string) ([]RunStep, error) {
	return listRunSteps(ctx, s.db, runID)
}

// ListRunSteps returns all steps of a run within the transaction.
func (t *Tx) ListRunSteps(ctx context.Context, runID string) ([]RunStep, error) {
	return listRunSteps(ctx, t.tx, runID)
}

func listRunSteps(ctx context.Context, q querier, runID string) ([]RunStep, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+stepColumns+` FROM run_steps WHERE run_id = ? ORDER BY step_no
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run steps: %w", err)
	}
	defer rows.Close()

	items := []RunStep{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run step: %w", err)
		}
		items = append(items, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run steps: %w", err)
	}
	return items, nil
}

// FirstStep returns the run's first step in sequence order, ok=false when
// the run has no steps.
func (t *Tx) FirstStep(ctx context.Context, runID string) (RunStep, bool, error) {
	return firstStepWhere(ctx, t.tx, runID, "")
}

// FirstActionableStep returns the run's first step in sequence order that
// has not completed, ok=false when every step is completed (or the run has
// none). This is the step the orchestrator dispatches next.
func (t *Tx) FirstActionableStep(ctx context.Context, runID string) (RunStep, bool, error) {
	return firstStepWhere(ctx, t.tx, runID, "AND status != 'completed'")
}

func firstStepWhere(ctx context.Context, q querier, runID, cond string) (RunStep, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+stepColumns+` FROM run_steps
		WHERE run_id = ? `+cond+`
		ORDER BY step_no LIMIT 1
	`, runID)
	step, err := scanStep(row)
	if err == sql.ErrNoRows {
		return RunStep{}, false, nil
	}
	if err != nil {
		return RunStep{}, false, fmt.Errorf("first run step: %w", err)
	}
	return step, true, nil
}

func scanStep(r rowScanner) (RunStep, error) {
	var step RunStep
	var role, override, input, output, budget, finishedAt, errorText sql.NullString
	var status, approval string
	var requiresApproval int
	err := r.Scan(&step.ID, &step.RunID, &step.StepNo, &step.StepType, &role,
		&status, &requiresApproval, &approval, &override, &input, &output,
		&budget, &step.StartedAt, &finishedAt, &errorText)
	if err != nil {
		return RunStep{}, err
	}
	step.Role = fromNull(role)
	step.Status = StepStatus(status)
	step.RequiresApproval = requiresApproval != 0
	step.ApprovalStatus = ApprovalStatus(approval)
	step.FinishedAt = fromNull(finishedAt)
	step.ErrorText = fromNull(errorText)
	if step.OverridePayload, err = unmarshalPayload(override); err != nil {
		return RunStep{}, err
	}
	if step.Input, err = unmarshalPayload(input); err != nil {
		return RunStep{}, err
	}
	if step.Output, err = unmarshalPayload(output); err != nil {
		return RunStep{}, err
	}
	if step.Budget, err = unmarshalPayload(budget); err != nil {
		return RunStep{}, err
	}
	return step, nil
}
