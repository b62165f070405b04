package store

import (
	"context"
	"database/sql"
	"fmt"
)

const callColumns = `id, run_id, step_id, provider_id, model_id, purpose,
	request_hash, response_hash, usage_json, status, error_text, created_at`

// InsertLLMCall appends one ledger entry. The ledger is append-only:
// exactly one row per provider invocation attempt, never updated.
func (t *Tx) InsertLLMCall(ctx context.Context, c LLMCall) error {
	usage, err := marshalPayload(c.Usage)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO llm_calls (`+callColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, nullable(c.RunID), nullable(c.StepID), nullable(c.ProviderID),
		nullable(c.ModelID), nullable(c.Purpose), c.RequestHash,
		nullable(c.ResponseHash), usage, c.Status, nullable(c.ErrorText),
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

// ListLLMCalls returns all ledger entries for a run in creation order.
func (s *Store) ListLLMCalls(ctx context.Context, runID string) ([]LLMCall, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM llm_calls
		WHERE run_id = ?
		ORDER BY created_at, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list llm calls: %w", err)
	}
	defer rows.Close()

	items := []LLMCall{}
	for rows.Next() {
		var c LLMCall
		var runID, stepID, providerID, modelID, purpose sql.NullString
		var responseHash, usage, errorText sql.NullString
		err := rows.Scan(&c.ID, &runID, &stepID, &providerID, &modelID,
			&purpose, &c.RequestHash, &responseHash, &usage, &c.Status,
			&errorText, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan llm call: %w", err)
		}
		c.RunID = fromNull(runID)
		c.StepID = fromNull(stepID)
		c.ProviderID = fromNull(providerID)
		c.ModelID = fromNull(modelID)
		c.Purpose = fromNull(purpose)
		c.ResponseHash = fromNull(responseHash)
		c.ErrorText = fromNull(errorText)
		if c.Usage, err = unmarshalPayload(usage); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate llm calls: %w", err)
	}
	return items, nil
}
