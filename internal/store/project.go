package store

import (
	"context"
	"database/sql"
	"fmt"
)

const projectColumns = "id, name, genre, premise, created_at, updated_at"

// InsertProject inserts a new project row.
func (t *Tx) InsertProject(ctx context.Context, p Project) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, nullable(p.Genre), nullable(p.Premise), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// UpdateProject writes the mutable project fields.
func (t *Tx) UpdateProject(ctx context.Context, p Project) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE projects SET name = ?, genre = ?, premise = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, nullable(p.Genre), nullable(p.Premise), p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// GetProject returns a project by ID, or ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	return getProject(ctx, s.db, id)
}

// GetProject returns a project by ID within the transaction.
func (t *Tx) GetProject(ctx context.Context, id string) (Project, error) {
	return getProject(ctx, t.tx, id)
}

func getProject(ctx context.Context, q querier, id string) (Project, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE id = ?
	`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ProjectExists reports whether the project row exists.
func (t *Tx) ProjectExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, "SELECT 1 FROM projects WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("project exists: %w", err)
	}
	return true, nil
}

// ListProjects returns up to limit projects ordered by ID, starting after
// the given cursor. nextAfter is non-empty when more rows exist.
func (s *Store) ListProjects(ctx context.Context, limit int, after string) ([]Project, string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE id > ? ORDER BY id LIMIT ?
	`, after, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, "", fmt.Errorf("scan project: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate projects: %w", err)
	}

	items, next := pageOf(items, limit, func(p Project) string { return p.ID })
	return items, next, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (Project, error) {
	var p Project
	var genre, premise sql.NullString
	if err := r.Scan(&p.ID, &p.Name, &genre, &premise, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Project{}, err
	}
	p.Genre = fromNull(genre)
	p.Premise = fromNull(premise)
	return p, nil
}

// pageOf trims a limit+1 probe result to one page and computes the keyset
// cursor for the next page.
func pageOf[T any](items []T, limit int, key func(T) string) ([]T, string) {
	if len(items) <= limit {
		return items, ""
	}
	items = items[:limit]
	return items, key(items[len(items)-1])
}

const settingsColumns = "id, project_id, settings_json, created_at, updated_at"

// GetProjectSettings returns the settings row for a project, or
// ErrNotFound if none exists yet.
func (s *Store) GetProjectSettings(ctx context.Context, projectID string) (ProjectSettings, error) {
	return getProjectSettings(ctx, s.db, projectID)
}

// GetProjectSettings returns the settings row within the transaction.
func (t *Tx) GetProjectSettings(ctx context.Context, projectID string) (ProjectSettings, error) {
	return getProjectSettings(ctx, t.tx, projectID)
}

func getProjectSettings(ctx context.Context, q querier, projectID string) (ProjectSettings, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+settingsColumns+` FROM project_settings WHERE project_id = ?
	`, projectID)

	var ps ProjectSettings
	var raw string
	err := row.Scan(&ps.ID, &ps.ProjectID, &raw, &ps.CreatedAt, &ps.UpdatedAt)
	if err == sql.ErrNoRows {
		return ProjectSettings{}, fmt.Errorf("settings for project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return ProjectSettings{}, fmt.Errorf("get project settings: %w", err)
	}
	if ps.Settings, err = unmarshalPayload(sql.NullString{String: raw, Valid: true}); err != nil {
		return ProjectSettings{}, err
	}
	return ps, nil
}

// InsertProjectSettings inserts the singleton settings row for a project.
func (t *Tx) InsertProjectSettings(ctx context.Context, ps ProjectSettings) error {
	settings, err := marshalPayload(ps.Settings)
	if err != nil {
		return err
	}
	if settings == nil {
		settings = "{}"
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO project_settings (`+settingsColumns+`)
		VALUES (?, ?, ?, ?, ?)
	`, ps.ID, ps.ProjectID, settings, ps.CreatedAt, ps.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project settings: %w", err)
	}
	return nil
}

// UpsertProjectSettings replaces the settings blob, creating the row if the
// project has none yet. The row ID is stable across updates.
func (t *Tx) UpsertProjectSettings(ctx context.Context, ps ProjectSettings) error {
	settings, err := marshalPayload(ps.Settings)
	if err != nil {
		return err
	}
	if settings == nil {
		settings = "{}"
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO project_settings (`+settingsColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			settings_json = excluded.settings_json,
			updated_at = excluded.updated_at
	`, ps.ID, ps.ProjectID, settings, ps.CreatedAt, ps.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert project settings: %w", err)
	}
	return nil
}
