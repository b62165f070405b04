package store

import (
	"context"
	"database/sql"
	"fmt"
)

const chapterColumns = `id, project_id, volume_no, chapter_no, title, status,
	needs_review, review_reason, plan_json, traversal_profile_id,
	style_guide_id, lock_version, created_at, updated_at`

// InsertChapter inserts a new chapter row. Returns ErrDuplicate when the
// (project, volume, chapter) triple is already taken.
func (t *Tx) InsertChapter(ctx context.Context, c Chapter) error {
	plan, err := marshalPayload(c.Plan)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO chapters (`+chapterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.ProjectID, c.VolumeNo, c.ChapterNo, nullable(c.Title), c.Status,
		boolToInt(c.NeedsReview), nullable(c.ReviewReason), plan,
		nullable(c.TraversalProfileID), nullable(c.StyleGuideID),
		c.LockVersion, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("chapter %d/%d in project %s: %w", c.VolumeNo, c.ChapterNo, c.ProjectID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}
	return nil
}

// UpdateChapter writes the caller-mutable chapter fields.
func (t *Tx) UpdateChapter(ctx context.Context, c Chapter) error {
	plan, err := marshalPayload(c.Plan)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		UPDATE chapters SET title = ?, plan_json = ?, traversal_profile_id = ?,
			style_guide_id = ?, updated_at = ?
		WHERE id = ?
	`, nullable(c.Title), plan, nullable(c.TraversalProfileID),
		nullable(c.StyleGuideID), c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	return nil
}

// UpdateChapterState writes the engine-owned chapter fields: status and
// the review flag.
func (t *Tx) UpdateChapterState(ctx context.Context, c Chapter) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE chapters SET status = ?, needs_review = ?, review_reason = ?, updated_at = ?
		WHERE id = ?
	`, c.Status, boolToInt(c.NeedsReview), nullable(c.ReviewReason), c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update chapter state: %w", err)
	}
	return nil
}

// GetChapter returns a chapter by ID, or ErrNotFound.
func (s *Store) GetChapter(ctx context.Context, id string) (Chapter, error) {
	return getChapter(ctx, s.db, id)
}

// GetChapter returns a chapter by ID within the transaction.
func (t *Tx) GetChapter(ctx context.Context, id string) (Chapter, error) {
	return getChapter(ctx, t.tx, id)
}

func getChapter(ctx context.Context, q querier, id string) (Chapter, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+chapterColumns+` FROM chapters WHERE id = ?
	`, id)
	c, err := scanChapter(row)
	if err == sql.ErrNoRows {
		return Chapter{}, fmt.Errorf("chapter %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Chapter{}, fmt.Errorf("get chapter: %w", err)
	}
	return c, nil
}

// ListChapters returns chapters ordered by ID with keyset pagination.
// projectID filters to one project when non-empty.
func (s *Store) ListChapters(ctx context.Context, projectID string, limit int, after string) ([]Chapter, string, error) {
	query := "SELECT " + chapterColumns + " FROM chapters WHERE id > ?"
	args := []any{after}
	if projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	items := []Chapter{}
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, "", fmt.Errorf("scan chapter: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate chapters: %w", err)
	}

	items, next := pageOf(items, limit, func(c Chapter) string { return c.ID })
	return items, next, nil
}

func scanChapter(r rowScanner) (Chapter, error) {
	var c Chapter
	var title, reviewReason, plan, traversal, styleGuide sql.NullString
	var needsReview int
	err := r.Scan(&c.ID, &c.ProjectID, &c.VolumeNo, &c.ChapterNo, &title,
		&c.Status, &needsReview, &reviewReason, &plan, &traversal,
		&styleGuide, &c.LockVersion, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Chapter{}, err
	}
	c.Title = fromNull(title)
	c.NeedsReview = needsReview != 0
	c.ReviewReason = fromNull(reviewReason)
	c.TraversalProfileID = fromNull(traversal)
	c.StyleGuideID = fromNull(styleGuide)
	if c.Plan, err = unmarshalPayload(plan); err != nil {
		return Chapter{}, err
	}
	return c, nil
}

const segmentColumns = `id, chapter_id, segment_no, title, pov_node_id,
	segment_type, content_text, attrs_json, created_at, updated_at`

// UpsertChapterSegment inserts or replaces the segment at
// (chapter, segment_no). A previously soft-deleted segment is revived.
// Returns the stored row.
func (t *Tx) UpsertChapterSegment(ctx context.Context, seg ChapterSegment) (ChapterSegment, error) {
	attrs, err := marshalPayload(seg.Attrs)
	if err != nil {
		return ChapterSegment{}, err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO chapter_segments (
			id, chapter_id, segment_no, title, pov_node_id, segment_type,
			content_text, attrs_json, is_deleted, deleted_at, deleted_reason,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, NULL, ?, ?)
		ON CONFLICT(chapter_id, segment_no) DO UPDATE SET
			title = excluded.title,
			pov_node_id = excluded.pov_node_id,
			segment_type = excluded.segment_type,
			content_text = excluded.content_text,
			attrs_json = excluded.attrs_json,
			is_deleted = 0,
			deleted_at = NULL,
			deleted_reason = NULL,
			updated_at = excluded.updated_at
	`,
		seg.ID, seg.ChapterID, seg.SegmentNo, nullable(seg.Title),
		nullable(seg.POVNodeID), nullable(seg.SegmentType),
		nullable(seg.ContentText), attrs, seg.CreatedAt, seg.UpdatedAt,
	)
	if err != nil {
		return ChapterSegment{}, fmt.Errorf("upsert chapter segment: %w", err)
	}

	row := t.tx.QueryRowContext(ctx, `
		SELECT `+segmentColumns+` FROM chapter_segments
		WHERE chapter_id = ? AND segment_no = ? AND is_deleted = 0
	`, seg.ChapterID, seg.SegmentNo)
	stored, err := scanSegment(row)
	if err != nil {
		return ChapterSegment{}, fmt.Errorf("read back segment: %w", err)
	}
	return stored, nil
}

// ListChapterSegments returns the live segments of a chapter in order.
func (s *Store) ListChapterSegments(ctx context.Context, chapterID string) ([]ChapterSegment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+segmentColumns+` FROM chapter_segments
		WHERE chapter_id = ? AND is_deleted = 0
		ORDER BY segment_no
	`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list chapter segments: %w", err)
	}
	defer rows.Close()

	items := []ChapterSegment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		items = append(items, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return items, nil
}

func scanSegment(r rowScanner) (ChapterSegment, error) {
	var seg ChapterSegment
	var title, pov, segType, content, attrs sql.NullString
	err := r.Scan(&seg.ID, &seg.ChapterID, &seg.SegmentNo, &title, &pov,
		&segType, &content, &attrs, &seg.CreatedAt, &seg.UpdatedAt)
	if err != nil {
		return ChapterSegment{}, err
	}
	seg.Title = fromNull(title)
	seg.POVNodeID = fromNull(pov)
	seg.SegmentType = fromNull(segType)
	seg.ContentText = fromNull(content)
	if seg.Attrs, err = unmarshalPayload(attrs); err != nil {
		return ChapterSegment{}, err
	}
	return seg, nil
}

const reviewColumns = `id, chapter_id, version_id, review_type, report_json,
	source_run_id, source_step_id, created_at`

// ListChapterReviews returns review reports for a chapter with keyset
// pagination.
func (s *Store) ListChapterReviews(ctx context.Context, chapterID string, limit int, after string) ([]ChapterReview, string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reviewColumns+` FROM chapter_reviews
		WHERE chapter_id = ? AND id > ?
		ORDER BY id LIMIT ?
	`, chapterID, after, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("list chapter reviews: %w", err)
	}
	defer rows.Close()

	items := []ChapterReview{}
	for rows.Next() {
		var rv ChapterReview
		var report string
		var runID, stepID sql.NullString
		err := rows.Scan(&rv.ID, &rv.ChapterID, &rv.VersionID, &rv.ReviewType,
			&report, &runID, &stepID, &rv.CreatedAt)
		if err != nil {
			return nil, "", fmt.Errorf("scan review: %w", err)
		}
		rv.SourceRunID = fromNull(runID)
		rv.SourceStepID = fromNull(stepID)
		if rv.Report, err = unmarshalPayload(sql.NullString{String: report, Valid: true}); err != nil {
			return nil, "", err
		}
		items = append(items, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate reviews: %w", err)
	}

	items, next := pageOf(items, limit, func(rv ChapterReview) string { return rv.ID })
	return items, next, nil
}

const versionColumns = `id, chapter_id, version_no, stage, content_text,
	source_run_id, source_step_id, created_at`

// NextVersionNo computes the next version number for a chapter:
// max(existing)+1, or 1 when the chapter has no versions. Must be called
// in the same transaction as the subsequent InsertTextVersion so numbers
// stay gap-free under concurrent completion attempts.
func (t *Tx) NextVersionNo(ctx context.Context, chapterID string) (int, error) {
	var next int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version_no), 0) + 1 FROM chapter_text_versions
		WHERE chapter_id = ?
	`, chapterID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next version no: %w", err)
	}
	return next, nil
}

// InsertTextVersion appends an immutable chapter text version.
func (t *Tx) InsertTextVersion(ctx context.Context, v ChapterTextVersion) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO chapter_text_versions (`+versionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.ChapterID, v.VersionNo, v.Stage, v.ContentText,
		nullable(v.SourceRunID), nullable(v.SourceStepID), v.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("version %d for chapter %s: %w", v.VersionNo, v.ChapterID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert text version: %w", err)
	}
	return nil
}

// ListTextVersions returns a chapter's text versions with keyset
// pagination.
func (s *Store) ListTextVersions(ctx context.Context, chapterID string, limit int, after string) ([]ChapterTextVersion, string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+versionColumns+` FROM chapter_text_versions
		WHERE chapter_id = ? AND id > ?
		ORDER BY id LIMIT ?
	`, chapterID, after, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("list text versions: %w", err)
	}
	defer rows.Close()

	items := []ChapterTextVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, "", fmt.Errorf("scan text version: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate text versions: %w", err)
	}

	items, next := pageOf(items, limit, func(v ChapterTextVersion) string { return v.ID })
	return items, next, nil
}

func scanVersion(r rowScanner) (ChapterTextVersion, error) {
	var v ChapterTextVersion
	var runID, stepID sql.NullString
	err := r.Scan(&v.ID, &v.ChapterID, &v.VersionNo, &v.Stage, &v.ContentText,
		&runID, &stepID, &v.CreatedAt)
	if err != nil {
		return ChapterTextVersion{}, err
	}
	v.SourceRunID = fromNull(runID)
	v.SourceStepID = fromNull(stepID)
	return v, nil
}
