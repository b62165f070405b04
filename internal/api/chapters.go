package api

import (
	"fmt"
	"net/http"

	"github.com/zaler23/writer/internal/payload"
	"github.com/zaler23/writer/internal/store"
)

type chapterCreateRequest struct {
	ProjectID          string        `json:"project_id"`
	VolumeNo           *int          `json:"volume_no"`
	ChapterNo          *int          `json:"chapter_no"`
	Title              *string       `json:"title"`
	Plan               payload.Value `json:"plan_json"`
	TraversalProfileID *string       `json:"traversal_profile_id"`
	StyleGuideID       *string       `json:"style_guide_id"`
}

func (s *Server) handleCreateChapter(w http.ResponseWriter, r *http.Request) {
	var req chapterCreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ProjectID == "" {
		writeError(w, fmt.Errorf("project_id is required: %w", errBadRequest))
		return
	}
	if req.ChapterNo == nil || *req.ChapterNo < 1 {
		writeError(w, fmt.Errorf("chapter_no must be a positive integer: %w", errBadRequest))
		return
	}
	volumeNo := 1
	if req.VolumeNo != nil {
		if *req.VolumeNo < 1 {
			writeError(w, fmt.Errorf("volume_no must be a positive integer: %w", errBadRequest))
			return
		}
		volumeNo = *req.VolumeNo
	}

	now := store.FormatTime(s.clock.Now())
	c := store.Chapter{
		ID:                 s.ids.New("ch"),
		ProjectID:          req.ProjectID,
		VolumeNo:           volumeNo,
		ChapterNo:          *req.ChapterNo,
		Title:              deref(req.Title),
		Status:             store.ChapterPlanned,
		Plan:               req.Plan,
		TraversalProfileID: deref(req.TraversalProfileID),
		StyleGuideID:       deref(req.StyleGuideID),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	err := s.store.WithTx(r.Context(), func(tx *store.Tx) error {
		ok, err := tx.ProjectExists(r.Context(), c.ProjectID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("project %s: %w", c.ProjectID, store.ErrNotFound)
		}
		return tx.InsertChapter(r.Context(), c)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChapterOut(c))
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	limit, after, err := pageParams(r, 50)
	if err != nil {
		writeError(w, err)
		return
	}
	items, next, err := s.store.ListChapters(r.Context(), r.URL.Query().Get("project_id"), limit, after)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(mapSlice(items, toChapterOut), next))
}

func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetChapter(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChapterOut(c))
}

type chapterUpdateRequest struct {
	Title              *string        `json:"title"`
	Plan               *payload.Value `json:"plan_json"`
	TraversalProfileID *string        `json:"traversal_profile_id"`
	StyleGuideID       *string        `json:"style_guide_id"`
}

func (s *Server) handleUpdateChapter(w http.ResponseWriter, r *http.Request) {
	var req chapterUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var c store.Chapter
	err := s.store.WithTx(r.Context(), func(tx *store.Tx) error {
		var err error
		c, err = tx.GetChapter(r.Context(), r.PathValue("id"))
		if err != nil {
			return err
		}
		if req.Title != nil {
			c.Title = *req.Title
		}
		if req.Plan != nil {
			c.Plan = *req.Plan
		}
		if req.TraversalProfileID != nil {
			c.TraversalProfileID = *req.TraversalProfileID
		}
		if req.StyleGuideID != nil {
			c.StyleGuideID = *req.StyleGuideID
		}
		c.UpdatedAt = store.FormatTime(s.clock.Now())
		return tx.UpdateChapter(r.Context(), c)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChapterOut(c))
}

type segmentUpsertRequest struct {
	SegmentNo   *int          `json:"segment_no"`
	Title       *string       `json:"title"`
	POVNodeID   *string       `json:"pov_node_id"`
	SegmentType *string       `json:"segment_type"`
	ContentText *string       `json:"content_text"`
	Attrs       payload.Value `json:"attrs_json"`
}

func (s *Server) handleUpsertSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentUpsertRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SegmentNo == nil || *req.SegmentNo < 1 {
		writeError(w, fmt.Errorf("segment_no must be a positive integer: %w", errBadRequest))
		return
	}
	chapterID := r.PathValue("id")

	var stored store.ChapterSegment
	err := s.store.WithTx(r.Context(), func(tx *store.Tx) error {
		if _, err := tx.GetChapter(r.Context(), chapterID); err != nil {
			return err
		}
		now := store.FormatTime(s.clock.Now())
		var err error
		stored, err = tx.UpsertChapterSegment(r.Context(), store.ChapterSegment{
			ID:          s.ids.New("chseg"),
			ChapterID:   chapterID,
			SegmentNo:   *req.SegmentNo,
			Title:       deref(req.Title),
			POVNodeID:   deref(req.POVNodeID),
			SegmentType: deref(req.SegmentType),
			ContentText: deref(req.ContentText),
			Attrs:       req.Attrs,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSegmentOut(stored))
}

func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	chapterID := r.PathValue("id")
	if _, err := s.store.GetChapter(r.Context(), chapterID); err != nil {
		writeError(w, err)
		return
	}
	items, err := s.store.ListChapterSegments(r.Context(), chapterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(mapSlice(items, toSegmentOut), ""))
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	chapterID := r.PathValue("id")
	limit, after, err := pageParams(r, 50)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.store.GetChapter(r.Context(), chapterID); err != nil {
		writeError(w, err)
		return
	}
	items, next, err := s.store.ListChapterReviews(r.Context(), chapterID, limit, after)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(mapSlice(items, toReviewOut), next))
}

func (s *Server) handleListTextVersions(w http.ResponseWriter, r *http.Request) {
	chapterID := r.PathValue("id")
	limit, after, err := pageParams(r, 50)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.store.GetChapter(r.Context(), chapterID); err != nil {
		writeError(w, err)
		return
	}
	items, next, err := s.store.ListTextVersions(r.Context(), chapterID, limit, after)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(mapSlice(items, toVersionOut), next))
}
