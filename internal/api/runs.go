package api

import (
	"fmt"
	"net/http"

	"github.com/zaler23/writer/internal/engine"
	"github.com/zaler23/writer/internal/payload"
)

type runCreateRequest struct {
	ProjectID        string        `json:"project_id"`
	ChapterID        string        `json:"chapter_id"`
	SwarmProfileID   *string       `json:"swarm_profile_id"`
	RunType          string        `json:"run_type"`
	Input            payload.Value `json:"input_json"`
	Budget           payload.Value `json:"budget_json"`
	RequiresApproval bool          `json:"requires_approval"`
	AutoStart        *bool         `json:"auto_start"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runCreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ProjectID == "" || req.ChapterID == "" {
		writeError(w, fmt.Errorf("project_id and chapter_id are required: %w", errBadRequest))
		return
	}
	autoStart := true
	if req.AutoStart != nil {
		autoStart = *req.AutoStart
	}

	run, err := s.engine.CreateRun(r.Context(), engine.CreateRunParams{
		ProjectID:        req.ProjectID,
		ChapterID:        req.ChapterID,
		SwarmProfileID:   deref(req.SwarmProfileID),
		RunType:          req.RunType,
		Input:            req.Input,
		Budget:           req.Budget,
		RequiresApproval: req.RequiresApproval,
		AutoStart:        autoStart,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunOut(run))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunOut(run))
}

func (s *Server) handleListRunSteps(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if _, err := s.store.GetRun(r.Context(), runID); err != nil {
		writeError(w, err)
		return
	}
	steps, err := s.store.ListRunSteps(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(mapSlice(steps, toStepOut), ""))
}

func (s *Server) handleGetRunStep(w http.ResponseWriter, r *http.Request) {
	step, err := s.store.GetRunStep(r.Context(), r.PathValue("id"), r.PathValue("step_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStepOut(step))
}

func (s *Server) handlePauseRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.Pause(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunOut(run))
}

func (s *Server) handleResumeRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunOut(run))
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunOut(run))
}

func (s *Server) handleApproveStep(w http.ResponseWriter, r *http.Request) {
	step, err := s.engine.Approve(r.Context(), r.PathValue("id"), r.PathValue("step_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStepOut(step))
}

type overrideRequest struct {
	ContentText string `json:"content_text"`
}

func (s *Server) handleOverrideStep(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ContentText == "" {
		writeError(w, fmt.Errorf("content_text is required: %w", errBadRequest))
		return
	}
	step, err := s.engine.Override(r.Context(), r.PathValue("id"), r.PathValue("step_id"), req.ContentText)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStepOut(step))
}
