package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zaler23/writer/internal/payload"
	"github.com/zaler23/writer/internal/store"
)

type projectCreateRequest struct {
	Name    string  `json:"name"`
	Genre   *string `json:"genre"`
	Premise *string `json:"premise"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectCreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, fmt.Errorf("name is required: %w", errBadRequest))
		return
	}

	now := store.FormatTime(s.clock.Now())
	p := store.Project{
		ID:        s.ids.New("proj"),
		Name:      req.Name,
		Genre:     deref(req.Genre),
		Premise:   deref(req.Premise),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.WithTx(r.Context(), func(tx *store.Tx) error {
		return tx.InsertProject(r.Context(), p)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectOut(p))
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	limit, after, err := pageParams(r, 50)
	if err != nil {
		writeError(w, err)
		return
	}
	items, next, err := s.store.ListProjects(r.Context(), limit, after)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(mapSlice(items, toProjectOut), next))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectOut(p))
}

type projectUpdateRequest struct {
	Name    *string `json:"name"`
	Genre   *string `json:"genre"`
	Premise *string `json:"premise"`
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req projectUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeError(w, fmt.Errorf("name must not be blank: %w", errBadRequest))
		return
	}

	var p store.Project
	err := s.store.WithTx(r.Context(), func(tx *store.Tx) error {
		var err error
		p, err = tx.GetProject(r.Context(), r.PathValue("id"))
		if err != nil {
			return err
		}
		if req.Name != nil {
			p.Name = *req.Name
		}
		if req.Genre != nil {
			p.Genre = *req.Genre
		}
		if req.Premise != nil {
			p.Premise = *req.Premise
		}
		p.UpdatedAt = store.FormatTime(s.clock.Now())
		return tx.UpdateProject(r.Context(), p)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectOut(p))
}

// handleGetSettings returns the project's settings, creating an empty
// settings row on first access.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var ps store.ProjectSettings
	err := s.store.WithTx(r.Context(), func(tx *store.Tx) error {
		ok, err := tx.ProjectExists(r.Context(), projectID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("project %s: %w", projectID, store.ErrNotFound)
		}
		ps, err = tx.GetProjectSettings(r.Context(), projectID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		now := store.FormatTime(s.clock.Now())
		ps = store.ProjectSettings{
			ID:        s.ids.New("pset"),
			ProjectID: projectID,
			Settings:  payload.Value{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.InsertProjectSettings(r.Context(), ps)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsOut(ps))
}

type settingsPutRequest struct {
	Settings payload.Value `json:"settings_json"`
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	projectID := r.PathValue("id")

	var ps store.ProjectSettings
	err := s.store.WithTx(r.Context(), func(tx *store.Tx) error {
		ok, err := tx.ProjectExists(r.Context(), projectID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("project %s: %w", projectID, store.ErrNotFound)
		}
		now := store.FormatTime(s.clock.Now())
		if err := tx.UpsertProjectSettings(r.Context(), store.ProjectSettings{
			ID:        s.ids.New("pset"),
			ProjectID: projectID,
			Settings:  req.Settings,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		ps, err = tx.GetProjectSettings(r.Context(), projectID)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsOut(ps))
}
