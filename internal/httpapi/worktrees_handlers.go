package httpapi

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/conductor-oss/conductor/internal/apperrors"
	"github.com/conductor-oss/conductor/internal/eventbus"
	"github.com/conductor-oss/conductor/internal/worktree"
)

func (s *Server) listWorktrees(w http.ResponseWriter, r *http.Request) {
	infos, err := s.Worktrees.List(r.Context(), s.Store)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) deleteWorktree(w http.ResponseWriter, r *http.Request) {
	encoded := chi.URLParam(r, "path")
	path, err := url.QueryUnescape(encoded)
	if err != nil {
		writeError(w, apperrors.ErrValidation)
		return
	}

	inUse, err := s.Store.IsWorktreeInUse(r.Context(), path, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	if inUse {
		writeError(w, apperrors.ErrValidation)
		return
	}

	if err := s.Worktrees.Remove(r.Context(), path); err != nil {
		writeError(w, err)
		return
	}
	if s.Bus != nil {
		s.Bus.Publish(eventbus.NewWorktreeChanged("", map[string]string{"path": path}))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cleanupWorktrees(w http.ResponseWriter, r *http.Request) {
	infos, err := s.Worktrees.List(r.Context(), s.Store)
	if err != nil {
		writeError(w, err)
		return
	}

	var removed []string
	for _, info := range infos {
		if info.State != worktree.StateOrphaned {
			continue
		}
		if err := s.Worktrees.Remove(r.Context(), info.Path); err != nil {
			continue
		}
		removed = append(removed, info.Path)
	}

	if s.Bus != nil && len(removed) > 0 {
		s.Bus.Publish(eventbus.NewWorktreeChanged("", map[string]any{"removed": removed}))
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
