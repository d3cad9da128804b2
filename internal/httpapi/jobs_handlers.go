package httpapi

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/conductor-oss/conductor/internal/apperrors"
	"github.com/conductor-oss/conductor/internal/eventbus"
	"github.com/conductor-oss/conductor/internal/store"
)

type createJobRequest struct {
	RepoURL     string         `json:"repo_url" yaml:"repo_url"`
	BaseRef     string         `json:"base_ref" yaml:"base_ref"`
	BranchName  string         `json:"branch_name" yaml:"branch_name"`
	FeatureID   string         `json:"feature_id" yaml:"feature_id"`
	FeaturePart string         `json:"feature_part" yaml:"feature_part"`
	WorkerType  string         `json:"worker_type" yaml:"worker_type"`
	PushMode    store.PushMode `json:"push_mode" yaml:"push_mode"`
	UseWorktree bool           `json:"use_worktree" yaml:"use_worktree"`
	Spec        store.JobSpec  `json:"spec" yaml:"spec"`
	DependsOn   []string       `json:"depends_on" yaml:"depends_on"`
}

// isYAMLContentType reports whether a submitter posted YAML frontmatter-style
// context instead of raw JSON, keyed off the request's Content-Type.
func isYAMLContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/yaml" || mediaType == "text/yaml" ||
		strings.HasSuffix(mediaType, "+yaml")
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	var err error
	if isYAMLContentType(r) {
		err = yaml.NewDecoder(r.Body).Decode(&req)
	} else {
		err = json.NewDecoder(r.Body).Decode(&req)
	}
	if err != nil {
		writeError(w, apperrors.ErrValidation)
		return
	}

	branchName, featureID := req.BranchName, req.FeatureID
	if branchName == "" {
		branchName, featureID = deriveBranchName(req.Spec.Prompt, req.FeatureID)
	}

	job, err := s.Store.CreateJob(r.Context(), store.CreateJobInput{
		RepoURL: req.RepoURL, BaseRef: req.BaseRef, BranchName: branchName,
		FeatureID: featureID, FeaturePart: req.FeaturePart, WorkerType: req.WorkerType,
		PushMode: req.PushMode, UseWorktree: req.UseWorktree, Spec: req.Spec,
		DependsOn: req.DependsOn,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if s.Bus != nil {
		s.Bus.Publish(eventbus.NewJobCreated(job.ID, job))
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jobs, err := s.Store.ListJobs(r.Context(), store.ListFilter{
		Status:     store.Status(q.Get("status")),
		WorkerType: q.Get("worker_type"),
		FeatureID:  q.Get("feature_id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.Store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.Store.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.Store.DeleteJob(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	if job.WorktreePath != "" {
		if inUse, _ := s.Store.IsWorktreeInUse(r.Context(), job.WorktreePath, nil); !inUse {
			_ = s.Worktrees.Remove(r.Context(), job.WorktreePath)
		}
	}

	if s.Bus != nil {
		s.Bus.Publish(eventbus.NewJobDeleted(id))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Store.GetJob(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	logs, err := s.Store.ReadLogs(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

type appendLogRequest struct {
	Stream string `json:"stream"`
	Text   string `json:"text"`
}

func (s *Server) appendLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req appendLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrValidation)
		return
	}

	if err := s.Store.AppendLog(r.Context(), id, req.Stream, req.Text); err != nil {
		writeError(w, err)
		return
	}
	if s.Bus != nil {
		s.Bus.Publish(eventbus.NewLogAppended(id, req.Stream, req.Text))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getDependencies(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dependsOn, dependedBy, err := s.Store.ListDependencies(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"depends_on": dependsOn, "depended_by": dependedBy,
	})
}

func (s *Server) claimJob(w http.ResponseWriter, r *http.Request) {
	workerType := r.URL.Query().Get("worker_type")
	if workerType == "" {
		workerType = "default"
	}

	job, err := s.Store.ClaimOldest(r.Context(), workerType)
	if err != nil {
		writeError(w, err)
		return
	}
	if job == nil {
		writeError(w, apperrors.ErrNotFound)
		return
	}
	if s.Bus != nil {
		s.Bus.Publish(eventbus.NewJobUpdated(job.ID, job))
	}
	writeJSON(w, http.StatusOK, job)
}

type completeJobRequest struct {
	Status          store.Status         `json:"status"`
	ResultSummary   *store.ResultSummary `json:"result_summary"`
	SessionID       *string              `json:"session_id"`
	ResumeRequested *bool                `json:"resume_requested"`
}

func (s *Server) completeJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req completeJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrValidation)
		return
	}

	job, err := s.Store.UpdateStatus(r.Context(), id, req.Status, store.UpdateStatusOpts{
		ExpectedStatuses: []store.Status{store.StatusRunning, store.StatusAwaitingInput},
		ResultSummary:    req.ResultSummary,
		SessionID:        req.SessionID,
		ResumeRequested:  req.ResumeRequested,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if s.Bus != nil {
		s.Bus.Publish(eventbus.NewJobUpdated(job.ID, job))
	}
	writeJSON(w, http.StatusOK, job)
}

type continueJobRequest struct {
	Prompt      string `json:"prompt"`
	ForceResume bool   `json:"force_resume"`
}

func (s *Server) continueJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req continueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrValidation)
		return
	}

	job, err := s.Store.Continue(r.Context(), id, req.Prompt, req.ForceResume)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.Bus != nil {
		s.Bus.Publish(eventbus.NewJobUpdated(job.ID, job))
	}
	writeJSON(w, http.StatusOK, job)
}

type cleanupJobsRequest struct {
	Statuses   []store.Status `json:"statuses"`
	MaxAgeDays int            `json:"max_age_days"`
}

func (s *Server) cleanupJobs(w http.ResponseWriter, r *http.Request) {
	var req cleanupJobsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrValidation)
		return
	}

	removed, err := s.Store.DeleteJobs(r.Context(), store.DeleteFilter{
		Statuses: req.Statuses, MaxAgeDays: req.MaxAgeDays,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}
