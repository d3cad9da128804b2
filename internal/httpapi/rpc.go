package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/conductor-oss/conductor/internal/eventbus"
	"github.com/conductor-oss/conductor/internal/store"
)

const (
	rpcPingInterval = 30 * time.Second
	rpcPongTimeout  = 10 * time.Second
	rpcWriteTimeout = 5 * time.Second
)

var rpcUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	rpcCodeParseError     = -32700
	rpcCodeMethodNotFound = -32601
	rpcCodeInvalidParams  = -32602
	rpcCodeInternal       = -32603
)

// serveRPC upgrades to a WebSocket and dispatches jobs.* / worktrees.*
// tool calls per request, one JSON-RPC 2.0 response per request. The
// tool schema itself is registered by an external collaborator; this
// endpoint only implements the dispatch loop and method table.
func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	conn, err := rpcUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(rpcPingInterval + rpcPongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(rpcPingInterval + rpcPongTimeout))

	ticker := time.NewTicker(rpcPingInterval)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_ = conn.SetWriteDeadline(time.Now().Add(rpcWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			<-ticker.C
		}
	}()

	ctx := r.Context()
	for {
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		result, rerr := s.dispatchRPC(ctx, req.Method, req.Params)
		if rerr != nil {
			resp.Error = rerr
		} else {
			resp.Result = result
		}

		_ = conn.SetWriteDeadline(time.Now().Add(rpcWriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatchRPC(ctx context.Context, method string, params json.RawMessage) (any, *rpcError) {
	switch method {
	case "jobs.create":
		var req createJobRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpcError{Code: rpcCodeInvalidParams, Message: err.Error()}
		}
		branchName, featureID := req.BranchName, req.FeatureID
		if branchName == "" {
			branchName, featureID = deriveBranchName(req.Spec.Prompt, req.FeatureID)
		}
		job, err := s.Store.CreateJob(ctx, store.CreateJobInput{
			RepoURL: req.RepoURL, BaseRef: req.BaseRef, BranchName: branchName,
			FeatureID: featureID, FeaturePart: req.FeaturePart, WorkerType: req.WorkerType,
			PushMode: req.PushMode, UseWorktree: req.UseWorktree, Spec: req.Spec,
			DependsOn: req.DependsOn,
		})
		if err != nil {
			return nil, &rpcError{Code: rpcCodeInternal, Message: err.Error()}
		}
		if s.Bus != nil {
			s.Bus.Publish(eventbus.NewJobCreated(job.ID, job))
		}
		return job, nil

	case "jobs.get":
		var req struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpcError{Code: rpcCodeInvalidParams, Message: err.Error()}
		}
		job, err := s.Store.GetJob(ctx, req.ID)
		if err != nil {
			return nil, &rpcError{Code: rpcCodeInternal, Message: err.Error()}
		}
		return job, nil

	case "jobs.list":
		var req store.ListFilter
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, &rpcError{Code: rpcCodeInvalidParams, Message: err.Error()}
			}
		}
		jobs, err := s.Store.ListJobs(ctx, req)
		if err != nil {
			return nil, &rpcError{Code: rpcCodeInternal, Message: err.Error()}
		}
		return jobs, nil

	case "jobs.complete":
		var req struct {
			ID string `json:"id"`
			completeJobRequest
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpcError{Code: rpcCodeInvalidParams, Message: err.Error()}
		}
		job, err := s.Store.UpdateStatus(ctx, req.ID, req.Status, store.UpdateStatusOpts{
			ExpectedStatuses: []store.Status{store.StatusRunning, store.StatusAwaitingInput},
			ResultSummary:    req.ResultSummary,
			SessionID:        req.SessionID,
			ResumeRequested:  req.ResumeRequested,
		})
		if err != nil {
			return nil, &rpcError{Code: rpcCodeInternal, Message: err.Error()}
		}
		if s.Bus != nil {
			s.Bus.Publish(eventbus.NewJobUpdated(job.ID, job))
		}
		return job, nil

	case "jobs.continue":
		var req struct {
			ID string `json:"id"`
			continueJobRequest
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpcError{Code: rpcCodeInvalidParams, Message: err.Error()}
		}
		job, err := s.Store.Continue(ctx, req.ID, req.Prompt, req.ForceResume)
		if err != nil {
			return nil, &rpcError{Code: rpcCodeInternal, Message: err.Error()}
		}
		if s.Bus != nil {
			s.Bus.Publish(eventbus.NewJobUpdated(job.ID, job))
		}
		return job, nil

	case "jobs.delete":
		var req struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpcError{Code: rpcCodeInvalidParams, Message: err.Error()}
		}
		job, err := s.Store.GetJob(ctx, req.ID)
		if err != nil {
			return nil, &rpcError{Code: rpcCodeInternal, Message: err.Error()}
		}
		if err := s.Store.DeleteJob(ctx, req.ID); err != nil {
			return nil, &rpcError{Code: rpcCodeInternal, Message: err.Error()}
		}
		if job.WorktreePath != "" {
			if inUse, _ := s.Store.IsWorktreeInUse(ctx, job.WorktreePath, nil); !inUse {
				_ = s.Worktrees.Remove(ctx, job.WorktreePath)
			}
		}
		if s.Bus != nil {
			s.Bus.Publish(eventbus.NewJobDeleted(req.ID))
		}
		return map[string]bool{"deleted": true}, nil

	case "worktrees.list":
		infos, err := s.Worktrees.List(ctx, s.Store)
		if err != nil {
			return nil, &rpcError{Code: rpcCodeInternal, Message: err.Error()}
		}
		return infos, nil

	case "worktrees.remove":
		var req struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpcError{Code: rpcCodeInvalidParams, Message: err.Error()}
		}
		inUse, err := s.Store.IsWorktreeInUse(ctx, req.Path, nil)
		if err != nil {
			return nil, &rpcError{Code: rpcCodeInternal, Message: err.Error()}
		}
		if inUse {
			return nil, &rpcError{Code: rpcCodeInvalidParams, Message: "worktree is in use"}
		}
		if err := s.Worktrees.Remove(ctx, req.Path); err != nil {
			return nil, &rpcError{Code: rpcCodeInternal, Message: err.Error()}
		}
		return map[string]bool{"removed": true}, nil

	default:
		return nil, &rpcError{Code: rpcCodeMethodNotFound, Message: "unknown method: " + method}
	}
}
