// Package server exposes the trigger surface over HTTP: webhook events,
// manual dispatch, run status, step logs, and ledger verification.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"matrixci/internal/engine"
	"matrixci/internal/ledger"
	"matrixci/internal/security"
	"matrixci/internal/storage"
	"matrixci/internal/trigger"
	"matrixci/internal/workflow"
)

// SignatureHeader carries the HMAC of a webhook delivery body.
const SignatureHeader = "X-Matrixci-Signature"

// Server evaluates incoming events against its loaded workflows and runs
// the ones that match.
type Server struct {
	logger    *log.Logger
	runner    *engine.Runner
	store     *storage.RunStore
	ledger    *ledger.Ledger
	workflows []*workflow.Workflow
	secret    string

	mu   sync.Mutex
	runs map[string]*RunState
	wg   sync.WaitGroup
}

// RunState is the registry entry for one run.
type RunState struct {
	ID       string            `json:"id"`
	Workflow string            `json:"workflow"`
	Status   engine.Status     `json:"status"`
	Result   *engine.RunResult `json:"result,omitempty"`
}

// New assembles a server. secret may be empty to disable webhook signature
// checks (local use only).
func New(runner *engine.Runner, store *storage.RunStore, ldg *ledger.Ledger, workflows []*workflow.Workflow, secret string, logger *log.Logger) *Server {
	return &Server{
		logger:    logger,
		runner:    runner,
		store:     store,
		ledger:    ldg,
		workflows: workflows,
		secret:    secret,
		runs:      make(map[string]*RunState),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/events", s.handleEvent)
	r.Post("/dispatch", s.handleDispatch)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{runID}", s.handleGetRun)
	r.Get("/runs/{runID}/logs/{job}/{step}", s.handleStepLog)
	r.Get("/ledger/verify", s.handleVerifyLedger)
	return r
}

// Wait blocks until all in-flight runs finish. Used by tests and shutdown.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startedRun struct {
	RunID    string `json:"run_id"`
	Workflow string `json:"workflow"`
}

// handleEvent accepts a normalized trigger event, verifies its signature,
// and starts a run for every workflow whose filters match. A filter
// mismatch is not an error: the delivery is acknowledged with no runs.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	if s.secret != "" {
		if !security.VerifyWebhookSignature(s.secret, body, r.Header.Get(SignatureHeader)) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var ev trigger.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}
	if !ev.Valid() {
		http.Error(w, "unknown event type", http.StatusBadRequest)
		return
	}

	started := s.startMatching(ev, "")
	writeJSON(w, http.StatusAccepted, map[string]any{"started": started})
}

type dispatchRequest struct {
	Workflow string `json:"workflow,omitempty"`
	// Reason is free text recorded with the run. It has no effect on
	// execution.
	Reason string `json:"reason,omitempty"`
}

// handleDispatch starts a manual run, optionally scoped to one workflow.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "invalid dispatch payload", http.StatusBadRequest)
		return
	}

	ev := trigger.Event{Type: trigger.EventDispatch}
	if req.Reason != "" {
		ev.Inputs = map[string]string{"reason": req.Reason}
	}

	started := s.startMatching(ev, req.Workflow)
	if len(started) == 0 {
		http.Error(w, "no workflow accepts manual dispatch", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"started": started})
}

func (s *Server) startMatching(ev trigger.Event, onlyWorkflow string) []startedRun {
	started := make([]startedRun, 0, len(s.workflows))
	for _, wf := range s.workflows {
		if onlyWorkflow != "" && wf.Name != onlyWorkflow {
			continue
		}
		if !trigger.ShouldRun(wf, ev) {
			s.logger.Debug("trigger filters did not match", "workflow", wf.Name, "event", ev.Type)
			continue
		}
		started = append(started, startedRun{RunID: s.startRun(wf, ev), Workflow: wf.Name})
	}
	return started
}

func (s *Server) startRun(wf *workflow.Workflow, ev trigger.Event) string {
	id := uuid.NewString()

	s.mu.Lock()
	s.runs[id] = &RunState{ID: id, Workflow: wf.Name, Status: engine.StatusRunning}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := s.runner.Run(context.Background(), id, wf, ev)

		s.mu.Lock()
		defer s.mu.Unlock()
		state := s.runs[id]
		if err != nil {
			state.Status = engine.StatusFailure
			s.logger.Error("run aborted", "run", id, "err", err)
			return
		}
		state.Status = result.Status
		state.Result = result
	}()
	return id
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	list := make([]*RunState, 0, len(s.runs))
	for _, state := range s.runs {
		list = append(list, &RunState{ID: state.ID, Workflow: state.Workflow, Status: state.Status})
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")

	// Snapshot under the lock; the run goroutine mutates the registry entry
	// when it finishes.
	s.mu.Lock()
	state, ok := s.runs[id]
	var snapshot RunState
	if ok {
		snapshot = *state
	}
	s.mu.Unlock()

	if !ok {
		// Fall back to runs persisted by earlier processes.
		var result engine.RunResult
		if err := s.store.LoadResult(id, &result); err != nil {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, &RunState{ID: id, Workflow: result.Workflow, Status: result.Status, Result: &result})
		return
	}
	writeJSON(w, http.StatusOK, &snapshot)
}

func (s *Server) handleStepLog(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.ReadStepLog(chi.URLParam(r, "runID"), chi.URLParam(r, "job"), chi.URLParam(r, "step"))
	if err != nil {
		http.Error(w, "log not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(data)
}

func (s *Server) handleVerifyLedger(w http.ResponseWriter, _ *http.Request) {
	if s.ledger == nil {
		http.Error(w, "ledger disabled", http.StatusNotFound)
		return
	}
	if err := s.ledger.VerifyChain(); err != nil {
		http.Error(w, "ledger verification failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
