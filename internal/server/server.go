// Package server exposes prompt optimization jobs over JSON-RPC 2.0 and REST.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/copyleftdev/promptsearch/internal/config"
	apierrors "github.com/copyleftdev/promptsearch/internal/errors"
	"github.com/copyleftdev/promptsearch/internal/evaluator"
	"github.com/copyleftdev/promptsearch/internal/logging"
	"github.com/copyleftdev/promptsearch/internal/optimization"
	"github.com/copyleftdev/promptsearch/internal/storage"
)

const maxRequestBytes = 1 << 20

// Server implements the HTTP and JSON-RPC server for the optimization service.
// It manages optimization jobs and provides endpoints to start, monitor, and cancel them.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    storage.Store
	recorder optimization.Recorder
	remote   optimization.Evaluator

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	// Jobs that have not been stored yet
	jobs   map[string]*Job
	jobsMu sync.RWMutex // Protects the jobs map
}

// Option configures a Server.
type Option func(*Server)

// WithStore sets the result store. The store must already be initialized.
func WithStore(store storage.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithRecorder sets the telemetry recorder passed to every run.
func WithRecorder(r optimization.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithEvaluator sets the evaluator used by requests without weights.
func WithEvaluator(e optimization.Evaluator) Option {
	return func(s *Server) { s.remote = e }
}

// NewServer creates a new server instance with the given config and logger.
// Without options results are kept in memory and the remote evaluator is
// built from cfg.Evaluator.URL when set.
func NewServer(cfg *config.Config, logger *logging.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		recorder: optimization.NopRecorder{},
		baseCtx:  ctx,
		stop:     stop,
		jobs:     make(map[string]*Job),
	}
	if cfg.Evaluator.URL != "" {
		s.remote = evaluator.NewHTTPEvaluator(cfg.Evaluator.URL, cfg.Evaluator.Timeout)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		mem := storage.NewMemoryStore()
		_ = mem.Init(ctx)
		s.store = mem
	}
	return s
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Get("/results", s.handleListResults)
		r.Get("/results/{id}", s.handleResult)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// Start validates req and launches its run in the background.
func (s *Server) Start(req OptimizeRequest) (JobStatus, error) {
	id := uuid.NewString()
	jobLogger := s.logger.WithField("optimization_id", id)

	run := s.cfg.RunConfig()
	run.Logger = jobLogger.Zap()
	run.Recorder = s.recorder

	var job *Job
	run.OnTrial = func(t optimization.Trial) { job.observe(t) }

	p, err := s.build(req, run, s.remote)
	if err != nil {
		return JobStatus{}, err
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	job = newJob(id, p.strategy.Name(), p.space, p.budget, cancel)

	s.jobsMu.Lock()
	s.jobs[id] = job
	s.jobsMu.Unlock()

	jobLogger.Info("Optimization queued", map[string]interface{}{
		"algorithm":  job.Algorithm,
		"space_size": p.space.Size(),
		"budget":     p.budget,
	})

	s.wg.Add(1)
	go s.runOptimization(ctx, job, p.strategy, jobLogger)

	return job.snapshot(), nil
}

// runOptimization executes the optimization process in a goroutine
func (s *Server) runOptimization(ctx context.Context, job *Job, strategy optimization.Strategy, logger *logging.Logger) {
	defer s.wg.Done()
	defer close(job.done)
	defer job.cancel()

	job.setRunning()
	res := strategy.Optimize(ctx)
	status := job.finish(res)

	record := storage.Record{
		ID:        job.ID,
		Algorithm: res.AlgorithmName,
		Status:    status,
		Result:    res,
		SavedAt:   time.Now(),
	}
	if res.BestCandidate != nil {
		names := res.BestCandidate.Names(job.space)
		record.Best = &names
	}
	// The job context may be cancelled by now; persistence is not.
	// A stored job is served from the store from here on.
	if err := s.store.SaveResult(context.WithoutCancel(ctx), record); err != nil {
		logger.WithError(err).Error("Failed to persist result")
	} else {
		s.jobsMu.Lock()
		delete(s.jobs, job.ID)
		s.jobsMu.Unlock()
	}

	fields := map[string]interface{}{
		"status":      status,
		"trials":      len(res.Trials),
		"interrupted": res.Interrupted,
	}
	if res.BestScore != nil {
		fields["best_score"] = *res.BestScore
	}
	logger.Info("Optimization finished", fields)
}

func (s *Server) job(id string) (*Job, bool) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Status returns the status of a live or stored job.
func (s *Server) Status(ctx context.Context, id string) (JobStatus, error) {
	if job, ok := s.job(id); ok {
		return job.snapshot(), nil
	}
	record, err := s.storedRecord(ctx, id)
	if err != nil {
		return JobStatus{}, err
	}
	return recordStatus(record), nil
}

func recordStatus(record storage.Record) JobStatus {
	st := JobStatus{
		ID:        record.ID,
		Algorithm: record.Algorithm,
		Status:    record.Status,
		Best:      record.Best,
	}
	if res := record.Result; res != nil {
		st.Trials = len(res.Trials)
		st.Failed = res.FailedCount()
		st.BestScore = res.BestScore
		st.StartTime = res.StartTime.Format(time.RFC3339)
		st.EndTime = res.EndTime.Format(time.RFC3339)
		if !res.Interrupted {
			st.Progress = 1
		}
	}
	st.LastUpdated = record.SavedAt.Format(time.RFC3339)
	return st
}

// Cancel ends a running job. The run returns its partial result, which is
// stored with status cancelled.
func (s *Server) Cancel(ctx context.Context, id string) (JobStatus, error) {
	job, ok := s.job(id)
	if !ok {
		record, err := s.storedRecord(ctx, id)
		if err != nil {
			return JobStatus{}, err
		}
		return JobStatus{}, apierrors.Errorf(apierrors.CodeConflict, "cannot cancel optimization with status: %s", record.Status)
	}
	if status, ok := job.requestCancel(); !ok {
		return JobStatus{}, apierrors.Errorf(apierrors.CodeConflict, "cannot cancel optimization with status: %s", status)
	}
	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return job.snapshot(), nil
}

// ResultResponse is the final outcome of a job.
type ResultResponse struct {
	ID     string                           `json:"optimization_id"`
	Status string                           `json:"status"`
	Best   *optimization.CandidateNames     `json:"best,omitempty"`
	Result *optimization.OptimizationResult `json:"result"`
}

// Result returns the result of a finished job.
func (s *Server) Result(ctx context.Context, id string) (ResultResponse, error) {
	if job, ok := s.job(id); ok {
		res, status, done := job.finished()
		if !done {
			return ResultResponse{}, apierrors.Errorf(apierrors.CodeConflict, "optimization %s is still %s", id, status)
		}
		out := ResultResponse{ID: id, Status: status, Result: res}
		if res.BestCandidate != nil {
			names := res.BestCandidate.Names(job.space)
			out.Best = &names
		}
		return out, nil
	}
	record, err := s.storedRecord(ctx, id)
	if err != nil {
		return ResultResponse{}, err
	}
	return ResultResponse{ID: record.ID, Status: record.Status, Best: record.Best, Result: record.Result}, nil
}

func (s *Server) storedRecord(ctx context.Context, id string) (storage.Record, error) {
	record, ok, err := s.store.GetResult(ctx, id)
	if err != nil {
		return storage.Record{}, apierrors.Wrap(err, "failed to load result").WithOperation("storedRecord")
	}
	if !ok {
		return storage.Record{}, apierrors.Errorf(apierrors.CodeNotFound, "optimization %s not found", id)
	}
	return record, nil
}

// Close cancels running jobs and waits for them to store their results.
func (s *Server) Close() error {
	s.stop()
	s.wg.Wait()
	return nil
}

// rpcRequest is a JSON-RPC 2.0 request. Params may be an object or a
// one-element array holding the object.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type idParams struct {
	OptimizationID string `json:"optimization_id"`
}

func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return apierrors.New(apierrors.CodeInvalidParams, "missing required parameters")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil || len(list) != 1 {
			return apierrors.New(apierrors.CodeInvalidParams, "invalid parameter format, expected object")
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apierrors.Errorf(apierrors.CodeInvalidParams, "invalid parameters: %v", err)
	}
	return nil
}

func (p idParams) validate() error {
	if p.OptimizationID == "" {
		return apierrors.New(apierrors.CodeInvalidParams, "optimization_id is required")
	}
	return nil
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&request); err != nil {
		s.respondWithError(w, apierrors.New(apierrors.CodeParse, "Parse error"), nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, apierrors.New(apierrors.CodeInvalidRequest, "Invalid Request"), request.ID)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		var params OptimizeRequest
		if err = decodeParams(request.Params, &params); err == nil {
			result, err = s.Start(params)
		}
	case "optimization.status", "optimization.cancel", "optimization.result":
		var params idParams
		if err = decodeParams(request.Params, &params); err == nil {
			err = params.validate()
		}
		if err != nil {
			break
		}
		switch request.Method {
		case "optimization.status":
			result, err = s.Status(r.Context(), params.OptimizationID)
		case "optimization.cancel":
			result, err = s.Cancel(r.Context(), params.OptimizationID)
		default:
			result, err = s.Result(r.Context(), params.OptimizationID)
		}
	default:
		s.respondWithError(w, apierrors.New(apierrors.CodeMethodNotFound, "Method not found"), request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, err, request.ID)
		return
	}

	// Send successful response
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, err error, id interface{}) {
	code := apierrors.CodeOf(err)
	s.logger.Warn("RPC request error", map[string]interface{}{
		"code":  code.RPCCode(),
		"error": err.Error(),
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code.RPCCode(),
			"message": apierrors.PublicMessage(err),
		},
		"id": id,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleOptimize handles POST /api/v1/optimize.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		apierrors.WriteJSON(w, apierrors.Errorf(apierrors.CodeInvalidRequest, "invalid request body: %v", err))
		return
	}

	status, err := s.Start(req)
	if err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, status)
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// handleResult handles GET /api/v1/results/{id}.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleListResults handles GET /api/v1/results.
func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListResults(r.Context())
	if err != nil {
		apierrors.WriteJSON(w, apierrors.Wrap(err, "failed to list results"))
		return
	}
	out := make([]JobStatus, 0, len(records))
	for _, record := range records {
		out = append(out, recordStatus(record))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"results": out})
}

// handleCancel handles DELETE /api/v1/optimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	status, err := s.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}
