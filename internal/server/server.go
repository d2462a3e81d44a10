// Package server exposes optimization runs over HTTP. Runs are submitted
// asynchronously and tracked in memory until they are deleted or evicted.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/copyleftdev/sharksmell/internal/config"
	apperrors "github.com/copyleftdev/sharksmell/internal/errors"
	"github.com/copyleftdev/sharksmell/internal/logging"
	"github.com/copyleftdev/sharksmell/internal/metrics"
	"github.com/copyleftdev/sharksmell/internal/optimization"
	"github.com/copyleftdev/sharksmell/internal/optimization/benchmark"
	"github.com/copyleftdev/sharksmell/internal/optimization/cluster"
	"github.com/copyleftdev/sharksmell/internal/optimization/population"
	"github.com/copyleftdev/sharksmell/internal/optimization/runner"
)

// requestTimeout bounds the handling of one API request. Runs themselves are
// not affected.
const requestTimeout = 60 * time.Second

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Finished reports whether the run has reached a terminal state.
func (s RunStatus) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// RunRequest is the body of POST /api/v1/runs. The test case is selected by
// Benchmark name or, if that is empty, by TestCase index.
type RunRequest struct {
	Benchmark  string `json:"benchmark,omitempty"`
	TestCase   *int   `json:"test_case,omitempty"`
	Population int    `json:"population"`
	Workers    int    `json:"workers,omitempty"`
	Seed       int64  `json:"seed,omitempty"`
	Reduction  string `json:"reduction,omitempty"`
}

// RunState tracks one submitted run. Fields are guarded by Server.mu.
type RunState struct {
	ID         string
	Status     RunStatus
	Benchmark  string
	Population int
	Workers    int
	Reduction  cluster.Reduction
	StartTime  time.Time
	EndTime    *time.Time
	Result     *optimization.OptimizationResult
	Err        error

	cancel context.CancelFunc
}

// Server manages optimization runs and serves the HTTP API.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	pool    *population.Pool

	mu    sync.RWMutex
	runs  map[string]*RunState
	order []string // submission order, oldest first
	wg    sync.WaitGroup
}

// NewServer creates a server. m may be nil.
func NewServer(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		pool:    population.NewPool(population.Allocator{MaxElements: cfg.Optimization.MaxElements}),
		runs:    make(map[string]*RunState),
	}
}

// Router returns a chi router with the request middleware stack, the health
// check and the API routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(s.logger))
	r.Use(apperrors.RecoveryMiddleware(s.logger))
	r.Use(apperrors.ErrorHandler(s.logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/benchmarks", s.handleBenchmarks)
		r.Post("/runs", s.handleSubmit)
		r.Get("/runs/{id}", s.handleStatus)
		r.Delete("/runs/{id}", s.handleDelete)
	})
}

type benchmarkView struct {
	Index       int               `json:"index"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Goal        string            `json:"goal"`
	Dimensions  int               `json:"dimensions"`
	Low         float64           `json:"low"`
	High        float64           `json:"high"`
	Optimum     benchmark.Optimum `json:"optimum"`
}

func (s *Server) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	cases := benchmark.Catalog()
	views := make([]benchmarkView, len(cases))
	for i, c := range cases {
		views[i] = benchmarkView{
			Index:       c.Index,
			Name:        c.Problem.Name,
			Description: c.Description,
			Goal:        c.Problem.Goal.String(),
			Dimensions:  c.Problem.Dimensions,
			Low:         c.Problem.Low,
			High:        c.Problem.High,
			Optimum:     c.Optimum,
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	tc, err := s.lookup(req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	rcfg := runner.Config{
		Problem:      &tc.Problem,
		Population:   req.Population,
		Workers:      req.Workers,
		Seed:         req.Seed,
		Reduction:    cluster.Reduction(req.Reduction),
		GradientStep: s.cfg.Optimization.GradientStep,
		MaxElements:  s.cfg.Optimization.MaxElements,
	}
	if rcfg.Workers == 0 {
		rcfg.Workers = min(s.cfg.Optimization.Workers, max(req.Population, 1))
	}
	if rcfg.Seed == 0 {
		rcfg.Seed = s.cfg.Optimization.Seed
	}
	if rcfg.Reduction == "" {
		rcfg.Reduction = cluster.Reduction(s.cfg.Optimization.Reduction)
	}

	id := uuid.NewString()
	run, err := runner.New(rcfg,
		runner.WithLogger(s.logger.WithField("run_id", id)),
		runner.WithMetrics(s.metrics),
		runner.WithPool(s.pool),
	)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	state := &RunState{
		ID:         id,
		Status:     StatusPending,
		Benchmark:  tc.Problem.Name,
		Population: rcfg.Population,
		Workers:    rcfg.Workers,
		Reduction:  run.Config().Reduction,
		StartTime:  time.Now(),
		cancel:     cancel,
	}
	if !s.track(state) {
		cancel()
		writeError(w, http.StatusTooManyRequests, "too many runs in progress")
		return
	}

	s.wg.Add(1)
	go s.execute(ctx, run, state)

	logging.FromContext(r.Context()).Info("Run submitted", map[string]interface{}{
		"run_id":     id,
		"benchmark":  state.Benchmark,
		"population": state.Population,
		"workers":    state.Workers,
	})
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":     id,
		"status": StatusPending,
	})
}

func (s *Server) lookup(req RunRequest) (benchmark.Case, error) {
	switch {
	case req.Benchmark != "":
		return benchmark.LookupName(req.Benchmark)
	case req.TestCase != nil:
		return benchmark.Lookup(*req.TestCase)
	default:
		return benchmark.Case{}, errMissingCase
	}
}

// track stores state, evicting the oldest finished run when the limit is
// reached. It reports false if every retained run is still in progress.
func (s *Server) track(state *RunState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := s.cfg.Optimization.MaxRuns
	if limit > 0 && len(s.runs) >= limit {
		evicted := false
		for i, id := range s.order {
			if s.runs[id].Status.Finished() {
				delete(s.runs, id)
				s.order = append(s.order[:i], s.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return false
		}
	}

	s.runs[state.ID] = state
	s.order = append(s.order, state.ID)
	return true
}

func (s *Server) execute(ctx context.Context, run *runner.Runner, state *RunState) {
	defer s.wg.Done()

	s.mu.Lock()
	if state.Status == StatusPending {
		state.Status = StatusRunning
	}
	s.mu.Unlock()

	result, err := run.Optimize(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	state.EndTime = &now
	switch {
	case state.Status == StatusCancelled:
		// cancelled by a client; keep the status
	case err != nil:
		state.Status = StatusFailed
		state.Err = err
	default:
		state.Status = StatusCompleted
		state.Result = result
	}
	state.cancel()
}

type resultView struct {
	Solution    []float64 `json:"solution"`
	Value       float64   `json:"value"`
	Evaluations int64     `json:"evaluations"`
	Steps       int       `json:"steps"`
	ElapsedMS   float64   `json:"elapsed_ms"`
	Seed        int64     `json:"seed"`
}

type runView struct {
	ID         string      `json:"id"`
	Status     RunStatus   `json:"status"`
	Benchmark  string      `json:"benchmark"`
	Population int         `json:"population"`
	Workers    int         `json:"workers"`
	Reduction  string      `json:"reduction"`
	StartTime  time.Time   `json:"start_time"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	Result     *resultView `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func viewOf(state *RunState) runView {
	v := runView{
		ID:         state.ID,
		Status:     state.Status,
		Benchmark:  state.Benchmark,
		Population: state.Population,
		Workers:    state.Workers,
		Reduction:  string(state.Reduction),
		StartTime:  state.StartTime,
		EndTime:    state.EndTime,
	}
	if res := state.Result; res != nil {
		v.Result = &resultView{
			Solution:    res.Best.Solution,
			Value:       res.Best.Value,
			Evaluations: res.Evaluations,
			Steps:       res.Steps,
			ElapsedMS:   float64(res.Elapsed.Microseconds()) / 1000.0,
			Seed:        res.Seed,
		}
	}
	if state.Err != nil {
		v.Error = state.Err.Error()
	}
	return v
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	state, ok := s.runs[id]
	var view runView
	if ok {
		view = viewOf(state)
	}
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleDelete cancels a run in progress, or forgets a finished one.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	state, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if state.Status.Finished() {
		delete(s.runs, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	state.Status = StatusCancelled
	state.cancel()
	s.mu.Unlock()

	logging.FromContext(r.Context()).Info("Run cancelled", map[string]interface{}{"run_id": id})
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":     id,
		"status": StatusCancelled,
	})
}

// Close cancels every run in progress and waits for them to stop.
func (s *Server) Close() error {
	s.mu.Lock()
	for _, state := range s.runs {
		if !state.Status.Finished() {
			state.Status = StatusCancelled
			state.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// errMissingCase rejects a request that names no test case.
var errMissingCase = apperrors.New("benchmark or test_case is required").WithComponent("server")

// statusFor maps a request error to its HTTP status.
func statusFor(err error) int {
	switch {
	case apperrors.Is(err, optimization.ErrInvalidConfig), apperrors.Is(err, errMissingCase):
		return http.StatusBadRequest
	case apperrors.Is(err, optimization.ErrAllocation):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
