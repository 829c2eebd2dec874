// Package server provides the HTTP API for skin-lookup: scans run as
// background jobs that are started, polled, and cancelled over REST.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/p-hannemann/skin-lookup/internal/config"
	"github.com/p-hannemann/skin-lookup/internal/fetch"
	"github.com/p-hannemann/skin-lookup/internal/history"
	"github.com/p-hannemann/skin-lookup/internal/imageio"
	"github.com/p-hannemann/skin-lookup/internal/match"
	"github.com/p-hannemann/skin-lookup/internal/scan"
	"github.com/p-hannemann/skin-lookup/internal/watcher"
)

// Finished jobs kept in memory for polling; older ones live in history only.
const keepFinished = 50

// Server is the HTTP server for the skin-lookup API.
type Server struct {
	registry *match.Registry
	scanner  *scan.Scanner
	fetcher  *fetch.Fetcher
	history  *history.Store   // optional
	listing  *watcher.Listing // optional; scans walk the cache when nil
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server

	mu   sync.Mutex
	jobs map[string]*job
}

// NewServer creates a server with the given dependencies. history and
// listing may be nil.
func NewServer(
	registry *match.Registry,
	scanner *scan.Scanner,
	fetcher *fetch.Fetcher,
	hist *history.Store,
	listing *watcher.Listing,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		registry: registry,
		scanner:  scanner,
		fetcher:  fetcher,
		history:  hist,
		listing:  listing,
		config:   cfg,
		logger:   logger,
		jobs:     make(map[string]*job),
	}
}

// Router builds the handler tree served by Start.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/scans", s.handleStartScan)
	r.Get("/api/v1/scans", s.handleListScans)
	r.Get("/api/v1/scans/{id}", s.handleGetScan)
	r.Delete("/api/v1/scans/{id}", s.handleCancelScan)
	r.Get("/api/v1/algorithms", s.handleAlgorithms)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server. Running scan jobs are cancelled.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, j := range s.jobs {
		j.cancel()
	}
	s.mu.Unlock()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

const (
	statusRunning   = "running"
	statusDone      = "done"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

// job is one scan running (or finished) inside the server.
type job struct {
	id        string
	algorithm string
	query     string
	startedAt time.Time
	cancel    context.CancelFunc

	mu       sync.Mutex
	status   string
	progress scan.Progress
	summary  *scan.Summary
	err      string
}

func (j *job) setProgress(p scan.Progress) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
}

func (j *job) finish(summary *scan.Summary) {
	j.mu.Lock()
	if summary.Cancelled {
		j.status = statusCancelled
	} else {
		j.status = statusDone
	}
	j.summary = summary
	j.mu.Unlock()
}

func (j *job) fail(err error) {
	j.mu.Lock()
	j.status = statusFailed
	j.err = err.Error()
	j.mu.Unlock()
}

func (j *job) running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status == statusRunning
}

// view renders the job for API responses.
func (j *job) view() jobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	v := jobView{
		ID:        j.id,
		Algorithm: j.algorithm,
		Query:     j.query,
		Status:    j.status,
		StartedAt: j.startedAt,
		Summary:   j.summary,
		Error:     j.err,
	}
	if j.status == statusRunning {
		v.Progress = &progressView{
			Processed: j.progress.Processed,
			Total:     j.progress.Total,
			Skipped:   j.progress.Skipped,
			ElapsedMS: j.progress.Elapsed.Milliseconds(),
			EtaMS:     j.progress.ETA.Milliseconds(),
		}
	}
	return v
}

// runJob executes the scan, records the outcome, and persists it.
func (s *Server) runJob(ctx context.Context, j *job, alg match.Algorithm, query *imageio.Image, opts scan.Options) {
	defer j.cancel()

	opts.OnProgress = j.setProgress
	summary, err := s.scanner.Scan(ctx, alg, query, opts)
	if err != nil {
		s.logger.Error("scan job failed", zap.String("id", j.id), zap.Error(err))
		j.fail(err)
	} else {
		j.finish(summary)
		if s.history != nil {
			entry := history.FromSummary(j.id, j.startedAt, summary)
			if err := s.history.Save(context.Background(), entry); err != nil {
				s.logger.Warn("failed to persist scan history", zap.String("id", j.id), zap.Error(err))
			}
		}
	}
	s.pruneFinished()
}

// pruneFinished drops the oldest finished jobs beyond keepFinished.
func (s *Server) pruneFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var finished []*job
	for _, j := range s.jobs {
		if !j.running() {
			finished = append(finished, j)
		}
	}
	if len(finished) <= keepFinished {
		return
	}
	sort.Slice(finished, func(i, k int) bool { return finished[i].startedAt.Before(finished[k].startedAt) })
	for _, j := range finished[:len(finished)-keepFinished] {
		delete(s.jobs, j.id)
	}
}
