package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/p-hannemann/skin-lookup/internal/history"
	"github.com/p-hannemann/skin-lookup/internal/imageio"
	"github.com/p-hannemann/skin-lookup/internal/match"
	"github.com/p-hannemann/skin-lookup/internal/scan"
)

type startScanRequest struct {
	Algorithm string `json:"algorithm"`
	QueryPath string `json:"query_path"`
	QueryURL  string `json:"query_url"`
	WikiURL   string `json:"wiki_url"`
	Root      string `json:"root"`
	TopN      int    `json:"top_n"`
	Recursive *bool  `json:"recursive"`
	Workers   int    `json:"workers"`
}

type jobView struct {
	ID        string        `json:"id"`
	Algorithm string        `json:"algorithm"`
	Query     string        `json:"query"`
	Status    string        `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Progress  *progressView `json:"progress,omitempty"`
	Summary   *scan.Summary `json:"summary,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type progressView struct {
	Processed int   `json:"processed"`
	Total     int   `json:"total"`
	Skipped   int   `json:"skipped"`
	ElapsedMS int64 `json:"elapsed_ms"`
	EtaMS     int64 `json:"eta_ms"`
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	algID := req.Algorithm
	if algID == "" {
		algID = s.config.Search.DefaultAlgorithm
	}
	alg, err := s.registry.Get(algID)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !alg.Available() {
		capErr := &match.CapabilityError{AlgorithmID: alg.ID(), Capability: alg.Capability()}
		s.respondError(w, http.StatusConflict, capErr.Error())
		return
	}

	query, err := s.loadQuery(r.Context(), &req)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	root := req.Root
	if root == "" {
		root = s.config.Cache.Root
	}
	recursive := s.config.Cache.RecursiveOrDefault()
	if req.Recursive != nil {
		recursive = *req.Recursive
	}
	topN := req.TopN
	if topN <= 0 {
		topN = s.config.Search.DefaultTopN
	}
	workers := req.Workers
	if workers <= 0 {
		workers = s.config.Search.Workers
	}

	opts := scan.Options{
		Root:          root,
		Recursive:     recursive,
		TopN:          topN,
		Workers:       workers,
		ProgressEvery: s.config.Search.ProgressEvery,
	}
	// The live listing replaces the walk when it covers the requested root.
	if s.listing != nil && filepath.Clean(root) == s.listing.Root() {
		opts.Candidates = s.listing.Snapshot()
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:        uuid.NewString(),
		algorithm: alg.ID(),
		query:     query.Path,
		startedAt: time.Now(),
		cancel:    cancel,
		status:    statusRunning,
	}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	s.logger.Info("scan job started",
		zap.String("id", j.id),
		zap.String("algorithm", alg.ID()),
		zap.String("query", j.query),
		zap.String("root", root),
	)
	go s.runJob(ctx, j, alg, query, opts)

	s.respondJSON(w, http.StatusAccepted, j.view())
}

// loadQuery resolves the query image from exactly one of the request's
// sources.
func (s *Server) loadQuery(ctx context.Context, req *startScanRequest) (*imageio.Image, error) {
	sources := 0
	for _, v := range []string{req.QueryPath, req.QueryURL, req.WikiURL} {
		if v != "" {
			sources++
		}
	}
	if sources != 1 {
		return nil, errors.New("exactly one of query_path, query_url or wiki_url is required")
	}
	switch {
	case req.QueryPath != "":
		return s.fetcher.FromFile(req.QueryPath)
	case req.QueryURL != "":
		return s.fetcher.FromURL(ctx, req.QueryURL)
	default:
		return s.fetcher.FromWikiPage(ctx, req.WikiURL)
	}
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if ok {
		s.respondJSON(w, http.StatusOK, j.view())
		return
	}
	if s.history != nil {
		if e, err := s.history.Get(r.Context(), id); err == nil {
			s.respondJSON(w, http.StatusOK, viewFromEntry(e))
			return
		}
	}
	s.respondError(w, http.StatusNotFound, "scan not found")
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		s.respondError(w, http.StatusNotFound, "scan not found")
		return
	}
	if !j.running() {
		s.respondError(w, http.StatusConflict, "scan already finished")
		return
	}
	s.logger.Debug("cancelling scan job", zap.String("id", id))
	j.cancel()
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "cancelling"})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var running []jobView
	s.mu.Lock()
	for _, j := range s.jobs {
		if j.running() {
			running = append(running, j.view())
		}
	}
	s.mu.Unlock()
	sort.Slice(running, func(i, k int) bool { return running[i].StartedAt.After(running[k].StartedAt) })

	recent := []jobView{}
	if s.history != nil {
		entries, err := s.history.List(r.Context(), limit)
		if err != nil {
			s.logger.Error("listing scan history failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, e := range entries {
			recent = append(recent, viewFromEntry(e))
		}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"running": running,
		"recent":  recent,
	})
}

func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"algorithms": s.registry.List(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	running := 0
	s.mu.Lock()
	for _, j := range s.jobs {
		if j.running() {
			running++
		}
	}
	s.mu.Unlock()

	resp := map[string]interface{}{
		"cache_root":    s.config.Cache.Root,
		"running_scans": running,
		"algorithms":    len(s.registry.IDs()),
		"watching":      s.listing != nil,
	}
	if s.listing != nil {
		resp["cache_files"] = s.listing.Count()
	}
	if s.history != nil {
		count, err := s.history.Count(r.Context())
		if err != nil {
			s.logger.Error("status: count scans failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["recorded_scans"] = count
		if diskBytes, err := s.history.DiskUsageBytes(); err == nil {
			resp["history_disk_bytes"] = diskBytes
		}
	}
	resp["config"] = map[string]interface{}{
		"default_algorithm": s.config.Search.DefaultAlgorithm,
		"default_top_n":     s.config.Search.DefaultTopN,
		"workers":           s.config.Search.Workers,
		"history_path":      s.config.Storage.HistoryPath,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// viewFromEntry renders a persisted scan the same way a live job renders.
func viewFromEntry(e *history.Entry) jobView {
	status := statusDone
	if e.Cancelled {
		status = statusCancelled
	}
	return jobView{
		ID:        e.ID,
		Algorithm: e.Algorithm,
		Query:     e.Query,
		Status:    status,
		StartedAt: e.StartedAt,
		Summary: &scan.Summary{
			Query:     e.Query,
			Algorithm: e.Algorithm,
			Root:      e.Root,
			Matches:   e.Matches,
			Processed: e.Processed,
			Skipped:   e.Skipped,
			Total:     e.Total,
			ElapsedMS: e.ElapsedMS,
			Cancelled: e.Cancelled,
		},
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
