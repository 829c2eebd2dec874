package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/p-hannemann/skin-lookup/internal/imageio"
	"github.com/p-hannemann/skin-lookup/internal/match"
)

// DefaultProgressEvery is how many processed files separate two progress
// callbacks when Options does not say otherwise.
const DefaultProgressEvery = 100

// Progress is a point-in-time view of a running scan. Processed counts every
// candidate consumed from the queue; Skipped is the subset that could not be
// scored.
type Progress struct {
	Processed int
	Total     int
	Skipped   int
	Elapsed   time.Duration
	// ETA projects the remaining time linearly from the rate so far. Zero
	// until the first file finished.
	ETA time.Duration
}

// Summary is the outcome of a scan.
type Summary struct {
	Query     string         `json:"query"`
	Algorithm string         `json:"algorithm"`
	Root      string         `json:"root"`
	Matches   []match.Result `json:"matches"`
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Total     int            `json:"total"`
	ElapsedMS int64          `json:"elapsed_ms"`
	// Cancelled marks a scan stopped by its context. The summary then holds
	// the partial results gathered so far.
	Cancelled bool `json:"cancelled,omitempty"`
}

// Options configure one scan.
type Options struct {
	// Root is the directory to scan.
	Root string
	// Recursive descends into subdirectories.
	Recursive bool
	// TopN is how many results to keep, clamped to [1,20].
	TopN int
	// Workers is the pool size; 0 means one worker per core.
	Workers int
	// ProgressEvery emits OnProgress every that many processed files.
	ProgressEvery int
	// OnProgress, when set, receives progress snapshots during the scan and
	// once at completion. It may be called from multiple goroutines.
	OnProgress func(Progress)
	// Candidates, when non-nil, is the file list to scan instead of walking
	// Root (server mode feeds the watcher's listing here).
	Candidates []string
}

// Scanner runs cache scans. One Scanner can serve concurrent scans.
type Scanner struct {
	logger *zap.Logger
}

// NewScanner creates a scanner. logger may be nil.
func NewScanner(logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{logger: logger}
}

// Scan scores every candidate under opts.Root (or opts.Candidates when set)
// against query using alg and returns the ranked best matches. Cancelling
// ctx stops the scan at a file boundary and returns the partial summary with
// Cancelled set; that is a status, not an error.
func (s *Scanner) Scan(ctx context.Context, alg match.Algorithm, query *imageio.Image, opts Options) (*Summary, error) {
	if alg == nil {
		return nil, errors.New("no algorithm selected")
	}
	if !alg.Available() {
		return nil, &match.CapabilityError{AlgorithmID: alg.ID(), Capability: alg.Capability()}
	}

	start := time.Now()

	queryRec, err := alg.Extract(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("extracting query features: %w", err)
	}

	candidates := opts.Candidates
	root := opts.Root
	if candidates == nil {
		root, candidates, err = enumerate(opts.Root, opts.Recursive)
		if err != nil {
			return nil, err
		}
	}
	total := len(candidates)

	rk := NewRanker(opts.TopN)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	every := opts.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}

	var processed, skipped atomic.Int64

	group, gctx := errgroup.WithContext(ctx)
	paths := make(chan string, workers)
	group.Go(func() error {
		defer close(paths)
		for _, p := range candidates {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case paths <- p:
			}
		}
		return nil
	})
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			for p := range paths {
				if err := gctx.Err(); err != nil {
					return err
				}
				if !s.score(gctx, alg, queryRec, p, rk) {
					skipped.Add(1)
				}
				n := processed.Add(1)
				if opts.OnProgress != nil && n%int64(every) == 0 {
					opts.OnProgress(snapshot(start, int(n), int(skipped.Load()), total))
				}
			}
			return nil
		})
	}

	err = group.Wait()
	cancelled := false
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		cancelled = true
	}

	if opts.OnProgress != nil {
		opts.OnProgress(snapshot(start, int(processed.Load()), int(skipped.Load()), total))
	}

	summary := &Summary{
		Query:     query.Path,
		Algorithm: alg.ID(),
		Root:      root,
		Matches:   rk.Results(),
		Processed: int(processed.Load()),
		Skipped:   int(skipped.Load()),
		Total:     total,
		ElapsedMS: time.Since(start).Milliseconds(),
		Cancelled: cancelled,
	}
	s.logger.Debug("scan finished",
		zap.String("algorithm", alg.ID()),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("matches", len(summary.Matches)),
		zap.Bool("cancelled", cancelled),
	)
	return summary, nil
}

// score decodes, extracts, and offers one candidate. Failures skip the file.
func (s *Scanner) score(ctx context.Context, alg match.Algorithm, queryRec *match.FeatureRecord, path string, rk *Ranker) bool {
	im, err := imageio.Decode(path)
	if err != nil {
		s.logger.Debug("skipping unreadable candidate", zap.String("path", path), zap.Error(err))
		return false
	}
	rec, err := alg.Extract(ctx, im)
	if err != nil {
		s.logger.Debug("skipping candidate", zap.String("path", path), zap.Error(err))
		return false
	}
	d, breakdown, err := alg.Compare(queryRec, rec)
	if err != nil {
		s.logger.Debug("skipping candidate", zap.String("path", path), zap.Error(err))
		return false
	}
	rk.Offer(match.Result{Path: path, Distance: d, Breakdown: breakdown})
	return true
}

// enumerate lists the regular files under root up front so progress has a
// denominator. The root itself must be a readable directory; unreadable
// subtrees are skipped.
func enumerate(root string, recursive bool) (string, []string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return "", nil, fmt.Errorf("stat cache root: %w", err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("not a directory: %s", absRoot)
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == absRoot {
				return walkErr
			}
			return nil
		}
		if d.IsDir() {
			if !recursive && path != absRoot {
				return fs.SkipDir
			}
			return nil
		}
		// Resolve symlinks so only regular files are scanned.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("walking %s: %w", absRoot, err)
	}
	return absRoot, files, nil
}

func snapshot(start time.Time, processed, skipped, total int) Progress {
	elapsed := time.Since(start)
	p := Progress{Processed: processed, Total: total, Skipped: skipped, Elapsed: elapsed}
	if processed > 0 && total > processed {
		p.ETA = elapsed / time.Duration(processed) * time.Duration(total-processed)
	}
	return p
}
