package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/p-hannemann/skin-lookup/internal/config"
	"github.com/p-hannemann/skin-lookup/internal/embedding"
	"github.com/p-hannemann/skin-lookup/internal/fetch"
	"github.com/p-hannemann/skin-lookup/internal/history"
	"github.com/p-hannemann/skin-lookup/internal/imageio"
	"github.com/p-hannemann/skin-lookup/internal/match"
	"github.com/p-hannemann/skin-lookup/internal/scan"
	"github.com/p-hannemann/skin-lookup/internal/server"
)

const (
	e2eTopN    = 5
	e2eWorkers = 4
)

func TestE2E_ScanRanksCorrectFiles(t *testing.T) {
	corpus := BuildCorpus()
	if corpus.TotalFiles == 0 {
		t.Fatal("corpus has no files")
	}
	if corpus.TotalQueries == 0 {
		t.Fatal("corpus has no query cases")
	}

	cache := t.TempDir()
	for _, f := range corpus.Files {
		content, err := EncodeImage(".png", f.Image)
		if err != nil {
			t.Fatalf("encode %s: %v", f.Name, err)
		}
		if err := os.WriteFile(filepath.Join(cache, f.Name+".png"), content, 0644); err != nil {
			t.Fatal(err)
		}
	}

	registry := match.NewRegistry(embedding.NewBackend(config.EmbeddingConfig{}))
	scanner := scan.NewScanner(nil)
	ctx := context.Background()

	t.Logf("wrote %d skins; running %d query cases", corpus.TotalFiles, corpus.TotalQueries)

	for _, tc := range corpus.TestCases {
		algIDs := tc.Algorithms
		if len(algIDs) == 0 {
			algIDs = registry.IDs()
		}
		for _, algID := range algIDs {
			alg, err := registry.Get(algID)
			if err != nil {
				t.Fatalf("get algorithm %s: %v", algID, err)
			}
			if !alg.Available() {
				continue
			}
			tc, algID := tc, algID
			t.Run(tc.Description+"/"+algID, func(t *testing.T) {
				query := imageio.FromNRGBA(tc.Image, "query.png")
				summary, err := scanner.Scan(ctx, alg, query, scan.Options{
					Root:      cache,
					Recursive: true,
					TopN:      e2eTopN,
					Workers:   e2eWorkers,
				})
				if err != nil {
					t.Fatalf("scan failed: %v", err)
				}
				if summary.Processed != corpus.TotalFiles {
					t.Fatalf("processed %d of %d files (%d skipped)",
						summary.Processed, corpus.TotalFiles, summary.Skipped)
				}
				if len(summary.Matches) == 0 {
					t.Fatal("no matches returned")
				}
				if tc.WantBest != "" {
					best := summary.Matches[0]
					if got := strippedName(best.Path); got != tc.WantBest {
						t.Errorf("algorithm %s: best match %s (distance %.6f), want %s",
							algID, got, best.Distance, tc.WantBest)
					}
					if best.Distance > 1e-9 {
						t.Errorf("algorithm %s: identical query scored %.9f, want 0", algID, best.Distance)
					}
				} else if !familyInTop(summary.Matches, 3, tc.WantFamily) {
					t.Errorf("algorithm %s: no %s skin in the top 3: %v",
						algID, tc.WantFamily, matchNames(summary.Matches))
				}
			})
		}
	}
}

func strippedName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func familyInTop(matches []match.Result, n int, family string) bool {
	if n > len(matches) {
		n = len(matches)
	}
	for _, m := range matches[:n] {
		if fileFamily(strippedName(m.Path)) == family {
			return true
		}
	}
	return false
}

func matchNames(matches []match.Result) []string {
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = strippedName(m.Path)
	}
	return names
}

// scanView mirrors the wire shape of a scan job response.
type scanView struct {
	ID        string        `json:"id"`
	Algorithm string        `json:"algorithm"`
	Status    string        `json:"status"`
	Summary   *scan.Summary `json:"summary"`
	Error     string        `json:"error"`
}

// TestE2E_HTTPScanLifecycle drives the public HTTP API end to end: a scan is
// started over the wire against a mixed-format cache, polled to completion,
// checked against the corpus, and read back from the persisted history. The
// cache cycles through every supported container format so the pipeline
// proves it sniffs content rather than trusting extensions.
func TestE2E_HTTPScanLifecycle(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "cache")
	if err := os.MkdirAll(cache, 0755); err != nil {
		t.Fatal(err)
	}

	corpus := BuildCorpus()
	const target = "ocean_v0"
	for i, f := range corpus.Files {
		ext := SupportedImageExtensions[i%len(SupportedImageExtensions)]
		if f.Name == target {
			// The exact-match target must survive encoding unchanged.
			ext = ".png"
		}
		content, err := EncodeImage(ext, f.Image)
		if err != nil {
			t.Fatalf("encode %s%s: %v", f.Name, ext, err)
		}
		if err := os.WriteFile(filepath.Join(cache, f.Name+ext), content, 0644); err != nil {
			t.Fatal(err)
		}
	}

	queryPath := filepath.Join(dir, "query.png")
	queryPNG, err := EncodeImage(".png", corpusImage(t, corpus, target))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(queryPath, queryPNG, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Cache.Root = cache
	cfg.Storage.HistoryPath = filepath.Join(dir, "history.db")

	backend := embedding.NewBackend(cfg.Embedding)
	defer backend.Close()
	hist, err := history.Open(cfg.Storage.HistoryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer hist.Close()

	srv := server.NewServer(
		match.NewRegistry(backend),
		scan.NewScanner(nil),
		fetch.NewFetcher(nil),
		hist,
		nil,
		cfg,
		zap.NewNop(),
	)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Start a scan over the wire.
	body, err := json.Marshal(map[string]interface{}{
		"algorithm":  "fast",
		"query_path": queryPath,
		"top_n":      3,
	})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.URL+"/api/v1/scans", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /api/v1/scans = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	var started scanView
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if started.ID == "" {
		t.Fatal("scan started without an ID")
	}
	if started.Algorithm != "fast" {
		t.Errorf("started algorithm %q, want fast", started.Algorithm)
	}

	// Poll the job to completion.
	view := pollScan(t, ts.URL, started.ID, 15*time.Second)
	if view.Status != "done" {
		t.Fatalf("scan ended %q (error %q), want done", view.Status, view.Error)
	}
	if view.Summary == nil {
		t.Fatal("finished scan has no summary")
	}
	if view.Summary.Processed != corpus.TotalFiles {
		t.Errorf("processed %d of %d files (%d skipped)",
			view.Summary.Processed, corpus.TotalFiles, view.Summary.Skipped)
	}
	if len(view.Summary.Matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(view.Summary.Matches))
	}
	best := view.Summary.Matches[0]
	if got := strippedName(best.Path); got != target {
		t.Errorf("best match %s (distance %.6f), want %s", got, best.Distance, target)
	}
	if best.Distance > 1e-9 {
		t.Errorf("identical query scored %.9f over the wire, want 0", best.Distance)
	}

	// Cancelling a finished scan must conflict, an unknown one 404.
	assertStatus(t, ts, http.MethodDelete, "/api/v1/scans/"+started.ID, http.StatusConflict)
	assertStatus(t, ts, http.MethodDelete, "/api/v1/scans/no-such-scan", http.StatusNotFound)
	assertStatus(t, ts, http.MethodGet, "/api/v1/scans/no-such-scan", http.StatusNotFound)

	// Unknown algorithms are rejected before a job is created.
	badBody := []byte(`{"algorithm":"nope","query_path":"` + queryPath + `"}`)
	resp, err = http.Post(ts.URL+"/api/v1/scans", "application/json", bytes.NewReader(badBody))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("POST with unknown algorithm = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	// The algorithm listing reports the deep variants unavailable.
	var algs struct {
		Algorithms []match.Info `json:"algorithms"`
	}
	getJSON(t, ts.URL+"/api/v1/algorithms", &algs)
	if len(algs.Algorithms) != 9 {
		t.Fatalf("listed %d algorithms, want 9", len(algs.Algorithms))
	}
	available := 0
	for _, a := range algs.Algorithms {
		if a.Available {
			available++
		} else if a.Capability != "deep-backend" {
			t.Errorf("algorithm %s unavailable with capability %q", a.ID, a.Capability)
		}
	}
	if available != 7 {
		t.Errorf("%d algorithms available, want 7", available)
	}

	// The history write races job completion, so poll the listing too.
	deadline := time.Now().Add(5 * time.Second)
	for {
		var listing struct {
			Running []scanView `json:"running"`
			Recent  []scanView `json:"recent"`
		}
		getJSON(t, ts.URL+"/api/v1/scans", &listing)
		if len(listing.Recent) == 1 {
			if len(listing.Running) != 0 {
				t.Errorf("%d scans still running", len(listing.Running))
			}
			if listing.Recent[0].ID != started.ID {
				t.Errorf("recorded scan %s, want %s", listing.Recent[0].ID, started.ID)
			}
			if listing.Recent[0].Status != "done" {
				t.Errorf("recorded scan status %q, want done", listing.Recent[0].Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scan never appeared in history (recent: %d)", len(listing.Recent))
		}
		time.Sleep(20 * time.Millisecond)
	}

	var status map[string]interface{}
	getJSON(t, ts.URL+"/api/v1/status", &status)
	if got := status["cache_root"]; got != cache {
		t.Errorf("status cache_root %v, want %s", got, cache)
	}
	if got := status["recorded_scans"]; got != float64(1) {
		t.Errorf("status recorded_scans %v, want 1", got)
	}
	if got := status["running_scans"]; got != float64(0) {
		t.Errorf("status running_scans %v, want 0", got)
	}
	if got := status["watching"]; got != false {
		t.Errorf("status watching %v, want false", got)
	}

	assertStatus(t, ts, http.MethodGet, "/health", http.StatusOK)
}

func corpusImage(t *testing.T, c *Corpus, name string) *image.NRGBA {
	t.Helper()
	for _, f := range c.Files {
		if f.Name == name {
			return f.Image
		}
	}
	t.Fatalf("file %q not in corpus", name)
	return nil
}

func pollScan(t *testing.T, baseURL, id string, timeout time.Duration) *scanView {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		var view scanView
		getJSON(t, baseURL+"/api/v1/scans/"+id, &view)
		if view.Status != "running" {
			return &view
		}
		if time.Now().After(deadline) {
			t.Fatalf("scan %s still running after %s", id, timeout)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func getJSON(t *testing.T, url string, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s = %d, want %d", url, resp.StatusCode, http.StatusOK)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func assertStatus(t *testing.T, ts *httptest.Server, method, path string, want int) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	resp.Body.Close()
	if resp.StatusCode != want {
		t.Errorf("%s %s = %d, want %d", method, path, resp.StatusCode, want)
	}
}
