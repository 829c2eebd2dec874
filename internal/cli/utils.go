// Package cli provides CLI utilities for skin-lookup.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/p-hannemann/skin-lookup/internal/match"
	"github.com/p-hannemann/skin-lookup/internal/scan"
)

// OutputFormat is the format for scan result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one tab-separated line per match, for shell pipelines.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteMatches writes a scan summary to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteMatches(w io.Writer, summary *scan.Summary, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case OutputCompact:
		writeMatchesCompact(w, summary)
		return nil
	default:
		writeMatchesText(w, summary)
		return nil
	}
}

func writeMatchesText(w io.Writer, summary *scan.Summary) {
	fmt.Fprintf(w, "\nScanned %d of %d files in %dms (%d skipped)\n",
		summary.Processed, summary.Total, summary.ElapsedMS, summary.Skipped)
	if summary.Cancelled {
		fmt.Fprintln(w, "Scan cancelled, showing partial results.")
	}
	if len(summary.Matches) == 0 {
		fmt.Fprintln(w, "No matches.")
		return
	}
	fmt.Fprintf(w, "Top %d matches for %s (%s)\n\n",
		len(summary.Matches), Truncate(summary.Query, 120), summary.Algorithm)
	for _, m := range summary.Matches {
		writeOneMatch(w, m)
	}
}

func writeOneMatch(w io.Writer, m match.Result) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Distance: %.4f\n", m.Rank, m.Distance)
	fmt.Fprintf(w, "Path: %s\n", m.Path)
	for _, metric := range sortedMetrics(m.Breakdown) {
		score := m.Breakdown[metric]
		if score.Missing {
			fmt.Fprintf(w, "  %-22s missing (weight %.2f)\n", metric, score.Weight)
			continue
		}
		fmt.Fprintf(w, "  %-22s %.4f (weight %.2f, weighted %.4f)\n",
			metric, score.Distance, score.Weight, score.Weighted)
	}
	fmt.Fprintln(w)
}

func writeMatchesCompact(w io.Writer, summary *scan.Summary) {
	for _, m := range summary.Matches {
		fmt.Fprintf(w, "%d\t%.6f\t%s\n", m.Rank, m.Distance, m.Path)
	}
}

func sortedMetrics(b match.Breakdown) []match.Metric {
	metrics := make([]match.Metric, 0, len(b))
	for metric := range b {
		metrics = append(metrics, metric)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })
	return metrics
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
