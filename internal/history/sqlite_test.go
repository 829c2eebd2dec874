package history

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/p-hannemann/skin-lookup/internal/match"
	"github.com/p-hannemann/skin-lookup/internal/scan"
)

func testEntry(id string, startedAt time.Time) *Entry {
	return &Entry{
		ID:        id,
		Algorithm: "fast",
		Query:     "/tmp/query.png",
		Root:      "/tmp/cache",
		StartedAt: startedAt,
		ElapsedMS: 731,
		Processed: 120,
		Skipped:   3,
		Total:     120,
		Matches: []match.Result{
			{
				Path:     "/tmp/cache/3f9a",
				Distance: 0.012,
				Rank:     1,
				Breakdown: match.Breakdown{
					match.MetricHistogram: {Distance: 0.01, Weight: 0.8, Weighted: 0.008},
					match.MetricHash:      {Distance: 0.02, Weight: 0.2, Weighted: 0.004},
				},
			},
			{Path: "/tmp/cache/77c1", Distance: 0.4, Rank: 2},
		},
	}
}

func TestStore_SaveGet(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	e := testEntry("scan1", time.Now())
	if err := store.Save(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "scan1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Algorithm != "fast" || got.Processed != 120 || got.Skipped != 3 {
		t.Errorf("got %+v", got)
	}
	if got.StartedAt.Unix() != e.StartedAt.Unix() {
		t.Errorf("started_at = %v, want %v", got.StartedAt, e.StartedAt)
	}
	if !reflect.DeepEqual(got.Matches, e.Matches) {
		t.Errorf("matches = %+v, want %+v", got.Matches, e.Matches)
	}

	if _, err := store.Get(ctx, "nope"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestStore_SaveRejectsDuplicateID(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, testEntry("dup", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, testEntry("dup", time.Now())); err == nil {
		t.Error("expected primary key violation")
	}
	if err := store.Save(ctx, &Entry{}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		if err := store.Save(ctx, testEntry(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != "new" || entries[1].ID != "mid" {
		t.Errorf("order = %s, %s", entries[0].ID, entries[1].ID)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("count = %d", count)
	}
}

func TestStore_FromSummary(t *testing.T) {
	sum := &scan.Summary{
		Query:     "q.png",
		Algorithm: "balanced",
		Root:      "/cache",
		Matches:   []match.Result{{Path: "a", Distance: 0.1, Rank: 1}},
		Processed: 10,
		Skipped:   1,
		Total:     10,
		ElapsedMS: 55,
		Cancelled: true,
	}
	started := time.Now()
	e := FromSummary("id1", started, sum)
	if e.ID != "id1" || e.Algorithm != "balanced" || !e.Cancelled {
		t.Errorf("entry = %+v", e)
	}
	if e.ElapsedMS != 55 || e.Processed != 10 || e.Skipped != 1 || e.Total != 10 {
		t.Errorf("counters = %+v", e)
	}
	if len(e.Matches) != 1 || e.Matches[0].Path != "a" {
		t.Errorf("matches = %+v", e.Matches)
	}
}

func TestStore_DiskUsage(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Save(context.Background(), testEntry("s1", time.Now())); err != nil {
		t.Fatal(err)
	}
	n, err := store.DiskUsageBytes()
	if err != nil {
		t.Fatal(err)
	}
	if n <= 0 {
		t.Errorf("disk usage = %d", n)
	}
}
