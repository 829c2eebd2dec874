// Package scan walks a skin cache and ranks candidate images against a
// query image with one matching algorithm per job.
package scan

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/p-hannemann/skin-lookup/internal/match"
)

const (
	// MinKeep and MaxKeep bound how many results a scan may retain.
	MinKeep = 1
	MaxKeep = 20
)

// ClampN forces n into the supported result-count range.
func ClampN(n int) int {
	if n < MinKeep {
		return MinKeep
	}
	if n > MaxKeep {
		return MaxKeep
	}
	return n
}

// Ranker keeps the best n results seen so far. The worst retained result
// sits on top of an internal max-heap, so an offer is O(log n) and memory
// stays bounded no matter how many candidates a scan visits.
type Ranker struct {
	mu   sync.Mutex
	n    int
	heap resultHeap
}

// NewRanker returns a ranker keeping the best n results, n clamped to [1,20].
func NewRanker(n int) *Ranker {
	return &Ranker{n: ClampN(n)}
}

// N returns the clamped retention count.
func (rk *Ranker) N() int {
	return rk.n
}

// Offer adds r if it ranks among the best n seen so far and reports whether
// it was retained.
func (rk *Ranker) Offer(r match.Result) bool {
	rk.mu.Lock()
	defer rk.mu.Unlock()

	if len(rk.heap) < rk.n {
		heap.Push(&rk.heap, r)
		return true
	}
	if r.Distance >= rk.heap[0].Distance {
		return false
	}
	rk.heap[0] = r
	heap.Fix(&rk.heap, 0)
	return true
}

// Len returns how many results are currently retained.
func (rk *Ranker) Len() int {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	return len(rk.heap)
}

// Results returns the retained results in ascending distance order with
// 1-based ranks assigned. Ties sort by path for stable output.
func (rk *Ranker) Results() []match.Result {
	rk.mu.Lock()
	defer rk.mu.Unlock()

	out := make([]match.Result, len(rk.heap))
	copy(out, rk.heap)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Path < out[j].Path
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// resultHeap is a max-heap on distance so the worst retained result is on top.
type resultHeap []match.Result

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return h[i].Distance > h[j].Distance }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) {
	*h = append(*h, x.(match.Result))
}

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
