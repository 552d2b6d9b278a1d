// Package planner implements the search procedure of the memory engine:
// dimension validation, entry-table snapshotting, parallel decay- and
// importance-weighted scoring, threshold filtering, and top-K selection.
package planner

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"runtime"

	"ragmemory/internal/entrytable"
	"ragmemory/internal/similarity"
)

// ErrDimensionMismatch is returned when the query vector's length does
// not match the planner's configured dimension.
var ErrDimensionMismatch = errors.New("planner: dimension mismatch")

// Result is a single scored search hit.
type Result struct {
	ID        string
	Text      string
	Score     float32
	Timestamp float64
}

// minWorkersThreshold is the per-worker item threshold of the parallel
// scan: below it, scoring runs in a single worker goroutine rather than
// being split across several.
const minWorkersThreshold = 500

// adaptiveWorkers returns the worker count for scoring n entries.
func adaptiveWorkers(n int) int {
	if n < minWorkersThreshold {
		return 1
	}
	w := n / minWorkersThreshold
	if cpus := runtime.NumCPU(); w > cpus {
		w = cpus
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Search validates query against dimension, takes a snapshot of table,
// scores every entry in parallel, discards results below threshold, and
// returns up to k results sorted by score descending. now is the
// reference time (seconds since epoch) used to compute entry age for
// decay; passing it in rather than calling time.Now() internally keeps
// scoring deterministic for tests.
func Search(table *entrytable.Table, dimension int, query []float32, k int, decayFactor float64, threshold float32, now float64) ([]Result, error) {
	if len(query) != dimension {
		return nil, fmt.Errorf("planner: search: %w: got %d, want %d", ErrDimensionMismatch, len(query), dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	snapshot := table.Snapshot()
	if len(snapshot) == 0 {
		return nil, nil
	}

	numWorkers := adaptiveWorkers(len(snapshot))
	chunkSize := (len(snapshot) + numWorkers - 1) / numWorkers

	type partial struct {
		items []scoredEntry
	}
	resultsCh := make(chan partial, numWorkers)

	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > len(snapshot) {
			end = len(snapshot)
		}
		if start >= end {
			resultsCh <- partial{}
			continue
		}
		go func(slice []entrytable.Entry) {
			h := &topKHeap{}
			heap.Init(h)
			for i := range slice {
				e := &slice[i]
				score := scoreEntry(e, query, decayFactor, now)
				if math.IsNaN(float64(score)) {
					continue
				}
				if score < threshold {
					continue
				}
				if h.Len() < k {
					heap.Push(h, scoredEntry{entry: e, score: score})
				} else if score > (*h)[0].score {
					(*h)[0] = scoredEntry{entry: e, score: score}
					heap.Fix(h, 0)
				}
			}
			resultsCh <- partial{items: []scoredEntry(*h)}
		}(snapshot[start:end])
	}

	merged := &topKHeap{}
	heap.Init(merged)
	for w := 0; w < numWorkers; w++ {
		pr := <-resultsCh
		for _, item := range pr.items {
			if merged.Len() < k {
				heap.Push(merged, item)
			} else if item.score > (*merged)[0].score {
				(*merged)[0] = item
				heap.Fix(merged, 0)
			}
		}
	}

	n := merged.Len()
	out := make([]Result, n)
	for i := n - 1; i >= 0; i-- {
		item := heap.Pop(merged).(scoredEntry)
		out[i] = Result{
			ID:        item.entry.ID,
			Text:      item.entry.Text,
			Score:     item.score,
			Timestamp: item.entry.Timestamp,
		}
	}

	return out, nil
}

// scoreEntry computes base*decay*importance for a single entry against
// query, clamping negative ages (future timestamps) to zero so clock skew
// never inflates a score above what decay=1 would give.
func scoreEntry(e *entrytable.Entry, query []float32, decayFactor, now float64) float32 {
	base := similarity.Cosine(query, e.Embedding)

	decay := float32(1.0)
	if decayFactor > 0 {
		ageHours := (now - e.Timestamp) / 3600
		if ageHours < 0 {
			ageHours = 0
		}
		decay = float32(math.Exp(-decayFactor * ageHours))
	}

	return base * decay * e.Importance
}

// scoredEntry pairs a scoring snapshot entry with its computed score for
// the per-worker top-K heap.
type scoredEntry struct {
	entry *entrytable.Entry
	score float32
}

// topKHeap is a min-heap of scoredEntry ordered by ascending score, so the
// lowest-scoring item sits at the root and is the one evicted as better
// candidates arrive. NaN scores are filtered out by the caller before
// reaching the heap, so Less never has to special-case them.
type topKHeap []scoredEntry

func (h topKHeap) Len() int           { return len(h) }
func (h topKHeap) Less(i, j int) bool { return h[i].score < h[j].score }
func (h topKHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *topKHeap) Push(x interface{}) {
	*h = append(*h, x.(scoredEntry))
}
func (h *topKHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
