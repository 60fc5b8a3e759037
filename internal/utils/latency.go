package utils

import (
	"slices"
	"sync"
	"time"
)

const defaultLatencyWindow = 512

// LatencyTracker keeps a sliding window of recent durations in a ring buffer
// and counts every observation ever made.
type LatencyTracker struct {
	mu     sync.Mutex
	window []time.Duration
	next   int
	total  int
}

// LatencySummary is a point-in-time view of the window.
type LatencySummary struct {
	Samples int
	Total   int
	P50     time.Duration
	P95     time.Duration
	Max     time.Duration
}

// NewLatencyTracker keeps the last size durations.
func NewLatencyTracker(size int) *LatencyTracker {
	if size <= 0 {
		size = defaultLatencyWindow
	}
	return &LatencyTracker{window: make([]time.Duration, 0, size)}
}

// Observe records d, overwriting the oldest sample once the window is full,
// and returns the number of observations so far.
func (l *LatencyTracker) Observe(d time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.window) < cap(l.window) {
		l.window = append(l.window, d)
	} else {
		l.window[l.next] = d
	}
	l.next = (l.next + 1) % cap(l.window)
	l.total++
	return l.total
}

// Percentile returns the nearest-rank p-th percentile (0-100) of the window,
// or zero when empty.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.Lock()
	sorted := l.sorted()
	l.mu.Unlock()
	return percentile(sorted, p)
}

// Summary returns the window's median, p95 and max.
func (l *LatencyTracker) Summary() LatencySummary {
	l.mu.Lock()
	sorted := l.sorted()
	total := l.total
	l.mu.Unlock()

	s := LatencySummary{Samples: len(sorted), Total: total}
	if len(sorted) == 0 {
		return s
	}
	s.P50 = percentile(sorted, 50)
	s.P95 = percentile(sorted, 95)
	s.Max = sorted[len(sorted)-1]
	return s
}

// Count returns the number of samples currently in the window.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.window)
}

func (l *LatencyTracker) sorted() []time.Duration {
	out := slices.Clone(l.window)
	slices.Sort(out)
	return out
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}
	return sorted[int(p/100*float64(len(sorted)-1))]
}
