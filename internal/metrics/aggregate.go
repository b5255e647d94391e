package metrics

import (
	"sync"
	"time"
)

// DefaultMaxSamples bounds the timing list kept per key.
const DefaultMaxSamples = 512

// Aggregate accumulates request statistics from concurrent handlers: running
// counters, per-key min/max durations and per-key timing lists. All methods are
// safe for concurrent use. Merge folds another aggregate in additively; no
// value is ever overwritten.
type Aggregate struct {
	mu         sync.Mutex
	maxSamples int
	counters   map[string]int64
	timings    map[string]*timingSeries
}

type timingSeries struct {
	count   int64
	total   time.Duration
	min     time.Duration
	max     time.Duration
	samples []time.Duration
}

// TimingStats summarizes the durations observed under one key.
type TimingStats struct {
	Count   int64           `json:"count"`
	Min     time.Duration   `json:"min_ns"`
	Max     time.Duration   `json:"max_ns"`
	Mean    time.Duration   `json:"mean_ns"`
	Total   time.Duration   `json:"total_ns"`
	Samples []time.Duration `json:"samples_ns,omitempty"`
}

// Snapshot is a point-in-time copy of an Aggregate.
type Snapshot struct {
	Counters map[string]int64       `json:"counters"`
	Timings  map[string]TimingStats `json:"timings"`
}

// NewAggregate returns an empty aggregate keeping at most maxSamples recent
// timings per key. maxSamples <= 0 selects DefaultMaxSamples.
func NewAggregate(maxSamples int) *Aggregate {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Aggregate{
		maxSamples: maxSamples,
		counters:   make(map[string]int64),
		timings:    make(map[string]*timingSeries),
	}
}

// Add increments counter key by delta.
func (a *Aggregate) Add(key string, delta int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters[key] += delta
}

// Observe records one duration under key.
func (a *Aggregate) Observe(key string, d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.series(key).observe(d, a.maxSamples)
}

func (a *Aggregate) series(key string) *timingSeries {
	s, ok := a.timings[key]
	if !ok {
		s = &timingSeries{}
		a.timings[key] = s
	}
	return s
}

func (s *timingSeries) observe(d time.Duration, maxSamples int) {
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if s.count == 0 || d > s.max {
		s.max = d
	}
	s.count++
	s.total += d
	s.samples = append(s.samples, d)
	if over := len(s.samples) - maxSamples; over > 0 {
		s.samples = append(s.samples[:0], s.samples[over:]...)
	}
}

// Merge adds every counter and timing of other into a. other is read under its
// own lock first, so merging an aggregate into itself is safe.
func (a *Aggregate) Merge(other *Aggregate) {
	if other == nil {
		return
	}
	snap := other.Snapshot()
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, n := range snap.Counters {
		a.counters[key] += n
	}
	for key, stats := range snap.Timings {
		s := a.series(key)
		if stats.Count == 0 {
			continue
		}
		if s.count == 0 || stats.Min < s.min {
			s.min = stats.Min
		}
		if s.count == 0 || stats.Max > s.max {
			s.max = stats.Max
		}
		s.count += stats.Count
		s.total += stats.Total
		s.samples = append(s.samples, stats.Samples...)
		if over := len(s.samples) - a.maxSamples; over > 0 {
			s.samples = append(s.samples[:0], s.samples[over:]...)
		}
	}
}

// Counter returns the current value of key.
func (a *Aggregate) Counter(key string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters[key]
}

// Snapshot copies the aggregate.
func (a *Aggregate) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap := Snapshot{
		Counters: make(map[string]int64, len(a.counters)),
		Timings:  make(map[string]TimingStats, len(a.timings)),
	}
	for key, n := range a.counters {
		snap.Counters[key] = n
	}
	for key, s := range a.timings {
		stats := TimingStats{
			Count:   s.count,
			Min:     s.min,
			Max:     s.max,
			Total:   s.total,
			Samples: append([]time.Duration(nil), s.samples...),
		}
		if s.count > 0 {
			stats.Mean = s.total / time.Duration(s.count)
		}
		snap.Timings[key] = stats
	}
	return snap
}
