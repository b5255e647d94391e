package coordinator

import (
	"fmt"
	"sort"
	"time"

	"github.com/JakeFAU/topic-corpus/internal/crawler"
	"github.com/JakeFAU/topic-corpus/internal/metrics"
)

// TopicFailure records a topic whose crawl did not run to completion because
// of an unexpected error. Sibling topics are unaffected.
type TopicFailure struct {
	Topic string
	Err   error
}

func (f TopicFailure) Error() string {
	return fmt.Sprintf("topic %q: %v", f.Topic, f.Err)
}

// Unwrap returns the underlying cause.
func (f TopicFailure) Unwrap() error {
	return f.Err
}

// TopicReport summarizes one topic crawl.
type TopicReport struct {
	Topic         string         `json:"topic"`
	Documents     int            `json:"documents"`
	Quota         int            `json:"quota"`
	SeedsResolved int            `json:"seeds_resolved"`
	SeedsSkipped  int            `json:"seeds_skipped"`
	FetchFailures map[string]int `json:"fetch_failures,omitempty"`
	Duplicates    int            `json:"duplicates,omitempty"`
	Canceled      bool           `json:"canceled,omitempty"`
	Duration      time.Duration  `json:"duration_ns"`
	Error         string         `json:"error,omitempty"`
}

// Report is the outcome of a CrawlAll call.
type Report struct {
	BuildID   string         `json:"build_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration_ns"`
	Documents int            `json:"documents"`
	Topics    []TopicReport  `json:"topics"`
	Failures  []TopicFailure `json:"-"`
	// Stats merges the per-topic counters and crawl durations.
	Stats metrics.Snapshot `json:"stats"`
}

// Failed reports whether any topic ended with a TopicFailure.
func (r Report) Failed() bool {
	return len(r.Failures) > 0
}

// Topic returns the report for topic, if present.
func (r Report) Topic(topic string) (TopicReport, bool) {
	for _, tr := range r.Topics {
		if tr.Topic == topic {
			return tr, true
		}
	}
	return TopicReport{}, false
}

func newTopicReport(quota int, result crawler.TopicResult, err error) TopicReport {
	tr := TopicReport{
		Topic:         result.Topic,
		Documents:     len(result.Documents),
		Quota:         quota,
		SeedsResolved: result.SeedsResolved,
		SeedsSkipped:  result.SeedsSkipped,
		Duplicates:    result.Duplicates,
		Canceled:      result.Canceled,
		Duration:      result.Duration,
	}
	if len(result.Failures) > 0 {
		tr.FetchFailures = make(map[string]int, len(result.Failures))
		for kind, n := range result.Failures {
			tr.FetchFailures[kind.String()] = n
		}
	}
	if err != nil {
		tr.Error = err.Error()
	}
	return tr
}

func (r *Report) sort() {
	sort.Slice(r.Topics, func(i, j int) bool { return r.Topics[i].Topic < r.Topics[j].Topic })
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].Topic < r.Failures[j].Topic })
}

func (tr TopicReport) aggregate() *metrics.Aggregate {
	agg := metrics.NewAggregate(0)
	agg.Add("documents", int64(tr.Documents))
	agg.Add("seeds_resolved", int64(tr.SeedsResolved))
	agg.Add("seeds_skipped", int64(tr.SeedsSkipped))
	for kind, n := range tr.FetchFailures {
		agg.Add("fetch_failures."+kind, int64(n))
	}
	agg.Add("duplicates", int64(tr.Duplicates))
	if tr.Canceled {
		agg.Add("topics_canceled", 1)
	}
	if tr.Error != "" {
		agg.Add("topics_failed", 1)
	}
	if tr.Duration > 0 {
		agg.Observe("topic", tr.Duration)
	}
	return agg
}

func (r *Report) summarize() {
	agg := metrics.NewAggregate(0)
	for _, tr := range r.Topics {
		agg.Merge(tr.aggregate())
	}
	r.Stats = agg.Snapshot()
}
