package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/topic-corpus/internal/progress"
)

// PrometheusSink exports crawl progress via Prometheus: topics started,
// completed and running, plus per-topic page outcomes and fetch latency.
type PrometheusSink struct {
	topicsStarted   prometheus.Counter
	topicsCompleted *prometheus.CounterVec
	topicsRunning   prometheus.Gauge
	topicRuntime    *prometheus.HistogramVec
	topicCollected  *prometheus.GaugeVec

	pages         *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		topicsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corpus_topics_started_total",
			Help: "Total topic crawls that have started.",
		}),
		topicsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corpus_topics_completed_total",
			Help: "Total topic crawls completed partitioned by result.",
		}, []string{"result"}),
		topicsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corpus_topics_running",
			Help: "Current number of running topic crawls.",
		}),
		topicRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corpus_topic_runtime_seconds",
			Help:    "Wall time per completed topic crawl.",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		}, []string{"result"}),
		topicCollected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corpus_topic_documents",
			Help: "Documents collected so far per topic.",
		}, []string{"topic"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corpus_pages_total",
			Help: "Page fetch outcomes partitioned by topic and outcome.",
		}, []string{"topic", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corpus_fetch_duration_seconds",
			Help:    "Page fetch duration partitioned by outcome.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"outcome"}),
	}
	for _, collector := range []prometheus.Collector{
		s.topicsStarted,
		s.topicsCompleted,
		s.topicsRunning,
		s.topicRuntime,
		s.topicCollected,
		s.pages,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageTopicStart:
		s.topicsStarted.Inc()
		s.topicsRunning.Inc()
		s.topicCollected.WithLabelValues(evt.Topic).Set(0)
	case progress.StageTopicDone:
		s.finishTopic(evt, "success")
	case progress.StageTopicError:
		s.finishTopic(evt, "error")
	case progress.StagePageDone:
		s.observePage(evt, "ok")
		s.topicCollected.WithLabelValues(evt.Topic).Set(float64(evt.Collected))
	case progress.StagePageFailed:
		s.observePage(evt, evt.Kind)
	}
}

func (s *PrometheusSink) finishTopic(evt progress.Event, result string) {
	s.topicsCompleted.WithLabelValues(result).Inc()
	s.topicsRunning.Dec()
	if evt.Dur > 0 {
		s.topicRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observePage(evt progress.Event, outcome string) {
	s.pages.WithLabelValues(evt.Topic, outcome).Inc()
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
