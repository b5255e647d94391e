// Package worker implements the topic crawl execution loop run by each member
// of the coordinator's pool.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-corpus/internal/clock/system"
	"github.com/JakeFAU/topic-corpus/internal/crawler"
	"github.com/JakeFAU/topic-corpus/internal/metrics"
	"github.com/JakeFAU/topic-corpus/internal/progress"
	"github.com/JakeFAU/topic-corpus/internal/queue/memory"
)

// ErrTopicPanic marks a topic crawl that panicked.
var ErrTopicPanic = errors.New("topic crawl panicked")

// Queue hands out topic tasks.
type Queue interface {
	Dequeue(ctx context.Context) (crawler.TopicTask, error)
}

// Crawler runs a single topic; *crawler.TopicCrawler satisfies it.
type Crawler interface {
	Crawl(ctx context.Context, topic string, seeds []string, minDocs int) crawler.TopicResult
}

// Outcome is what a worker reports for each task it ran.
type Outcome struct {
	Task   crawler.TopicTask
	Result crawler.TopicResult
	Err    error
}

// Collector receives outcomes; it must be safe for concurrent use.
type Collector interface {
	Collect(Outcome)
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func(Outcome)

// Collect calls f(o).
func (f CollectorFunc) Collect(o Outcome) { f(o) }

// Worker consumes topic tasks and runs them one at a time.
type Worker struct {
	id        int
	queue     Queue
	crawler   Crawler
	collector Collector
	emitter   progress.Emitter
	clock     crawler.Clock
	tracer    trace.Tracer
	logger    *zap.Logger
}

// Options carries the optional collaborators of a Worker.
type Options struct {
	Emitter progress.Emitter
	Clock   crawler.Clock
	Tracer  trace.Tracer
	Logger  *zap.Logger
}

// New constructs a Worker.
func New(id int, queue Queue, c Crawler, collector Collector, opts Options) *Worker {
	if opts.Emitter == nil {
		opts.Emitter = progress.EmitterFunc(func(progress.Event) {})
	}
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/JakeFAU/topic-corpus/internal/worker")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Worker{
		id:        id,
		queue:     queue,
		crawler:   c,
		collector: collector,
		emitter:   opts.Emitter,
		clock:     opts.Clock,
		tracer:    opts.Tracer,
		logger:    opts.Logger.Named("worker").With(zap.Int("worker_id", id)),
	}
}

// Run blocks, consuming tasks until the queue is closed and drained or the
// context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, memory.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued topic", zap.String("topic", task.Topic))
		w.collector.Collect(w.process(ctx, task))
	}
}

func (w *Worker) process(ctx context.Context, task crawler.TopicTask) Outcome {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	ctx, span := w.tracer.Start(ctx, "crawl.topic", trace.WithAttributes(
		attribute.String("topic", task.Topic),
		attribute.String("build_id", task.BuildID),
		attribute.Int("min_docs", task.MinDocs),
		attribute.Int("seeds", len(task.Seeds)),
	))
	defer span.End()

	result, err := w.crawlTopic(ctx, task)
	span.SetAttributes(
		attribute.Int("documents", len(result.Documents)),
		attribute.Int("failures", result.FailureCount()),
	)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveTopic("failed")
		w.logger.Error("topic crawl failed", zap.String("topic", task.Topic), zap.Error(err))
		w.emitFailure(task, err)
	case result.Canceled:
		span.SetStatus(codes.Error, "canceled")
		metrics.ObserveTopic("canceled")
	default:
		metrics.ObserveTopic("success")
	}
	return Outcome{Task: task, Result: result, Err: err}
}

// crawlTopic isolates a panicking crawl so that it cannot take the pool down.
func (w *Worker) crawlTopic(ctx context.Context, task crawler.TopicTask) (result crawler.TopicResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = crawler.TopicResult{Topic: task.Topic}
			err = fmt.Errorf("%w: %v", ErrTopicPanic, r)
		}
	}()
	return w.crawler.Crawl(ctx, task.Topic, task.Seeds, task.MinDocs), nil
}

func (w *Worker) emitFailure(task crawler.TopicTask, err error) {
	w.emitter.Emit(progress.Event{
		BuildID: task.BuildID,
		Topic:   task.Topic,
		TS:      w.clock.Now(),
		Stage:   progress.StageTopicError,
		Quota:   task.MinDocs,
		Note:    err.Error(),
	})
}
