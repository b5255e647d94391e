package coordinator

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-corpus/internal/clock/system"
	"github.com/JakeFAU/topic-corpus/internal/crawler"
	"github.com/JakeFAU/topic-corpus/internal/progress"
	"github.com/JakeFAU/topic-corpus/internal/queue/memory"
	"github.com/JakeFAU/topic-corpus/internal/worker"
)

// Options carries the optional collaborators of a Coordinator.
type Options struct {
	IDs     crawler.IDGenerator
	Emitter progress.Emitter
	Clock   crawler.Clock
	Tracer  trace.Tracer
	Logger  *zap.Logger
}

// Coordinator runs one crawl per topic on a bounded pool.
type Coordinator struct {
	crawler worker.Crawler
	opts    Options
	logger  *zap.Logger
}

// New creates a Coordinator around a single-topic crawler.
func New(c worker.Crawler, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Coordinator{
		crawler: c,
		opts:    opts,
		logger:  opts.Logger.Named("coordinator"),
	}
}

// fanIn is the append-only output shared by all workers.
type fanIn struct {
	mu     sync.Mutex
	docs   []crawler.Document
	report *Report
}

func (f *fanIn) Collect(o worker.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, o.Result.Documents...)
	if o.Result.Topic == "" {
		o.Result.Topic = o.Task.Topic
	}
	f.report.Topics = append(f.report.Topics, newTopicReport(o.Task.MinDocs, o.Result, o.Err))
	if o.Err != nil {
		f.report.Failures = append(f.report.Failures, TopicFailure{Topic: o.Task.Topic, Err: o.Err})
	}
}

// CrawlAll crawls every topic in topicSeeds with at most maxConcurrency topics
// in flight and returns the merged documents. Topics are scheduled in name
// order; documents are appended as topics complete, so interleaving across
// topics varies between runs while the multiset does not. A failing topic is
// recorded in the Report and never stops its siblings.
func (c *Coordinator) CrawlAll(
	ctx context.Context,
	topicSeeds map[string][]string,
	minDocsPerTopic int,
	maxConcurrency int,
) ([]crawler.Document, Report) {
	start := c.opts.Clock.Now()
	report := Report{BuildID: c.newBuildID(), StartedAt: start}
	if len(topicSeeds) == 0 {
		return nil, report
	}

	topics := make([]string, 0, len(topicSeeds))
	for topic := range topicSeeds {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	poolSize := maxConcurrency
	if poolSize <= 0 {
		poolSize = 1
	}
	if poolSize > len(topics) {
		poolSize = len(topics)
	}

	ctx = progress.ContextWithBuild(ctx, report.BuildID)
	queue := memory.NewQueue(poolSize)
	out := &fanIn{report: &report}
	emitter := progress.WithBuild(c.opts.Emitter, report.BuildID)

	c.logger.Info("crawl started",
		zap.String("build_id", report.BuildID),
		zap.Int("topics", len(topics)),
		zap.Int("workers", poolSize),
		zap.Int("min_docs_per_topic", minDocsPerTopic),
	)

	var wg sync.WaitGroup
	for i := 0; i < poolSize; i++ {
		w := worker.New(i, queue, c.crawler, out, worker.Options{
			Emitter: emitter,
			Clock:   c.opts.Clock,
			Tracer:  c.opts.Tracer,
			Logger:  c.opts.Logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	scheduled := 0
	for _, topic := range topics {
		task := crawler.TopicTask{
			BuildID: report.BuildID,
			Topic:   topic,
			Seeds:   append([]string(nil), topicSeeds[topic]...),
			MinDocs: minDocsPerTopic,
		}
		if err := queue.Enqueue(ctx, task); err != nil {
			c.logger.Warn("topic not scheduled", zap.String("topic", topic), zap.Error(err))
			break
		}
		scheduled++
	}
	c.logger.Debug("topics scheduled", zap.Int("scheduled", scheduled), zap.Int("queued", queue.Len()))
	queue.Close()
	wg.Wait()

	// Tasks still queued when the workers stopped were never run.
	unscheduled := topics[scheduled:]
	for {
		task, err := queue.Dequeue(context.WithoutCancel(ctx))
		if err != nil {
			break
		}
		unscheduled = append(unscheduled, task.Topic)
	}
	for _, topic := range unscheduled {
		err := context.Cause(ctx)
		if err == nil {
			err = memory.ErrClosed
		}
		report.Topics = append(report.Topics, TopicReport{Topic: topic, Quota: minDocsPerTopic, Canceled: true, Error: err.Error()})
		report.Failures = append(report.Failures, TopicFailure{Topic: topic, Err: err})
	}

	report.Documents = len(out.docs)
	report.Duration = c.opts.Clock.Now().Sub(start)
	report.sort()
	report.summarize()
	for _, f := range report.Failures {
		c.logger.Error("topic crawl failure", zap.String("topic", f.Topic), zap.Error(f.Err))
	}
	c.logger.Info("crawl finished",
		zap.String("build_id", report.BuildID),
		zap.Int("documents", report.Documents),
		zap.Int("failed_topics", len(report.Failures)),
		zap.Duration("duration", report.Duration),
	)
	return out.docs, report
}

func (c *Coordinator) newBuildID() string {
	if c.opts.IDs == nil {
		return ""
	}
	id, err := c.opts.IDs.NewID()
	if err != nil {
		c.logger.Warn("build id generation failed", zap.Error(err))
		return ""
	}
	return id
}
