package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-corpus/internal/clock/system"
	"github.com/JakeFAU/topic-corpus/internal/progress"
)

// TopicCrawler runs one topic's breadth-first traversal. A single TopicCrawler
// may serve many topics; all crawl state lives on the stack of Crawl, so
// concurrent calls never share a visited set.
type TopicCrawler struct {
	fetcher  PageFetcher
	resolver SeedResolver
	emitter  progress.Emitter
	clock    Clock
	logger   *zap.Logger
}

// NewTopicCrawler wires the collaborators. emitter, clock and logger are
// optional.
func NewTopicCrawler(fetcher PageFetcher, resolver SeedResolver, emitter progress.Emitter, clock Clock, logger *zap.Logger) *TopicCrawler {
	if emitter == nil {
		emitter = progress.EmitterFunc(func(progress.Event) {})
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicCrawler{
		fetcher:  fetcher,
		resolver: resolver,
		emitter:  emitter,
		clock:    clock,
		logger:   logger.Named("topic_crawler"),
	}
}

// crawlState is owned by exactly one Crawl invocation.
type crawlState struct {
	pending   []string
	visited   map[string]struct{}
	titles    map[string]struct{}
	collected []Document
}

// enqueue appends name unless it was ever visited. It reports whether the
// name was added.
func (s *crawlState) enqueue(name string) bool {
	if name == "" {
		return false
	}
	if _, seen := s.visited[name]; seen {
		return false
	}
	s.visited[name] = struct{}{}
	s.pending = append(s.pending, name)
	return true
}

// collect records page under its canonical title. Redirects can deliver a
// page already collected under another name; those report false.
func (s *crawlState) collect(page Page, topic string) bool {
	s.visited[page.Title] = struct{}{}
	if _, dup := s.titles[page.Title]; dup {
		return false
	}
	s.titles[page.Title] = struct{}{}
	s.collected = append(s.collected, page.Document(topic))
	return true
}

func (s *crawlState) pop() string {
	name := s.pending[0]
	s.pending[0] = ""
	s.pending = s.pending[1:]
	return name
}

// Crawl resolves seeds to page names and expands the link graph breadth-first
// until minDocs documents are collected or the frontier is exhausted. Fetch
// failures are counted and skipped; they never end the crawl. A cancelled ctx
// stops the loop at the next iteration and returns the partial result.
func (c *TopicCrawler) Crawl(ctx context.Context, topic string, seeds []string, minDocs int) TopicResult {
	start := c.clock.Now()
	result := TopicResult{
		Topic:    topic,
		Failures: make(map[FetchErrorKind]int),
	}
	if minDocs <= 0 {
		return result
	}

	c.emit(ctx, progress.Event{Topic: topic, Stage: progress.StageTopicStart, Quota: minDocs})
	state := &crawlState{
		visited: make(map[string]struct{}),
		titles:  make(map[string]struct{}),
	}

	for _, keyword := range seeds {
		if ctx.Err() != nil {
			break
		}
		name, err := c.resolver.Resolve(ctx, keyword)
		if err != nil {
			result.SeedsSkipped++
			c.logger.Debug("seed skipped",
				zap.String("topic", topic),
				zap.String("seed", keyword),
				zap.Error(err),
			)
			continue
		}
		result.SeedsResolved++
		state.enqueue(name)
	}

	for len(state.pending) > 0 && len(state.collected) < minDocs {
		if ctx.Err() != nil {
			result.Canceled = true
			break
		}
		name := state.pop()
		fetchStart := c.clock.Now()
		page, err := c.fetcher.Fetch(ctx, name)
		dur := nonNegative(c.clock.Now().Sub(fetchStart))
		if err != nil {
			kind := KindOf(err)
			result.Failures[kind]++
			c.logger.Debug("page skipped",
				zap.String("topic", topic),
				zap.String("page", name),
				zap.String("kind", kind.String()),
				zap.Error(err),
			)
			c.emit(ctx, progress.Event{
				Topic:     topic,
				Stage:     progress.StagePageFailed,
				Page:      name,
				Kind:      kind.String(),
				Collected: len(state.collected),
				Quota:     minDocs,
				Dur:       dur,
			})
			continue
		}

		if !state.collect(page, topic) {
			result.Duplicates++
			c.logger.Debug("page already collected",
				zap.String("topic", topic),
				zap.String("page", name),
				zap.String("title", page.Title),
			)
			continue
		}
		for _, link := range page.Links {
			state.enqueue(link)
		}
		c.emit(ctx, progress.Event{
			Topic:     topic,
			Stage:     progress.StagePageDone,
			Page:      name,
			Collected: len(state.collected),
			Quota:     minDocs,
			Dur:       dur,
		})
	}
	if !result.Canceled && ctx.Err() != nil && len(state.collected) < minDocs {
		result.Canceled = true
	}

	result.Documents = state.collected
	result.Duration = nonNegative(c.clock.Now().Sub(start))

	done := progress.Event{
		Topic:     topic,
		Stage:     progress.StageTopicDone,
		Collected: len(result.Documents),
		Quota:     minDocs,
		Dur:       result.Duration,
	}
	if result.Canceled {
		done.Stage = progress.StageTopicError
		done.Note = context.Cause(ctx).Error()
	}
	c.emit(ctx, done)

	c.logger.Info("topic crawl finished",
		zap.String("topic", topic),
		zap.Int("documents", len(result.Documents)),
		zap.Int("quota", minDocs),
		zap.Int("seeds_resolved", result.SeedsResolved),
		zap.Int("seeds_skipped", result.SeedsSkipped),
		zap.Int("failures", result.FailureCount()),
		zap.Int("duplicates", result.Duplicates),
		zap.Bool("canceled", result.Canceled),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func (c *TopicCrawler) emit(ctx context.Context, evt progress.Event) {
	evt.TS = c.clock.Now()
	if evt.BuildID == "" {
		evt.BuildID = progress.BuildFromContext(ctx)
	}
	c.emitter.Emit(evt)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
