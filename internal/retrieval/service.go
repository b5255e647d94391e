package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-corpus/internal/metrics"
	"github.com/JakeFAU/topic-corpus/internal/search"
)

// Fixed replies.
const (
	NoResults   = "No results found for your query."
	Unavailable = "Sorry, search is unavailable right now. Please try again later."
)

// ErrRetrievalUnavailable is returned together with Unavailable when the
// index could not answer.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// Searcher is the part of the index the service needs.
type Searcher interface {
	Search(ctx context.Context, text string, topics []string, k int) ([]search.Result, error)
}

// Cache stores formatted answers. A miss returns ok=false and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Options configures a Service.
type Options struct {
	TopK     int
	Cache    Cache
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// Service answers questions from the top search result.
type Service struct {
	searcher Searcher
	topK     int
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// New builds a Service. TopK below one is raised to one.
func New(searcher Searcher, opts Options) *Service {
	if opts.TopK < 1 {
		opts.TopK = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		searcher: searcher,
		topK:     opts.TopK,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger.Named("retrieval"),
	}
}

// Answer returns the formatted top hit for text within topics, NoResults
// when nothing matched, or Unavailable with ErrRetrievalUnavailable when the
// index failed.
func (s *Service) Answer(ctx context.Context, text string, topics []string) (string, error) {
	key := CacheKey(text, topics)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.ObserveCache("error")
			s.logger.Warn("answer cache read failed", zap.Error(err))
		case ok:
			metrics.ObserveCache("hit")
			return cached, nil
		default:
			metrics.ObserveCache("miss")
		}
	}

	results, err := s.searcher.Search(ctx, text, topics, s.topK)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", text), zap.Strings("topics", topics), zap.Error(err))
		return Unavailable, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}
	if len(results) == 0 {
		return NoResults, nil
	}

	answer := Format(results[0])
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, answer, s.cacheTTL); err != nil {
			s.logger.Warn("answer cache write failed", zap.Error(err))
		}
	}
	return answer, nil
}

// Format renders a result as the chat reply.
func Format(r search.Result) string {
	return "Title: " + r.Title + "\nSummary: " + r.Summary
}

// CacheKey normalizes the query text and topic set so equivalent questions
// share an entry.
func CacheKey(text string, topics []string) string {
	sorted := append([]string(nil), topics...)
	sort.Strings(sorted)
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return "answer:" + strings.Join(sorted, ",") + ":" + norm
}
