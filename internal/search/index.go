package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JakeFAU/topic-corpus/internal/crawler"
	"github.com/JakeFAU/topic-corpus/internal/metrics"
)

// BM25 parameters, matching Lucene's defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Result is one ranked hit.
type Result struct {
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	URL        string  `json:"url"`
	Topic      string  `json:"topic"`
	RevisionID string  `json:"revision_id"`
	Score      float64 `json:"score"`
}

// Query is a fully specified search request.
type Query struct {
	Text   string
	Topics []string
	K      int
	// Weights optionally overrides the schema weight of text fields by name.
	Weights map[string]float64
}

// Stats describes the index contents.
type Stats struct {
	Documents int            `json:"documents"`
	Topics    map[string]int `json:"topics"`
}

type posting struct {
	doc int
	tf  int
}

// fieldIndex holds the inverted index and length statistics of one text field.
type fieldIndex struct {
	name     string
	weight   float64
	postings map[string][]posting
	lengths  []int
	docCount int
	totalLen int
}

type entry struct {
	doc    crawler.Document
	filter string
}

// analyzedDoc is prepared outside the write lock.
type analyzedDoc struct {
	doc   crawler.Document
	terms [][]string
}

// Index is an in-memory, concurrently readable search index. Reads share a
// read lock; Reset and Ingest serialize on the write lock and only append.
type Index struct {
	analyzer *Analyzer
	tracer   trace.Tracer

	mu          sync.RWMutex
	ready       bool
	generation  uint64
	schema      Schema
	filterField string
	fields      []*fieldIndex
	docs        []entry
}

// NewIndex returns an index that must be Reset before use.
func NewIndex() *Index {
	return &Index{
		analyzer: NewAnalyzer(),
		tracer:   otel.Tracer("github.com/JakeFAU/topic-corpus/internal/search"),
	}
}

// Reset drops every document and installs schema. An invalid schema returns
// ErrIndexSetup and leaves the current index untouched.
func (ix *Index) Reset(schema Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	fields := newFieldIndexes(schema)
	filter := ""
	for _, f := range schema.Fields {
		if f.Filter {
			filter = f.Name
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.schema = schema
	ix.filterField = filter
	ix.fields = fields
	ix.docs = nil
	ix.generation++
	ix.ready = true
	return nil
}

// Ingest appends docs. Repeated calls accumulate; identical documents become
// distinct entries.
func (ix *Index) Ingest(docs []crawler.Document) error {
	if len(docs) == 0 {
		return nil
	}
	for {
		ix.mu.RLock()
		ready, generation := ix.ready, ix.generation
		names := make([]string, len(ix.fields))
		for i, f := range ix.fields {
			names[i] = f.name
		}
		ix.mu.RUnlock()
		if !ready {
			return fmt.Errorf("%w: ingest before reset", ErrIndexSetup)
		}

		prepared := ix.analyze(docs, names)

		ix.mu.Lock()
		if ix.generation != generation {
			// Schema changed while analyzing.
			ix.mu.Unlock()
			continue
		}
		ix.appendLocked(prepared)
		ix.mu.Unlock()
		metrics.ObserveIngest(len(docs))
		return nil
	}
}

// Replace swaps the index contents for docs in one step under the current
// schema, so concurrent searches see either the old or the new corpus.
func (ix *Index) Replace(docs []crawler.Document) error {
	for {
		ix.mu.RLock()
		ready, generation, schema := ix.ready, ix.generation, ix.schema
		names := make([]string, len(ix.fields))
		for i, f := range ix.fields {
			names[i] = f.name
		}
		ix.mu.RUnlock()
		if !ready {
			return fmt.Errorf("%w: replace before reset", ErrIndexSetup)
		}

		prepared := ix.analyze(docs, names)
		fresh := newFieldIndexes(schema)

		ix.mu.Lock()
		if ix.generation != generation {
			ix.mu.Unlock()
			continue
		}
		ix.fields = fresh
		ix.docs = nil
		ix.generation++
		ix.appendLocked(prepared)
		ix.mu.Unlock()
		metrics.ObserveIngest(len(docs))
		return nil
	}
}

func newFieldIndexes(schema Schema) []*fieldIndex {
	fields := make([]*fieldIndex, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		if f.Type != TypeText {
			continue
		}
		fields = append(fields, &fieldIndex{
			name:     f.Name,
			weight:   f.Weight,
			postings: make(map[string][]posting),
		})
	}
	return fields
}

func (ix *Index) analyze(docs []crawler.Document, fieldNames []string) []analyzedDoc {
	out := make([]analyzedDoc, len(docs))
	for i, d := range docs {
		terms := make([][]string, len(fieldNames))
		for j, name := range fieldNames {
			value, _ := fieldValue(d, name)
			terms[j] = ix.analyzer.Analyze(value)
		}
		out[i] = analyzedDoc{doc: d, terms: terms}
	}
	return out
}

func (ix *Index) appendLocked(prepared []analyzedDoc) {
	for _, p := range prepared {
		id := len(ix.docs)
		filter, _ := fieldValue(p.doc, ix.filterField)
		ix.docs = append(ix.docs, entry{doc: p.doc, filter: filter})
		for j, f := range ix.fields {
			terms := p.terms[j]
			f.lengths = append(f.lengths, len(terms))
			if len(terms) == 0 {
				continue
			}
			f.docCount++
			f.totalLen += len(terms)
			tf := make(map[string]int, len(terms))
			order := make([]string, 0, len(terms))
			for _, t := range terms {
				if tf[t] == 0 {
					order = append(order, t)
				}
				tf[t]++
			}
			for _, t := range order {
				f.postings[t] = append(f.postings[t], posting{doc: id, tf: tf[t]})
			}
		}
	}
}

// Search returns up to k documents whose topic is in topics, best first.
// An empty topic list or k <= 0 matches nothing.
func (ix *Index) Search(ctx context.Context, text string, topics []string, k int) ([]Result, error) {
	return ix.Query(ctx, Query{Text: text, Topics: topics, K: k})
}

// Query evaluates q. Only documents with a positive score are returned; equal
// scores keep insertion order.
func (ix *Index) Query(ctx context.Context, q Query) ([]Result, error) {
	start := time.Now()
	ctx, span := ix.tracer.Start(ctx, "search.query", trace.WithAttributes(
		attribute.Int("k", q.K),
		attribute.StringSlice("topics", q.Topics),
	))
	defer span.End()

	results, err := ix.query(ctx, q)
	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case len(results) == 0:
		outcome = "empty"
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	metrics.ObserveSearch(outcome, time.Since(start))
	return results, err
}

func (ix *Index) query(ctx context.Context, q Query) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	for name, w := range q.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: invalid weight %v for field %q", ErrQueryFailed, w, name)
		}
	}
	if q.K <= 0 || len(q.Topics) == 0 {
		return nil, nil
	}
	terms := ix.analyzer.Analyze(q.Text)
	allowed := make(map[string]struct{}, len(q.Topics))
	for _, t := range q.Topics {
		allowed[t] = struct{}{}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.ready {
		return nil, fmt.Errorf("%w: index not initialized", ErrQueryFailed)
	}
	if len(terms) == 0 || len(ix.docs) == 0 {
		return nil, nil
	}

	scores := ix.score(terms, allowed, q.Weights)
	hits := make([]int, 0, len(scores))
	for id, s := range scores {
		if s > 0 {
			hits = append(hits, id)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		si, sj := scores[hits[i]], scores[hits[j]]
		if si != sj {
			return si > sj
		}
		return hits[i] < hits[j]
	})
	if len(hits) > q.K {
		hits = hits[:q.K]
	}

	results := make([]Result, 0, len(hits))
	for _, id := range hits {
		d := ix.docs[id].doc
		results = append(results, Result{
			Title:      d.Title,
			Summary:    d.Summary,
			URL:        d.URL,
			Topic:      d.Topic,
			RevisionID: d.RevisionID,
			Score:      scores[id],
		})
	}
	return results, nil
}

// score sums, over query terms, the best weighted field score plus the
// tie-breaker share of the other fields. Caller holds the read lock.
func (ix *Index) score(terms []string, allowed map[string]struct{}, weights map[string]float64) map[int]float64 {
	type termScore struct{ max, sum float64 }
	scores := make(map[int]float64)
	tie := ix.schema.TieBreaker

	for _, term := range terms {
		perDoc := make(map[int]*termScore)
		for _, f := range ix.fields {
			list := f.postings[term]
			if len(list) == 0 || f.docCount == 0 {
				continue
			}
			weight := f.weight
			if w, ok := weights[f.name]; ok {
				weight = w
			}
			if weight == 0 {
				continue
			}
			// N counts only documents that have the field.
			n, df := float64(f.docCount), float64(len(list))
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			avgLen := float64(f.totalLen) / float64(f.docCount)
			for _, p := range list {
				if _, ok := allowed[ix.docs[p.doc].filter]; !ok {
					continue
				}
				tf := float64(p.tf)
				norm := bm25K1 * (1 - bm25B + bm25B*float64(f.lengths[p.doc])/avgLen)
				s := weight * idf * tf * (bm25K1 + 1) / (tf + norm)
				ts, ok := perDoc[p.doc]
				if !ok {
					ts = &termScore{}
					perDoc[p.doc] = ts
				}
				ts.sum += s
				if s > ts.max {
					ts.max = s
				}
			}
		}
		for id, ts := range perDoc {
			scores[id] += ts.max + tie*(ts.sum-ts.max)
		}
	}
	return scores
}

// Stats reports the number of indexed documents per topic.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	st := Stats{Documents: len(ix.docs), Topics: make(map[string]int)}
	for _, e := range ix.docs {
		st.Topics[e.doc.Topic]++
	}
	return st
}

// Ready reports whether Reset has succeeded at least once.
func (ix *Index) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.ready
}

// Schema returns the active schema.
func (ix *Index) Schema() Schema {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.schema
}
