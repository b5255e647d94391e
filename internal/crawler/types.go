package crawler

import "time"

// Document is one crawled article tagged with the topic that discovered it.
// Documents are created once by a TopicCrawler and never mutated.
type Document struct {
	Title      string `json:"title"`
	RevisionID string `json:"revision_id"`
	Summary    string `json:"summary"`
	URL        string `json:"url"`
	Topic      string `json:"topic"`
}

// Page is the content returned by a PageFetcher for a single article.
type Page struct {
	Title      string
	RevisionID string
	Summary    string
	URL        string
	Links      []string
}

// Document converts the fetched page into a corpus document for topic.
func (p Page) Document(topic string) Document {
	return Document{
		Title:      p.Title,
		RevisionID: p.RevisionID,
		Summary:    p.Summary,
		URL:        p.URL,
		Topic:      topic,
	}
}

// TopicTask describes one topic crawl waiting for a worker.
type TopicTask struct {
	BuildID string
	Topic   string
	Seeds   []string
	MinDocs int
}

// TopicResult is the outcome of crawling a single topic.
type TopicResult struct {
	Topic         string
	Documents     []Document
	SeedsResolved int
	SeedsSkipped  int
	Failures      map[FetchErrorKind]int
	Duplicates    int // fetches that resolved to a page already collected
	Canceled      bool
	Duration      time.Duration
}

// FailureCount sums all fetch failures recorded during the crawl.
func (r TopicResult) FailureCount() int {
	total := 0
	for _, n := range r.Failures {
		total += n
	}
	return total
}
