// Package corpus persists the crawled document list. The artifact is a JSON
// array of documents with the fields title, revision_id, summary, url and
// topic; it is the only thing the crawl hands to the indexer.
package corpus
