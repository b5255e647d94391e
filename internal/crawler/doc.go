// Package crawler implements the topic crawl engine: the page and document
// types, the fetch error taxonomy, and the single-topic breadth-first crawler
// that the coordinator fans out across topics.
package crawler
