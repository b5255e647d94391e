// Package coordinator fans topic crawls out over a bounded worker pool and
// merges their documents into one corpus. Each topic crawl owns its state;
// the queue, the pool and the fan-in collector are the only shared pieces.
package coordinator
