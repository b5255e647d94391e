// Package main hosts the topic-corpus entrypoint.
//
// Subcommands:
//   - crawl: breadth-first crawls every configured topic through the MediaWiki API with a bounded pool of topic
//     workers, stores the merged corpus in the configured backend (memory/local/GCS/Postgres) and publishes a
//     build notification.
//   - index: loads the stored corpus into the search index and reports per-topic counts. Useful for checking a
//     corpus before serving it.
//   - serve: builds the index and serves /chat, /v1/search and /v1/stats. With the local backend the corpus file is
//     watched and the index is swapped in place when a new crawl lands.
//
// Configuration & plumbing: Viper populates config from a file and CORPUS_* env vars; zap provides structured
// logging; Prometheus metrics are exported on /metrics; progress events from every topic crawl are batched into log
// and metrics sinks. SIGINT/SIGTERM cancel the running command; an interrupted crawl does not replace the stored
// corpus.
//
// Quick checklist:
//   - Run locally: go run ./cmd/topiccorpus -config config.yaml crawl, then ... serve.
//   - Small corpus for experiments: CORPUS_CRAWLER_MIN_DOCS_PER_TOPIC=50.
package main
