// Package retrieval turns a free-text question into a single formatted answer
// drawn from the search index.
package retrieval
