// Package search is the in-process corpus index. Text fields are analyzed
// (lowercase, stop words, English stemming) and scored with BM25; per query
// term the best weighted field wins and the remaining fields add a tie-breaker
// fraction, which is the extended disjunction-max model. A topic filter
// restricts candidates before ranking.
package search
