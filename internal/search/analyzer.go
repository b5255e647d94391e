package search

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// englishStopWords is the classic Lucene English stop set.
var englishStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if", "in",
	"into", "is", "it", "no", "not", "of", "on", "or", "such", "that", "the",
	"their", "then", "there", "these", "they", "this", "to", "was", "will", "with",
}

// Analyzer turns free text into index terms.
type Analyzer struct {
	stop map[string]struct{}
}

// NewAnalyzer returns the English analyzer used for every text field.
func NewAnalyzer() *Analyzer {
	stop := make(map[string]struct{}, len(englishStopWords))
	for _, w := range englishStopWords {
		stop[w] = struct{}{}
	}
	return &Analyzer{stop: stop}
}

// Analyze lowercases text, splits it on anything that is not a letter or a
// digit, drops stop words and stems what remains.
func (a *Analyzer) Analyze(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := words[:0]
	for _, w := range words {
		if _, skip := a.stop[w]; skip {
			continue
		}
		stemmed, err := snowball.Stem(w, "english", true)
		if err != nil || stemmed == "" {
			stemmed = w
		}
		terms = append(terms, stemmed)
	}
	return terms
}
