package crawler

import "regexp"

// Whitespace here is Unicode whitespace, so non-breaking spaces in extracts
// keep separating words.
var nonAlnumSpace = regexp.MustCompile(`[^A-Za-z0-9\s\x{0B}\x{1C}-\x{1F}\x{85}\p{Z}]`)

// CleanSummary strips every character that is neither an ASCII letter, a
// digit nor whitespace.
func CleanSummary(s string) string {
	return nonAlnumSpace.ReplaceAllString(s, "")
}
