package wiki

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/topic-corpus/internal/crawler"
)

// flattenExtract turns the HTML intro extract into the cleaned plain-text
// summary stored on a Document.
func flattenExtract(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse extract: %w", err)
	}
	doc.Find("script,noscript,style,sup.reference").Remove()

	var parts []string
	doc.Find("p,li").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		parts = append(parts, strings.TrimSpace(doc.Text()))
	}
	text := crawler.CleanSummary(strings.Join(parts, "\n"))
	return strings.TrimSpace(text), nil
}
