package websearch

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SearchHit is one web-search result.
type SearchHit struct {
	Title   string
	URL     string
	Snippet string
}

// maxCount is the provider-side cap on results per query.
const maxCount = 20

// Searcher is the outbound web-search capability used by deep-link
// resolution. Implementations are swappable (Brave, Google CSE); selection
// happens at construction.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchHit, error)
	Name() string
}

// stripMarkup flattens highlight markup search engines embed in titles and
// snippets (<strong>, <b>, <em>) into plain text so name matching sees the
// words, not the tags.
func stripMarkup(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

func clampCount(count int) int {
	if count <= 0 || count > maxCount {
		return maxCount
	}
	return count
}
