package websearch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/pkg/config"
	"github.com/dinefind/dinefind/internal/pkg/request"
)

// cseMaxPerPage is the CSE API's hard cap per request; larger asks are
// paged.
const cseMaxPerPage = 10

// CSEClient implements Searcher over Google Custom Search. Fallback engine
// when Brave is not configured.
type CSEClient struct {
	client *request.Client
	cfg    config.WebSearchConfig
	logger *zap.Logger
}

var _ Searcher = (*CSEClient)(nil)

func NewCSEClient(cfg *config.Config, logger *zap.Logger) *CSEClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSEClient{
		client: request.New(cfg.Timeouts.WebSearch, cfg.Retries.WebSearch, cfg.Retries.WebSearchBackoff, logger),
		cfg:    cfg.WebSearch,
		logger: logger,
	}
}

func (c *CSEClient) Name() string { return "cse" }

type cseResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (c *CSEClient) Search(ctx context.Context, query string, count int) ([]SearchHit, error) {
	count = clampCount(count)
	hits := make([]SearchHit, 0, count)

	for start := 1; len(hits) < count; start += cseMaxPerPage {
		page := count - len(hits)
		if page > cseMaxPerPage {
			page = cseMaxPerPage
		}

		params := url.Values{}
		params.Set("key", c.cfg.CSEKey)
		params.Set("cx", c.cfg.CSECX)
		params.Set("q", query)
		params.Set("num", strconv.Itoa(page))
		params.Set("start", strconv.Itoa(start))

		var resp cseResponse
		if err := c.client.GetJSON(ctx, c.cfg.CSEURL+"?"+params.Encode(), nil, &resp); err != nil {
			return nil, fmt.Errorf("cse search: %w", err)
		}
		if len(resp.Items) == 0 {
			break
		}
		for _, item := range resp.Items {
			hits = append(hits, SearchHit{
				Title:   stripMarkup(item.Title),
				URL:     item.Link,
				Snippet: stripMarkup(item.Snippet),
			})
		}
	}

	c.logger.Debug("Web search complete",
		zap.String("engine", "cse"),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}

// Select picks the configured engine: Brave when its token exists, else CSE
// when key and cx exist, else nil (resolution degrades to NOT_FOUND).
func Select(cfg *config.Config, logger *zap.Logger) Searcher {
	if cfg.WebSearch.BraveAPIKey != "" {
		return NewBraveClient(cfg, logger)
	}
	if cfg.WebSearch.CSEKey != "" && cfg.WebSearch.CSECX != "" {
		return NewCSEClient(cfg, logger)
	}
	return nil
}
