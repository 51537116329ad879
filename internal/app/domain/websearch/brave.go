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

// BraveClient implements Searcher over the Brave Web Search API. Preferred
// engine when a subscription token is configured.
type BraveClient struct {
	client *request.Client
	cfg    config.WebSearchConfig
	logger *zap.Logger
}

var _ Searcher = (*BraveClient)(nil)

func NewBraveClient(cfg *config.Config, logger *zap.Logger) *BraveClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BraveClient{
		client: request.New(cfg.Timeouts.WebSearch, cfg.Retries.WebSearch, cfg.Retries.WebSearchBackoff, logger),
		cfg:    cfg.WebSearch,
		logger: logger,
	}
}

func (b *BraveClient) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (b *BraveClient) Search(ctx context.Context, query string, count int) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(clampCount(count)))

	headers := map[string]string{
		"Accept":               "application/json",
		"X-Subscription-Token": b.cfg.BraveAPIKey,
	}

	var resp braveResponse
	if err := b.client.GetJSON(ctx, b.cfg.BraveURL+"?"+params.Encode(), headers, &resp); err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}

	hits := make([]SearchHit, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		hits = append(hits, SearchHit{
			// Brave highlights query terms with <strong> inside titles and
			// descriptions.
			Title:   stripMarkup(r.Title),
			URL:     r.URL,
			Snippet: stripMarkup(r.Description),
		})
	}

	b.logger.Debug("Web search complete",
		zap.String("engine", "brave"),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}
