package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/worker"
)

// SearxClient queries a SearxNG-compatible JSON search endpoint.
type SearxClient struct {
	endpoint   string
	httpClient *http.Client
	limiter    *worker.Limiter
	userAgent  string
}

// NewSearxClient creates a search client from configuration.
func NewSearxClient(httpCfg model.HTTPConfig, searchCfg model.SearchConfig) (*SearxClient, error) {
	if searchCfg.Endpoint == "" {
		return nil, fmt.Errorf("search endpoint is required (search.endpoint)")
	}
	return &SearxClient{
		endpoint: searchCfg.Endpoint,
		httpClient: &http.Client{
			Timeout:   httpCfg.Timeout,
			Transport: &http.Transport{Proxy: newProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy)},
		},
		limiter:   worker.NewLimiter(searchCfg.RequestsPerSec, searchCfg.Burst),
		userAgent: httpCfg.UserAgent,
	}, nil
}

type searxResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and returns up to maxResults hits.
func (c *SearxClient) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4_000_000))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed searxResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]SearchResult, 0, maxResults)
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, SearchResult{URL: r.URL, Title: r.Title, Snippet: r.Content})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}
