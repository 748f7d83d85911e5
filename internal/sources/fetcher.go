package sources

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/veridex/internal/cache"
	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/worker"
)

// maxExtractChars caps the text handed to evidence extraction; pages beyond
// this add token cost without adding probative content.
const maxExtractChars = 24_000

// HTTPFetcher fetches pages with per-domain rate limiting, robots.txt
// compliance, and a layered TTL cache in front of the network.
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	limiter    *worker.Limiter
	robots     *RobotsChecker
	pages      cache.Cache
}

// NewHTTPFetcher creates a fetcher from configuration. robots and pages may
// be nil to disable compliance checking and caching.
func NewHTTPFetcher(httpCfg model.HTTPConfig, searchCfg model.SearchConfig, cacheCfg model.CacheConfig) *HTTPFetcher {
	transport := &http.Transport{
		Proxy: newProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy),
	}
	if httpCfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	f := &HTTPFetcher{
		httpClient: &http.Client{
			Timeout:   httpCfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: httpCfg.UserAgent,
		maxBytes:  httpCfg.MaxBodyBytes,
		limiter:   worker.NewLimiter(searchCfg.RequestsPerSec, searchCfg.Burst),
	}
	if searchCfg.RespectRobots {
		f.robots = NewRobotsChecker(httpCfg.UserAgent, httpCfg.Timeout)
	}
	if cacheCfg.Enabled {
		f.pages = cache.NewLayeredCache(cacheCfg.MemoryTTL, cacheCfg.Dir, cacheCfg.DiskTTL)
	}
	return f
}

type cachedPage struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Fetch retrieves one page, serving from cache when possible.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if f.pages != nil {
		if data, found := f.pages.Get(cache.Key(rawURL)); found {
			var cp cachedPage
			if err := json.Unmarshal(data, &cp); err == nil {
				return &Page{URL: cp.URL, Title: cp.Title, Text: cp.Text, FromCache: true}, nil
			}
		}
	}

	if f.robots != nil {
		allowed, err := f.robots.CanFetch(ctx, rawURL)
		if err == nil && !allowed {
			return nil, fmt.Errorf("disallowed by robots.txt: %s", rawURL)
		}
	}

	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	title, text := extractText(string(body))
	text = truncateUTF8(text, maxExtractChars)

	page := &Page{
		URL:   resp.Request.URL.String(),
		Title: title,
		Text:  text,
	}

	if f.pages != nil {
		if data, err := json.Marshal(cachedPage{URL: page.URL, Title: page.Title, Text: page.Text}); err == nil {
			_ = f.pages.Set(cache.Key(rawURL), data, 0)
		}
	}
	return page, nil
}

// FetchTimeout exposes the client timeout for callers sizing iteration
// deadlines.
func (f *HTTPFetcher) FetchTimeout() time.Duration {
	return f.httpClient.Timeout
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
