// Package sources holds the external collaborators the research loop
// consumes: web search, page fetching, and batched source-reliability
// scoring. Each may fail per call without aborting the caller.
package sources

// SearchResult is one hit from the web-search provider.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// Page is a fetched and text-extracted web page.
type Page struct {
	URL       string // final URL after redirects
	Title     string
	Text      string // extracted visible text
	FromCache bool
}
