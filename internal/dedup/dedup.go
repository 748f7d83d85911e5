// Package dedup provides content-hash set membership for evidence items and
// fetched URLs, giving the research loop O(1) duplicate checks.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/veridex/internal/model"
)

// Index is a hash-based membership set for one run.
type Index struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{seen: make(map[string]struct{})}
}

// Add inserts a key and reports whether it was new.
func (i *Index) Add(key string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.seen[key]; ok {
		return false
	}
	i.seen[key] = struct{}{}
	return true
}

// Contains reports membership without inserting.
func (i *Index) Contains(key string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.seen[key]
	return ok
}

// Len returns the number of distinct keys.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.seen)
}

// EvidenceKey hashes the normalized content of an evidence item. Hashing is
// idempotent: the same item yields the same key regardless of insertion
// order or id assignment.
func EvidenceKey(e *model.EvidenceItem) string {
	stmt := strings.ToLower(strings.Join(strings.Fields(e.Statement), " "))
	h := sha256.Sum256([]byte(stmt + "\n" + NormalizeURL(e.SourceURL)))
	return "ev:" + hex.EncodeToString(h[:])
}

// URLKey hashes a normalized URL.
func URLKey(rawURL string) string {
	h := sha256.Sum256([]byte(NormalizeURL(rawURL)))
	return "url:" + hex.EncodeToString(h[:])
}

// trackingParams are stripped before hashing so the same page reached through
// different campaigns deduplicates.
var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {},
	"utm_content": {}, "fbclid": {}, "gclid": {}, "ref": {},
}

// NormalizeURL canonicalizes scheme, host, and query parameters so trivially
// different URLs hash identically.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return strings.TrimSpace(strings.ToLower(rawURL))
	}

	parsed.Scheme = "https"
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	q := parsed.Query()
	for param := range q {
		if _, ok := trackingParams[strings.ToLower(param)]; ok {
			q.Del(param)
		}
	}
	// Sorted re-encoding keeps parameter order from affecting the hash.
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var enc strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if enc.Len() > 0 {
				enc.WriteByte('&')
			}
			enc.WriteString(url.QueryEscape(k))
			enc.WriteByte('=')
			enc.WriteString(url.QueryEscape(v))
		}
	}
	parsed.RawQuery = enc.String()

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	return parsed.String()
}
