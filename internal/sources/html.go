package sources

import (
	"strings"

	"golang.org/x/net/html"
)

// skipElements never contribute visible text.
// head is walked so the title can be captured; its script/style/meta
// children contribute no text anyway.
var skipElements = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "iframe": {},
	"svg": {}, "nav": {}, "footer": {},
}

// extractText walks the HTML tree and returns the page title and the visible
// text, whitespace-collapsed, block elements newline-separated.
func extractText(rawHTML string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", collapseWhitespace(rawHTML)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skipElements[n.Data]; skip {
				return
			}
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) {
			sb.WriteByte('\n')
		}
	}
	walk(doc)

	return title, collapseWhitespace(sb.String())
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "li", "tr",
		"h1", "h2", "h3", "h4", "h5", "h6", "br", "blockquote":
		return true
	}
	return false
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if trimmed := strings.Join(strings.Fields(line), " "); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
