// Package websearch implements the DeepResearchAgent's WEB_SEARCH step
// (spec.md §4.K). Grounded on original_source/agentic_research.py's
// SmartResearchAgent._fetch_duckduckgo: the "none" provider is the safe
// default (web search requires an explicit opt-in per spec.md's Non-goals
// around outbound network calls), "ddg" scrapes DuckDuckGo's HTML result
// page the same way the original does, and "serpapi"/"bing" are named,
// unimplemented variants left for an operator with those API keys to wire.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/yungbote/ragcore/internal/apperr"
	"github.com/yungbote/ragcore/internal/logger"
)

type Hit struct {
	Title   string
	URL     string
	Snippet string
}

type WebSearch interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	// FetchURL retrieves a single caller-supplied URL and returns it as a
	// Hit (title + extracted body text as Snippet), so a Deep Research ask
	// carrying explicit `urls` can fold them in as evidence alongside any
	// provider search results, without requiring a configured provider.
	FetchURL(ctx context.Context, u string) (Hit, error)
}

func Resolve(provider string, log *logger.Logger) WebSearch {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "ddg", "duckduckgo":
		return NewDuckDuckGo(log)
	case "serpapi", "bing":
		return &unsupported{name: provider}
	default:
		return &unsupported{name: "none"}
	}
}

type unsupported struct{ name string }

func (u *unsupported) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	return nil, apperr.Unsupported("web search provider %q is not configured", u.name)
}

// FetchURL works regardless of the configured search provider: pulling an
// explicit URL the caller already knows about needs no search API, just an
// HTTP client, so even the "none" provider can serve it.
func (u *unsupported) FetchURL(ctx context.Context, rawURL string) (Hit, error) {
	return fetchURL(ctx, &http.Client{Timeout: 8 * time.Second}, rawURL)
}

type duckDuckGo struct {
	http *http.Client
	log  *logger.Logger
}

func NewDuckDuckGo(log *logger.Logger) WebSearch {
	return &duckDuckGo{http: &http.Client{Timeout: 8 * time.Second}, log: log.With("client", "websearch.ddg")}
}

func (d *duckDuckGo) FetchURL(ctx context.Context, rawURL string) (Hit, error) {
	return fetchURL(ctx, d.http, rawURL)
}

// fetchURL downloads a page and extracts its <title> plus a text preview of
// the body, reusing the same html-walk helpers Search uses to parse
// DuckDuckGo's result page.
func fetchURL(ctx context.Context, client *http.Client, rawURL string) (Hit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Hit{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; research-agent/1.0)")

	resp, err := client.Do(req)
	if err != nil {
		return Hit{}, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Hit{}, fmt.Errorf("fetch url: http %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return Hit{}, fmt.Errorf("parse html: %w", err)
	}
	title, body := extractTitleAndText(doc)
	if len(body) > 2000 {
		body = body[:2000]
	}
	return Hit{Title: title, URL: rawURL, Snippet: strings.TrimSpace(body)}, nil
}

func extractTitleAndText(n *html.Node) (title, body string) {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "title" && title == "" {
			title = strings.TrimSpace(textContent(node))
		}
		if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
			return
		}
		if node.Type == html.TextNode {
			t := strings.TrimSpace(node.Data)
			if t != "" {
				b.WriteString(t)
				b.WriteString(" ")
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return title, b.String()
}

// Search scrapes https://duckduckgo.com/html/, the no-API-key HTML surface
// the original implementation uses, parsing `a.result__a` title/href pairs
// and the following `a.result__snippet` element for each hit.
func (d *duckDuckGo) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 8
	}
	u := "https://duckduckgo.com/html/?" + url.Values{"q": {query}, "kl": {"us-en"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; research-agent/1.0)")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo html: %w", err)
	}
	return parseResultLinks(doc, limit), nil
}

func parseResultLinks(n *html.Node, limit int) []Hit {
	var hits []Hit
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if len(hits) >= limit {
			return
		}
		if node.Type == html.ElementNode && node.Data == "a" && hasClass(node, "result__a") {
			title := strings.TrimSpace(textContent(node))
			href := attr(node, "href")
			if href != "" {
				hits = append(hits, Hit{Title: title, URL: href})
			}
		}
		if node.Type == html.ElementNode && node.Data == "a" && hasClass(node, "result__snippet") && len(hits) > 0 {
			hits[len(hits)-1].Snippet = strings.TrimSpace(textContent(node))
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return hits
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
