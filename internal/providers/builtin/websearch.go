package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inbucket/html2text"
	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/pkg/retry"
	"golang.org/x/net/html"
)

const (
	maxResponseSize = 1 << 20
	maxFallbackText = 6000
)

const SearchWebSchema = `
{
  "type": "object",
  "properties": {
    "query": { "type": "string", "description": "The search query" }
  },
  "required": ["query"]
}
`

type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearch queries the DuckDuckGo HTML endpoint.
type WebSearch struct {
	client     *http.Client
	retrier    *retry.Retrier
	endpoint   string
	maxResults int
}

func NewWebSearch(endpoint string, maxResults int, timeout time.Duration, retryCfg *retry.Config) *WebSearch {
	if retryCfg == nil {
		retryCfg = retry.NewDefaultConfig()
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearch{
		client:     &http.Client{Timeout: timeout},
		retrier:    retry.NewRetrier(retryCfg),
		endpoint:   endpoint,
		maxResults: maxResults,
	}
}

func (w *WebSearch) Search(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrInvalidArguments, err)
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return "", fmt.Errorf("%w: query is empty", core.ErrInvalidArguments)
	}

	var page []byte
	err := w.retrier.Do(ctx, func() error {
		body, err := w.fetch(ctx, query)
		if err != nil {
			return err
		}
		page = body
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: web search: %w", core.ErrCapabilityUnavailable, err)
	}

	results, err := parseResults(page, w.maxResults)
	if err != nil {
		return "", fmt.Errorf("parse results: %w", err)
	}
	if len(results) == 0 {
		// Unknown layout; hand the plain text to the summarizer instead.
		text, err := html2text.FromString(string(page), html2text.Options{OmitLinks: false, PrettyTables: true})
		if err != nil || strings.TrimSpace(text) == "" {
			return fmt.Sprintf("No results found for %q.", query), nil
		}
		if len(text) > maxFallbackText {
			text = text[:maxFallbackText]
		}
		return text, nil
	}
	return formatResults(results), nil
}

func (w *WebSearch) fetch(ctx context.Context, query string) ([]byte, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", core.AppUserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}

func formatResults(results []SearchResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return sb.String()
}

// parseResults walks the result page: every a.result__a starts a result and
// the following .result__snippet belongs to it.
func parseResults(page []byte, limit int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(string(page)))
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) > limit {
			return
		}
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				results = append(results, SearchResult{
					Title: strings.TrimSpace(textOf(n)),
					URL:   resolveRedirect(attr(n, "href")),
				})
				return
			case hasClass(n, "result__snippet") && len(results) > 0:
				results[len(results)-1].Snippet = strings.TrimSpace(textOf(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
