package explorer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/shelfmap/shelfmap/internal/model"
	"github.com/shelfmap/shelfmap/internal/urlnorm"
)

// challengeMarkers are body substrings that identify anti-bot interstitial
// pages served with a 200 or 403 status. Matching is case-insensitive.
var challengeMarkers = []string{
	"verify you are human",
	"checking your browser",
	"press & hold",
	"are you a robot",
	"captcha",
}

// HTTPExplorer is a minimal Explorer that fetches a category page over
// plain HTTP and returns same-site anchors matching the retailer's
// category URL patterns.
//
// Design decision: We parse with golang.org/x/net/html rather than a
// selector library because the default explorer makes no per-site
// assumptions: it only needs anchor tags and their text. Site-specific
// selector strategies belong in external Explorer implementations.
type HTTPExplorer struct {
	// client performs the HTTP requests.
	client *http.Client

	// userAgent is sent with every request.
	userAgent string

	// maxBodySize caps how much of a response body is read.
	maxBodySize int64

	// patterns are URL path globs that identify category links, e.g.
	// "/c/*" or "/category/*". Empty means every same-site link is a
	// candidate.
	patterns []string

	// headers are extra request headers (cookies, auth) per retailer.
	headers map[string]string
}

// HTTPOption configures an HTTPExplorer.
type HTTPOption func(*HTTPExplorer)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(e *HTTPExplorer) {
		e.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(n int64) HTTPOption {
	return func(e *HTTPExplorer) {
		e.maxBodySize = n
	}
}

// WithCategoryPatterns sets the URL path globs that identify category
// links. Patterns use the same glob syntax as path.Match.
func WithCategoryPatterns(patterns []string) HTTPOption {
	return func(e *HTTPExplorer) {
		e.patterns = patterns
	}
}

// WithHeaders sets extra request headers sent with every request.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(e *HTTPExplorer) {
		e.headers = headers
	}
}

// NewHTTPExplorer creates an HTTPExplorer using the given client.
// A nil client falls back to a client with a 30-second timeout.
func NewHTTPExplorer(client *http.Client, opts ...HTTPOption) *HTTPExplorer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	e := &HTTPExplorer{
		client:      client,
		userAgent:   "shelfmap/1.0 (+https://github.com/shelfmap/shelfmap)",
		maxBodySize: 5 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Explore fetches the page and extracts same-site category candidates.
func (e *HTTPExplorer) Explore(ctx context.Context, pageURL string) ([]model.ChildCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, Permanent(pageURL, err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		// Context cancellation is not the page's fault; surface it as-is
		// so the worker can distinguish shutdown from a flaky site.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Transient(pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodySize))
	if err != nil {
		return nil, Transient(pageURL, err)
	}

	if err := classifyResponse(pageURL, resp.StatusCode, body); err != nil {
		return nil, err
	}

	candidates, err := extractCandidates(pageURL, body, e.patterns)
	if err != nil {
		return nil, Permanent(pageURL, err)
	}
	return candidates, nil
}

// classifyResponse maps an HTTP response onto the failure taxonomy.
// Returns nil when the page is explorable.
func classifyResponse(pageURL string, status int, body []byte) error {
	switch {
	case status == http.StatusTooManyRequests:
		return Transient(pageURL, fmt.Errorf("status %d", status))
	case status == http.StatusForbidden:
		// Retailers behind bot-protection vendors answer 403 with an
		// interstitial; treat it as a challenge rather than a dead page.
		return Challenge(pageURL, fmt.Errorf("status %d", status))
	case status >= 500:
		return Transient(pageURL, fmt.Errorf("status %d", status))
	case status >= 400:
		return Permanent(pageURL, fmt.Errorf("status %d", status))
	}

	lower := strings.ToLower(string(body))
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return Challenge(pageURL, fmt.Errorf("page contains %q", marker))
		}
	}
	return nil
}

// extractCandidates walks the DOM and collects same-site anchors whose
// path matches one of the category patterns.
func extractCandidates(pageURL string, body []byte, patterns []string) ([]model.ChildCandidate, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	candidates := make([]model.ChildCandidate, 0)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if c, ok := candidateFromAnchor(pageURL, n, patterns); ok && !seen[c.URL] {
				seen[c.URL] = true
				candidates = append(candidates, c)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return candidates, nil
}

// candidateFromAnchor converts an <a> node into a candidate if it links
// to a same-site category page.
func candidateFromAnchor(pageURL string, n *html.Node, patterns []string) (model.ChildCandidate, bool) {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = attr.Val
			break
		}
	}
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return model.ChildCandidate{}, false
	}

	resolved, err := urlnorm.Resolve(pageURL, href)
	if err != nil {
		return model.ChildCandidate{}, false
	}
	if same, err := urlnorm.SameSite(pageURL, resolved); err != nil || !same {
		return model.ChildCandidate{}, false
	}
	if resolved == pageURL {
		return model.ChildCandidate{}, false
	}
	if !matchesPatterns(resolved, patterns) {
		return model.ChildCandidate{}, false
	}

	name := urlnorm.NormalizeName(anchorText(n))
	if name == "" {
		return model.ChildCandidate{}, false
	}

	return model.ChildCandidate{Name: name, URL: resolved}, true
}

// matchesPatterns reports whether the URL path matches any category
// pattern. No patterns means every path matches.
func matchesPatterns(resolved string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	path := resolved
	if i := strings.Index(resolved, "://"); i >= 0 {
		rest := resolved[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			path = rest[j:]
		} else {
			path = "/"
		}
	}
	if i := strings.IndexAny(path, "?"); i >= 0 {
		path = path[:i]
	}

	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/*") {
			prefix := strings.TrimSuffix(pattern, "/*")
			if strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if ok, err := filepath.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

// anchorText returns the concatenated text content of an anchor node.
func anchorText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}
