package bsdd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/bsddscan/bsddscan/internal/model"
)

// maxPageSize limits how much of an identifier page is read.
// Class pages are small; anything beyond this is not a class page.
const maxPageSize = 10 * 1024 * 1024 // 10MB

// HTMLFetcher scrapes class records from identifier pages instead of the
// REST API. It is a fallback for environments where the API is unreachable.
//
// The identifier site renders properties and incoming relations client-side,
// so those sections are unavailable to a static scrape and come back empty.
// Class name, code, and child-class links are present in the served HTML.
type HTMLFetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// HTMLOption configures an HTMLFetcher.
type HTMLOption func(*HTMLFetcher)

// WithHTMLHTTPClient sets the HTTP client used to fetch identifier pages.
func WithHTMLHTTPClient(hc *http.Client) HTMLOption {
	return func(f *HTMLFetcher) {
		if hc != nil {
			f.httpClient = hc
		}
	}
}

// WithHTMLUserAgent sets a custom User-Agent header.
func WithHTMLUserAgent(ua string) HTMLOption {
	return func(f *HTMLFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithHTMLLogger sets the structured logger for page-level events.
func WithHTMLLogger(logger *slog.Logger) HTMLOption {
	return func(f *HTMLFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewHTMLFetcher creates a fetcher that scrapes identifier pages.
func NewHTMLFetcher(opts ...HTMLOption) *HTMLFetcher {
	f := &HTMLFetcher{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		userAgent:  DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = slog.Default()
	}

	return f
}

// Fetch retrieves and parses one identifier page.
func (f *HTMLFetcher) Fetch(ctx context.Context, uri string) (*model.ClassRecord, []string, error) {
	canonical, err := Normalize(uri)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, canonical, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil, fmt.Errorf("%s: %w", canonical, ErrClassNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, nil, fmt.Errorf("%s: unexpected status %d", canonical, resp.StatusCode)
	}

	record, err := parseClassPage(io.LimitReader(resp.Body, maxPageSize), canonical)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", canonical, err)
	}

	f.logger.Debug("scraped class page",
		"uri", canonical,
		"children", len(record.ChildClasses),
	)

	return record, record.ChildURIs(), nil
}

// parseClassPage extracts a class record from identifier page HTML.
// Child classes are anchors whose href points at another class URI; the
// class name comes from the page title, with the document structure kept
// deliberately loose because the site markup changes between releases.
func parseClassPage(content io.Reader, pageURI string) (*model.ClassRecord, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	record := &model.ClassRecord{
		URL:               pageURI,
		Code:              ClassCode(pageURI),
		ChildClasses:      make([]string, 0),
		Relations:         make([]model.Relation, 0),
		IncomingRelations: make([]model.IncomingRelation, 0),
		Properties: map[string][]model.Property{
			model.DefaultPropertyCategory: {{
				Name:     model.DefaultPropertyCategory,
				DataType: "not in bSDD",
			}},
		},
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if record.ClassName == "" {
					record.ClassName = cleanTitle(textContent(n))
				}
			case "a":
				if child, ok := childClassHref(n, pageURI); ok {
					record.ChildClasses = append(record.ChildClasses, child)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if record.ClassName == "" {
		record.ClassName = record.Code
	}

	return record, nil
}

// childClassHref returns the canonical URI of a child-class anchor, or false
// when the anchor points elsewhere (navigation, external sites, the page
// itself).
func childClassHref(n *html.Node, pageURI string) (string, bool) {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
			break
		}
	}
	if href == "" || !strings.Contains(href, "/class/") {
		return "", false
	}

	uri, err := Normalize(href)
	if err != nil {
		return "", false
	}
	if uri == pageURI {
		return "", false
	}
	return uri, true
}

// textContent returns the concatenated text inside a node.
func textContent(n *html.Node) string {
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
	return strings.TrimSpace(sb.String())
}

// cleanTitle strips the site suffix the identifier pages append to titles.
func cleanTitle(title string) string {
	for _, sep := range []string{" - ", " | "} {
		if i := strings.Index(title, sep); i > 0 {
			return strings.TrimSpace(title[:i])
		}
	}
	return title
}
