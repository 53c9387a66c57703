// Package fetch retrieves and cleans HTML from trend sources. The
// research producer is its only consumer, but the HTTP and parsing
// details live here so producers stay focused on pipeline semantics.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent identifies the agent to trend sources.
const DefaultUserAgent = "Mozilla/5.0 (compatible; ContentAgent/1.0)"

// Result holds the raw and processed content from a URL fetch.
type Result struct {
	URL         string
	HTML        string
	Text        string
	ContentType string
	StatusCode  int
}

// Error represents an error during URL fetching.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// URL retrieves HTML content from a URL.
func URL(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}

	client := &http.Client{Timeout: opts.Timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}

	req.Header.Set("User-Agent", opts.UserAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to read response body", Cause: err}
	}

	result := &Result{
		URL:         urlStr,
		HTML:        string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if resp.StatusCode != http.StatusOK {
		return result, &Error{URL: urlStr, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	return result, nil
}

// Headline is one candidate trend pulled from a source page.
type Headline struct {
	Text string
	Href string
}

// ExtractHeadlines pulls linked headlines from a source page. Selectors
// are tried in order; the first that matches wins. Duplicate texts are
// dropped so aggregator pages don't inflate a single story.
func ExtractHeadlines(html string, selectors []string, limit int) ([]Headline, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("nav, footer, header, script, style, noscript, .ad, .advertisement, .sidebar, .cookie-banner").Remove()

	if len(selectors) == 0 {
		selectors = DefaultHeadlineSelectors()
	}

	var sel *goquery.Selection
	for _, selector := range selectors {
		if found := doc.Find(selector); found.Length() > 0 {
			sel = found
			break
		}
	}
	if sel == nil {
		return nil, nil
	}

	seen := make(map[string]bool)
	var headlines []Headline
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanWhitespace(s.Text())
		if text == "" || len(text) < 10 || seen[text] {
			return true
		}
		seen[text] = true
		href, _ := s.Attr("href")
		if href == "" {
			href, _ = s.Find("a").First().Attr("href")
		}
		headlines = append(headlines, Headline{Text: text, Href: href})
		return limit <= 0 || len(headlines) < limit
	})

	return headlines, nil
}

// ExtractMainText parses HTML and returns the main body text, with
// navigation and boilerplate removed.
func ExtractMainText(html string, contentSelectors []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("nav, footer, header, script, style, noscript, .ad, .advertisement, .sidebar, .cookie-banner").Remove()

	var mainContent *goquery.Selection
	for _, selector := range contentSelectors {
		if selection := doc.Find(selector); selection.Length() > 0 {
			mainContent = selection.First()
			break
		}
	}
	if mainContent == nil {
		mainContent = doc.Find("body")
	}

	return cleanWhitespace(mainContent.Text()), nil
}

// DefaultHeadlineSelectors covers common news and aggregator layouts.
func DefaultHeadlineSelectors() []string {
	return []string{
		"article h2 a",
		"article h3 a",
		".titleline > a",
		"h2 a",
		"h3 a",
		"article a",
	}
}

// DefaultTextSelectors returns standard selectors for article bodies.
func DefaultTextSelectors() []string {
	return []string{
		"main",
		"article",
		".content",
		"#content",
		".main-content",
	}
}

func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
