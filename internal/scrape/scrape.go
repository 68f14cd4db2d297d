// Package scrape pulls full article text out of news pages. Extraction runs
// in two tiers: readability first, then a selector sweep over the containers
// Irish news sites actually use. Anything below the minimum length is treated
// as a failed scrape rather than stored as a stub article.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultTimeout       = 12 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024

	// MinContentLength is the smallest extraction worth keeping. Shorter
	// results are cookie walls, teasers or extraction failures.
	MinContentLength = 200

	defaultUserAgent = "GlasPoliticsBot/1.0 (Irish Political News)"

	MethodReadability = "readability"
	MethodSelectors   = "selectors"
)

// articleSelectors are tried in order against the parsed page. The list
// mirrors the container classes used by the configured Irish outlets.
var articleSelectors = []string{
	"article",
	"div.article-content",
	"div.post-content",
	"div.entry-content",
	"div.content",
	"main",
}

// Options controls HTTP behavior for article fetching.
type Options struct {
	Timeout       time.Duration
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
}

// Result is one successful extraction.
type Result struct {
	Content string
	Method  string
}

// Article fetches a page and extracts its readable text.
func Article(ctx context.Context, articleURL string, opts Options) (Result, error) {
	page := strings.TrimSpace(articleURL)
	if page == "" {
		return Result{}, fmt.Errorf("article URL is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	bodyLimit := opts.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, page, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-IE,en;q=0.8")

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return Result{}, fmt.Errorf("read body: %w", err)
	}

	pageURL, err := url.Parse(page)
	if err != nil {
		return Result{}, fmt.Errorf("parse page url: %w", err)
	}

	return ExtractFromHTML(body, pageURL)
}

// ExtractFromHTML runs both extraction tiers over fetched page bytes.
func ExtractFromHTML(body []byte, pageURL *url.URL) (Result, error) {
	if text, err := extractWithReadability(body, pageURL); err == nil && len(text) >= MinContentLength {
		return Result{Content: text, Method: MethodReadability}, nil
	}

	text, err := extractWithSelectors(body)
	if err != nil {
		return Result{}, err
	}
	if len(text) < MinContentLength {
		return Result{}, fmt.Errorf("extracted content below %d chars", MinContentLength)
	}
	return Result{Content: text, Method: MethodSelectors}, nil
}

func extractWithReadability(body []byte, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var renderedText bytes.Buffer
	if err := article.RenderText(&renderedText); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	text := CleanText(renderedText.String())
	if text == "" {
		text = CleanText(article.Excerpt())
	}
	if text == "" {
		return "", fmt.Errorf("readability extracted empty content")
	}
	return text, nil
}

func extractWithSelectors(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	for _, selector := range articleSelectors {
		selection := doc.Find(selector).First()
		if selection.Length() == 0 {
			continue
		}
		if text := CleanText(selection.Text()); text != "" {
			return text, nil
		}
	}

	return CleanText(doc.Find("body").Text()), nil
}

// CleanText normalizes line endings and collapses extra in-line whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}
