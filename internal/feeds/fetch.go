package feeds

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

const (
	defaultUserAgent = "GlasPoliticsBot/1.0 (Irish Political News)"
	summaryLimit     = 300
)

// Item is a single feed entry normalized across sources. PublishedAt is nil
// when the feed omits both published and updated timestamps. Language carries
// the source's configured hint, or the feed's declared language when the
// source file has none; it is a raw tag, not a detection result.
type Item struct {
	Source      string
	Title       string
	URL         string
	Summary     string
	Language    string
	PublishedAt *time.Time
}

// Result collects the output of polling every configured feed. A feed that
// fails to fetch or parse contributes an error without blocking the rest.
// Seen counts every entry the feeds carried before the age filter.
type Result struct {
	Items  []Item
	Seen   int
	Errors []error
}

// Fetcher polls RSS feeds. MaxAge bounds how old an entry may be before it
// is dropped; zero disables the age filter. Entries without any timestamp
// are always kept.
type Fetcher struct {
	parser *gofeed.Parser
	logger zerolog.Logger
	maxAge time.Duration
}

func NewFetcher(logger zerolog.Logger, maxAge time.Duration) *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = defaultUserAgent
	return &Fetcher{
		parser: parser,
		logger: logger.With().Str("component", "feeds").Logger(),
		maxAge: maxAge,
	}
}

// FetchAll polls every source concurrently and merges the results, newest
// first. Items without a timestamp sort last.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) Result {
	var (
		mu     sync.Mutex
		result Result
		wg     sync.WaitGroup
	)

	for _, src := range sources {
		wg.Add(1)
		go func(s Source) {
			defer wg.Done()
			items, seen, err := f.fetchOne(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				f.logger.Warn().Err(err).Str("source", s.Name).Msg("feed fetch failed")
				result.Errors = append(result.Errors, err)
				return
			}
			result.Items = append(result.Items, items...)
			result.Seen += seen
		}(src)
	}

	wg.Wait()

	sort.SliceStable(result.Items, func(i, j int) bool {
		a, b := result.Items[i].PublishedAt, result.Items[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return result
}

func (f *Fetcher) fetchOne(ctx context.Context, src Source) ([]Item, int, error) {
	feed, err := f.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching feed %s: %w", src.Name, err)
	}

	var cutoff time.Time
	if f.maxAge > 0 {
		cutoff = time.Now().Add(-f.maxAge)
	}

	languageHint := src.Language
	if languageHint == "" {
		languageHint = strings.TrimSpace(feed.Language)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry.Link == "" || strings.TrimSpace(entry.Title) == "" {
			continue
		}

		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}
		if published != nil && !cutoff.IsZero() && published.Before(cutoff) {
			continue
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}
		summary = truncate(stripHTML(summary), summaryLimit)

		items = append(items, Item{
			Source:      src.Name,
			Title:       strings.TrimSpace(entry.Title),
			URL:         entry.Link,
			Summary:     summary,
			Language:    languageHint,
			PublishedAt: published,
		})
	}

	f.logger.Debug().Str("source", src.Name).Int("items", len(items)).Msg("feed fetched")
	return items, len(feed.Items), nil
}

// stripHTML drops tags and collapses whitespace. Feed summaries are short so
// a rune scan beats a full parse.
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
