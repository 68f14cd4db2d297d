// Package feeds loads the operator-maintained source file and polls the
// RSS feeds listed in it.
package feeds

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is one RSS feed the fetch stage polls. Language is an optional
// ISO 639-1 hint applied when detection on the article body is inconclusive.
type Source struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Homepage string `yaml:"homepage,omitempty"`
	Language string `yaml:"language,omitempty"`
	Enabled  bool   `yaml:"enabled"`
}

// Config is the parsed sources file. Beyond the feed list it carries the
// ministerial office map consumed by the extractor fallback and the
// constituency keywords consumed by local-engagement scoring, so operators
// maintain all three in one place.
type Config struct {
	Feeds         []Source          `yaml:"feeds"`
	Offices       map[string]string `yaml:"offices"`
	LocalKeywords []string          `yaml:"local_keywords"`
}

// EnabledFeeds returns the feeds the fetch stage should poll.
func (c *Config) EnabledFeeds() []Source {
	enabled := make([]Source, 0, len(c.Feeds))
	for _, feed := range c.Feeds {
		if feed.Enabled {
			enabled = append(enabled, feed)
		}
	}
	return enabled
}

// LoadConfig reads and validates the sources file at path.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing sources file %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("sources file %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Feeds) == 0 {
		return fmt.Errorf("no feeds configured")
	}

	seen := make(map[string]struct{}, len(c.Feeds))
	for i, feed := range c.Feeds {
		name := strings.TrimSpace(feed.Name)
		if name == "" {
			return fmt.Errorf("feed %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate feed name %q", name)
		}
		seen[name] = struct{}{}

		if err := validateFeedURL(feed.URL); err != nil {
			return fmt.Errorf("feed %q: %w", name, err)
		}
		if feed.Homepage != "" {
			if err := validateFeedURL(feed.Homepage); err != nil {
				return fmt.Errorf("feed %q homepage: %w", name, err)
			}
		}
		if feed.Language != "" && !validLanguageHint(feed.Language) {
			return fmt.Errorf("feed %q: language hint %q is not a two-letter code", name, feed.Language)
		}
		c.Feeds[i].Name = name
	}

	for title, code := range c.Offices {
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("office with empty title")
		}
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("office %q has no member code", title)
		}
	}

	for i, kw := range c.LocalKeywords {
		trimmed := strings.TrimSpace(kw)
		if trimmed == "" {
			return fmt.Errorf("local keyword %d is empty", i)
		}
		c.LocalKeywords[i] = trimmed
	}
	return nil
}

func validLanguageHint(code string) bool {
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func validateFeedURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("missing url")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url %q must be http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
