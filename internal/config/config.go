package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"PULSE_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"PULSE_DB_MAX_CONNS" default:"8"`

	SourcesFile string `envconfig:"PULSE_SOURCES_FILE" default:"sources.yaml"`

	LLMProvider       string  `envconfig:"LLM_PROVIDER" default:"openai"`
	LLMAPIKey         string  `envconfig:"LLM_API_KEY" default:""`
	LLMBaseURL        string  `envconfig:"LLM_BASE_URL" default:""`
	LLMModel          string  `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMTimeoutSeconds int     `envconfig:"LLM_TIMEOUT_SECONDS" default:"30"`
	LLMRequestsPerMin float64 `envconfig:"LLM_REQUESTS_PER_MIN" default:"50"`

	OireachtasBaseURL string `envconfig:"OIREACHTAS_BASE_URL" default:"https://api.oireachtas.ie/v1"`
	OireachtasHouse   int    `envconfig:"OIREACHTAS_HOUSE_NO" default:"34"`
	SyncLookbackDays  int    `envconfig:"PULSE_SYNC_LOOKBACK_DAYS" default:"180"`

	FetchMaxItemAgeDays int `envconfig:"PULSE_FETCH_MAX_AGE_DAYS" default:"7"`
	FetchMaxScrape      int `envconfig:"PULSE_FETCH_MAX_SCRAPE" default:"30"`
	FetchLookbackDays   int `envconfig:"PULSE_FETCH_LOOKBACK_DAYS" default:"30"`

	DedupLookbackHours int     `envconfig:"PULSE_DEDUP_LOOKBACK_HOURS" default:"72"`
	DedupThreshold     float64 `envconfig:"PULSE_DEDUP_THRESHOLD" default:"0.6"`

	TriageConcurrency   int     `envconfig:"PULSE_TRIAGE_CONCURRENCY" default:"5"`
	TriageTopFraction   float64 `envconfig:"PULSE_TRIAGE_TOP_FRACTION" default:"0.25"`
	TriageMinImportance int     `envconfig:"PULSE_TRIAGE_MIN_IMPORTANCE" default:"40"`

	ExtractorFallback bool `envconfig:"PULSE_EXTRACTOR_FALLBACK" default:"true"`

	HTTPAddr           string `envconfig:"PULSE_HTTP_ADDR" default:":8090"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("PULSE_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("PULSE_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("PULSE_DB_MIN_CONNS (%d) cannot exceed PULSE_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	switch strings.ToLower(strings.TrimSpace(c.LLMProvider)) {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai or anthropic, got %q", c.LLMProvider)
	}
	if c.LLMTimeoutSeconds < 1 {
		return fmt.Errorf("LLM_TIMEOUT_SECONDS must be >= 1")
	}
	if c.LLMRequestsPerMin <= 0 {
		return fmt.Errorf("LLM_REQUESTS_PER_MIN must be > 0")
	}
	if strings.TrimSpace(c.OireachtasBaseURL) == "" {
		return fmt.Errorf("OIREACHTAS_BASE_URL is required")
	}
	if c.SyncLookbackDays < 1 {
		return fmt.Errorf("PULSE_SYNC_LOOKBACK_DAYS must be >= 1")
	}
	if c.FetchMaxItemAgeDays < 1 {
		return fmt.Errorf("PULSE_FETCH_MAX_AGE_DAYS must be >= 1")
	}
	if c.FetchMaxScrape < 1 {
		return fmt.Errorf("PULSE_FETCH_MAX_SCRAPE must be >= 1")
	}
	if c.FetchLookbackDays < 1 {
		return fmt.Errorf("PULSE_FETCH_LOOKBACK_DAYS must be >= 1")
	}
	if c.DedupLookbackHours < 1 {
		return fmt.Errorf("PULSE_DEDUP_LOOKBACK_HOURS must be >= 1")
	}
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		return fmt.Errorf("PULSE_DEDUP_THRESHOLD must be in (0, 1]")
	}
	if c.TriageConcurrency < 1 {
		return fmt.Errorf("PULSE_TRIAGE_CONCURRENCY must be >= 1")
	}
	if c.TriageTopFraction <= 0 || c.TriageTopFraction > 1 {
		return fmt.Errorf("PULSE_TRIAGE_TOP_FRACTION must be in (0, 1]")
	}
	if c.TriageMinImportance < 0 || c.TriageMinImportance > 100 {
		return fmt.Errorf("PULSE_TRIAGE_MIN_IMPORTANCE must be in [0, 100]")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
