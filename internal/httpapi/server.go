// Package httpapi serves the public read models over JSON plus a small
// key-protected admin surface. Responses carry an ETag derived from the
// cache version setting; pipeline runs bump it so consumers revalidate
// cheaply between runs.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/globaltime"
)

const (
	defaultListLimit    = 25
	maxListLimit        = 200
	defaultRankingLimit = 50
	memberMentionLimit  = 10
)

type Options struct {
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// apiStore is the slice of the database surface the server reads and
// the admin endpoints write. *db.Pool satisfies it.
type apiStore interface {
	ListMemberRankings(ctx context.Context, dimension string, limit int) ([]db.MemberRanking, error)
	GetMemberDetail(ctx context.Context, memberCode string, mentionLimit int) (*db.MemberDetail, error)
	ListArticles(ctx context.Context, opts db.ArticleListOptions) ([]db.ArticleListItem, error)
	GetArticleByUUID(ctx context.Context, articleUUID string) (*db.ArticleDetail, error)
	GetSetting(ctx context.Context, key string) (*db.SettingRecord, error)
	ListSettings(ctx context.Context) ([]db.SettingRecord, error)
	UpsertSetting(ctx context.Context, key, value string, now time.Time) error
	BumpCacheVersion(ctx context.Context, now time.Time) (int64, error)
	CacheVersion(ctx context.Context) (int64, error)
}

type Server struct {
	pool   *db.Pool
	store  apiStore
	logger zerolog.Logger
	opts   Options
}

func NewServer(pool *db.Pool, logger zerolog.Logger, opts Options) *Server {
	if strings.TrimSpace(opts.Addr) == "" {
		opts.Addr = ":8090"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	return &Server{
		pool:   pool,
		logger: logger,
		opts:   opts,
	}
}

func (s *Server) dataStore() apiStore {
	if s == nil {
		return nil
	}
	if s.store != nil {
		return s.store
	}
	if s.pool == nil {
		return nil
	}
	return s.pool
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.dataStore() == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  s.opts.AllowedOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "If-None-Match", adminKeyHeader},
		ExposeHeaders: []string{"ETag"},
		MaxAge:        3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)

	api := e.Group("/api/v1", s.cacheValidator())
	api.GET("/rankings", s.handleRankings)
	api.GET("/members/:code", s.handleMemberDetail)
	api.GET("/articles", s.handleArticles)
	api.GET("/articles/:uuid", s.handleArticleDetail)

	admin := e.Group("/api/v1/admin", s.requireAdminKey())
	admin.POST("/cache/bump", s.handleCacheBump)
	admin.GET("/settings", s.handleListSettings)
	admin.PUT("/settings/:key", s.handlePutSetting)

	httpServer := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", s.opts.Addr).Msg("pulse api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("pulse api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

// cacheValidator stamps the cache-version ETag on read responses and
// short-circuits to 304 on a matching If-None-Match. Version lookup
// failures degrade to an untagged response, never an error.
func (s *Server) cacheValidator() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			store := s.dataStore()
			if store == nil {
				return next(c)
			}

			version, err := store.CacheVersion(c.Request().Context())
			if err != nil {
				s.logger.Warn().Err(err).Msg("cache version lookup failed")
				return next(c)
			}

			tag := fmt.Sprintf(`"v%d"`, version)
			c.Response().Header().Set("ETag", tag)
			if match := c.Request().Header.Get("If-None-Match"); etagMatches(match, tag) {
				return c.NoContent(http.StatusNotModified)
			}
			return next(c)
		}
	}
}

func etagMatches(header, tag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(candidate), "W/"))
		if candidate != "" && (candidate == tag || candidate == "*") {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "pulse",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleRankings(c echo.Context) error {
	dimension := strings.ToLower(strings.TrimSpace(c.QueryParam("dimension")))
	if dimension == "" {
		dimension = "overall"
	}
	if !isRankingDimension(dimension) {
		return failValidation(c, map[string]string{
			"dimension": fmt.Sprintf("must be one of %s", strings.Join(db.RankingDimensions(), ", ")),
		})
	}

	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultRankingLimit, 1, maxListLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	rankings, err := s.dataStore().ListMemberRankings(c.Request().Context(), dimension, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("dimension", dimension).Msg("query rankings failed")
		return internalError(c, "Failed to load rankings")
	}

	return success(c, map[string]any{
		"dimension": dimension,
		"limit":     limit,
		"items":     rankings,
	})
}

func (s *Server) handleMemberDetail(c echo.Context) error {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		return failValidation(c, map[string]string{"code": "is required"})
	}

	detail, err := s.dataStore().GetMemberDetail(c.Request().Context(), code, memberMentionLimit)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Member not found")
		}
		s.logger.Error().Err(err).Str("member_code", code).Msg("query member detail failed")
		return internalError(c, "Failed to load member")
	}

	return success(c, detail)
}

func (s *Server) handleArticles(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultListLimit, 1, maxListLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	source := strings.TrimSpace(c.QueryParam("source"))

	items, err := s.dataStore().ListArticles(c.Request().Context(), db.ArticleListOptions{
		Source:      source,
		VisibleOnly: true,
		Limit:       limit,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("source", source).Msg("query articles failed")
		return internalError(c, "Failed to load articles")
	}

	return success(c, map[string]any{
		"source": source,
		"limit":  limit,
		"items":  items,
	})
}

func (s *Server) handleArticleDetail(c echo.Context) error {
	articleUUID := strings.TrimSpace(c.Param("uuid"))
	if articleUUID == "" {
		return failValidation(c, map[string]string{"uuid": "is required"})
	}

	detail, err := s.dataStore().GetArticleByUUID(c.Request().Context(), articleUUID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Article not found")
		}
		s.logger.Error().Err(err).Str("article_uuid", articleUUID).Msg("query article detail failed")
		return internalError(c, "Failed to load article")
	}
	// Invisible rows are dedup casualties or pre-triage arrivals; the
	// public surface treats them as absent.
	if !detail.Visible {
		return failNotFound(c, "Article not found")
	}

	return success(c, detail)
}

func isRankingDimension(dimension string) bool {
	for _, known := range db.RankingDimensions() {
		if dimension == known {
			return true
		}
	}
	return false
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
