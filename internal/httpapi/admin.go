package httpapi

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"glaspolitics.ie/pulse/internal/auth"
	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/globaltime"
)

const adminKeyHeader = "X-Api-Key"

const redactedValue = "[redacted]"

// protectedSettingKeys cannot be written through the settings endpoint;
// each has a dedicated management path.
var protectedSettingKeys = map[string]string{
	db.SettingAdminKeyHash: "is managed by the admin set-key command",
	db.SettingCacheVersion: "is managed by the cache bump endpoint",
}

// requireAdminKey verifies the X-Api-Key header against the stored
// argon2id hash. With no key provisioned the admin surface stays closed.
func (s *Server) requireAdminKey() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			store := s.dataStore()
			if store == nil {
				return internalError(c, "Failed to authorize request")
			}

			presented := strings.TrimSpace(c.Request().Header.Get(adminKeyHeader))
			if presented == "" {
				return failUnauthorized(c)
			}

			record, err := store.GetSetting(c.Request().Context(), db.SettingAdminKeyHash)
			if err != nil {
				if errors.Is(err, db.ErrNoRows) {
					return failUnauthorized(c)
				}
				s.logger.Error().Err(err).Msg("admin key lookup failed")
				return internalError(c, "Failed to authorize request")
			}
			if !auth.VerifyKey(presented, record.Value) {
				return failUnauthorized(c)
			}

			return next(c)
		}
	}
}

func (s *Server) handleCacheBump(c echo.Context) error {
	version, err := s.dataStore().BumpCacheVersion(c.Request().Context(), globaltime.UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("cache bump failed")
		return internalError(c, "Failed to bump cache version")
	}

	s.logger.Info().Int64("cache_version", version).Msg("cache version bumped")
	return success(c, map[string]any{
		"cache_version": version,
	})
}

func (s *Server) handleListSettings(c echo.Context) error {
	settings, err := s.dataStore().ListSettings(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query settings failed")
		return internalError(c, "Failed to load settings")
	}

	for i := range settings {
		if settings[i].Key == db.SettingAdminKeyHash {
			settings[i].Value = redactedValue
		}
	}

	return success(c, map[string]any{
		"items": settings,
	})
}

type settingUpdateRequest struct {
	Value string `json:"value"`
}

func (s *Server) handlePutSetting(c echo.Context) error {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		return failValidation(c, map[string]string{"key": "is required"})
	}
	if reason, protected := protectedSettingKeys[key]; protected {
		return failValidation(c, map[string]string{key: reason})
	}

	var payload settingUpdateRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object with a value field"})
	}
	if strings.TrimSpace(payload.Value) == "" {
		return failValidation(c, map[string]string{"value": "is required"})
	}

	now := globaltime.UTC()
	if err := s.dataStore().UpsertSetting(c.Request().Context(), key, payload.Value, now); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("upsert setting failed")
		return internalError(c, "Failed to update setting")
	}

	s.logger.Info().Str("key", key).Msg("setting updated")
	return success(c, map[string]any{
		"key":        key,
		"value":      payload.Value,
		"updated_at": now,
	})
}
