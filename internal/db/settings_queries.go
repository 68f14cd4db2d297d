package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// SettingAdminKeyHash stores the argon2id hash of the admin API key.
	SettingAdminKeyHash = "admin_api_key_hash"
	// SettingCacheVersion is bumped whenever derived read models change.
	SettingCacheVersion = "cache_version"
)

// SettingRecord is one application setting row.
type SettingRecord struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetSetting loads one setting; ErrNoRows when absent.
func (p *Pool) GetSetting(ctx context.Context, key string) (*SettingRecord, error) {
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return nil, fmt.Errorf("setting key is required")
	}

	const q = `
SELECT s.key, s.value, s.updated_at
FROM pulse.app_settings s
WHERE s.key = $1
LIMIT 1
`

	var row SettingRecord
	if err := p.QueryRow(ctx, q, trimmedKey).Scan(&row.Key, &row.Value, &row.UpdatedAt); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query setting: %w", err)
	}
	return &row, nil
}

// ListSettings returns all settings ordered by key.
func (p *Pool) ListSettings(ctx context.Context) ([]SettingRecord, error) {
	const q = `
SELECT s.key, s.value, s.updated_at
FROM pulse.app_settings s
ORDER BY s.key
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	settings := make([]SettingRecord, 0, 8)
	for rows.Next() {
		var row SettingRecord
		if err := rows.Scan(&row.Key, &row.Value, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting row: %w", err)
		}
		settings = append(settings, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate setting rows: %w", err)
	}

	return settings, nil
}

// UpsertSetting stores one setting value.
func (p *Pool) UpsertSetting(ctx context.Context, key, value string, now time.Time) error {
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return fmt.Errorf("setting key is required")
	}

	const q = `
INSERT INTO pulse.app_settings (key, value, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key)
DO UPDATE SET
	value = EXCLUDED.value,
	updated_at = EXCLUDED.updated_at
`

	if _, err := p.Exec(ctx, q, trimmedKey, value, now.UTC()); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// BumpCacheVersion increments the cache version and returns the new value.
func (p *Pool) BumpCacheVersion(ctx context.Context, now time.Time) (int64, error) {
	const q = `
INSERT INTO pulse.app_settings (key, value, updated_at)
VALUES ($1, '1', $2)
ON CONFLICT (key)
DO UPDATE SET
	value = ((pulse.app_settings.value)::bigint + 1)::text,
	updated_at = EXCLUDED.updated_at
RETURNING (value)::bigint
`

	var version int64
	if err := p.QueryRow(ctx, q, SettingCacheVersion, now.UTC()).Scan(&version); err != nil {
		return 0, fmt.Errorf("bump cache version: %w", err)
	}
	return version, nil
}

// CacheVersion reads the current cache version, zero when unset.
func (p *Pool) CacheVersion(ctx context.Context) (int64, error) {
	record, err := p.GetSetting(ctx, SettingCacheVersion)
	if err != nil {
		if IsNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	version, err := parseCacheVersion(record.Value)
	if err != nil {
		return 0, fmt.Errorf("parse cache version %q: %w", record.Value, err)
	}
	return version, nil
}

func parseCacheVersion(raw string) (int64, error) {
	var version int64
	_, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &version)
	return version, err
}
