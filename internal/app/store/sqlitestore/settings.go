package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/autoenrol/internal/domain/models"
)

// SettingsStore persists plugin settings in the enrol_settings table.
type SettingsStore struct {
	db *sql.DB
}

// Get returns the settings for a plugin, or defaults when none were saved.
func (s *SettingsStore) Get(ctx context.Context, plugin string) (models.PluginSettings, error) {
	var (
		st                    = models.PluginSettings{Plugin: plugin}
		enabled, defaultEnrol int
		updatedAt             sql.NullInt64
		updatedByID           sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled, default_enrol, default_status, default_role, updated_at, updated_by_id, updated_by_name
		 FROM enrol_settings WHERE plugin = ?`, plugin,
	).Scan(&enabled, &defaultEnrol, &st.DefaultStatus, &st.DefaultRole, &updatedAt, &updatedByID, &st.UpdatedByName)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultPluginSettings(plugin), nil
	}
	if err != nil {
		return models.PluginSettings{}, fmt.Errorf("get settings: %w", err)
	}
	st.Enabled = enabled != 0
	st.DefaultEnrol = defaultEnrol != 0
	st.UpdatedAt = timePtr(updatedAt)
	if st.UpdatedByID, err = idPtr(updatedByID); err != nil {
		return models.PluginSettings{}, err
	}
	return st, nil
}

// Save upserts the settings for a plugin.
func (s *SettingsStore) Save(ctx context.Context, plugin string, settings models.PluginSettings) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrol_settings (plugin, enabled, default_enrol, default_status, default_role, updated_at, updated_by_id, updated_by_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (plugin) DO UPDATE SET
		   enabled = excluded.enabled,
		   default_enrol = excluded.default_enrol,
		   default_status = excluded.default_status,
		   default_role = excluded.default_role,
		   updated_at = excluded.updated_at,
		   updated_by_id = excluded.updated_by_id,
		   updated_by_name = excluded.updated_by_name`,
		plugin, boolInt(settings.Enabled), boolInt(settings.DefaultEnrol),
		settings.DefaultStatus, settings.DefaultRole, toMillis(now),
		nullID(settings.UpdatedByID), settings.UpdatedByName,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// IsStrategyEnabled reports the site-wide toggle for the named plugin.
func (s *SettingsStore) IsStrategyEnabled(ctx context.Context, name string) (bool, error) {
	st, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	return st.Enabled, nil
}
