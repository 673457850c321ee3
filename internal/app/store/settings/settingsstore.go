// internal/app/store/settings/settingsstore.go
package settingsstore

import (
	"context"
	"time"

	"github.com/dalemusser/autoenrol/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the enrol_settings collection.
// Each enrolment plugin has its own settings document (one document per plugin).
type Store struct {
	c *mongo.Collection
}

// New creates a new settings store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("enrol_settings")}
}

// Get returns the settings for a plugin.
// If no settings exist for the plugin, returns default settings.
func (s *Store) Get(ctx context.Context, plugin string) (models.PluginSettings, error) {
	var settings models.PluginSettings
	err := s.c.FindOne(ctx, bson.M{"plugin": plugin}).Decode(&settings)
	if err == mongo.ErrNoDocuments {
		return models.DefaultPluginSettings(plugin), nil
	}
	if err != nil {
		return models.PluginSettings{}, err
	}
	return settings, nil
}

// Save updates the settings for a plugin.
// Uses upsert so it works whether settings exist or not.
func (s *Store) Save(ctx context.Context, plugin string, settings models.PluginSettings) error {
	now := time.Now().UTC()
	settings.UpdatedAt = &now
	settings.Plugin = plugin

	filter := bson.M{"plugin": plugin}
	update := bson.M{
		"$set": bson.M{
			"plugin":          plugin,
			"enabled":         settings.Enabled,
			"default_enrol":   settings.DefaultEnrol,
			"default_status":  settings.DefaultStatus,
			"default_role":    settings.DefaultRole,
			"updated_at":      settings.UpdatedAt,
			"updated_by_id":   settings.UpdatedByID,
			"updated_by_name": settings.UpdatedByName,
		},
		"$setOnInsert": bson.M{
			"_id": primitive.NewObjectID(),
		},
	}

	_, err := s.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// IsStrategyEnabled reports the site-wide toggle for the named plugin.
func (s *Store) IsStrategyEnabled(ctx context.Context, name string) (bool, error) {
	settings, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	return settings.Enabled, nil
}
