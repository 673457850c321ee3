// internal/domain/models/pluginsettings.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultRole is the archetype granted by new instances unless configured otherwise.
const DefaultRole = "student"

// PluginSettings holds the site-wide configuration of an enrolment strategy.
// One document per plugin name.
type PluginSettings struct {
	Plugin string `bson:"plugin" json:"plugin"`

	// Enabled is the site-wide toggle. A disabled strategy enrols nobody.
	Enabled bool `bson:"enabled" json:"enabled"`

	// Instance defaults
	DefaultEnrol  bool   `bson:"default_enrol" json:"default_enrol"`   // add an instance to new courses
	DefaultStatus string `bson:"default_status" json:"default_status"` // enabled | disabled
	DefaultRole   string `bson:"default_role" json:"default_role"`

	// Audit fields
	UpdatedAt     *time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	UpdatedByID   *primitive.ObjectID `bson:"updated_by_id,omitempty" json:"updated_by_id,omitempty"`
	UpdatedByName string              `bson:"updated_by_name,omitempty" json:"updated_by_name,omitempty"`
}

// DefaultPluginSettings returns the settings used before an admin saves any.
// The strategy starts disabled and new instances start disabled.
func DefaultPluginSettings(plugin string) PluginSettings {
	return PluginSettings{
		Plugin:        plugin,
		Enabled:       false,
		DefaultEnrol:  true,
		DefaultStatus: InstanceDisabled,
		DefaultRole:   DefaultRole,
	}
}
