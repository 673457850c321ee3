package autoenrol

import (
	"context"

	"github.com/dalemusser/autoenrol/internal/app/store/audit"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InstanceStore is implemented by the Mongo and SQLite instance stores.
type InstanceStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.EnrolInstance, error)
	GetForCourse(ctx context.Context, courseID primitive.ObjectID) (models.EnrolInstance, error)
	GetEnabledForCourse(ctx context.Context, courseID primitive.ObjectID) (models.EnrolInstance, error)
	Create(ctx context.Context, inst models.EnrolInstance) (models.EnrolInstance, error)
	Update(ctx context.Context, id primitive.ObjectID, upd models.InstanceUpdate) (models.EnrolInstance, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, status string) ([]models.EnrolInstance, error)
}

// EnrolmentStore records enrolments. Enrol must be insert-if-absent on
// (instance, user) and report whether it created the record.
type EnrolmentStore interface {
	Enrol(ctx context.Context, e models.Enrolment) (models.Enrolment, bool, error)
	Get(ctx context.Context, instanceID, userID primitive.ObjectID) (models.Enrolment, error)
	SetStatus(ctx context.Context, instanceID, userID primitive.ObjectID, status string) error
	Remove(ctx context.Context, instanceID, userID primitive.ObjectID) error
	DeleteByInstance(ctx context.Context, instanceID primitive.ObjectID) (int64, error)
	CountByInstance(ctx context.Context, instanceID primitive.ObjectID, status string) (int64, error)
	ListByInstance(ctx context.Context, instanceID primitive.ObjectID) ([]models.Enrolment, error)
}

// RoleAssigner is the role-assignment sink.
type RoleAssigner interface {
	Assign(ctx context.Context, a models.RoleAssignment) error
	Unassign(ctx context.Context, component string, itemID, userID primitive.ObjectID) (int64, error)
	DeleteByItem(ctx context.Context, component string, itemID primitive.ObjectID) (int64, error)
}

// SettingsStore holds site-level plugin settings, including the strategy toggle.
type SettingsStore interface {
	Get(ctx context.Context, plugin string) (models.PluginSettings, error)
	Save(ctx context.Context, plugin string, settings models.PluginSettings) error
	IsStrategyEnabled(ctx context.Context, name string) (bool, error)
}

// AuditStore persists audit events.
type AuditStore interface {
	Log(ctx context.Context, event audit.Event) error
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
}

// Stores bundles one backend's implementations.
type Stores struct {
	Instances  InstanceStore
	Enrolments EnrolmentStore
	Roles      RoleAssigner
	Settings   SettingsStore
	Audit      AuditStore
}
