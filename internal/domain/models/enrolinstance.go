// internal/domain/models/enrolinstance.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PluginName identifies the auto-enrol strategy in settings and role assignments.
const (
	PluginName = "auto"
	Component  = "enrol_auto"
)

// Instance status values.
const (
	InstanceEnabled  = "enabled"
	InstanceDisabled = "disabled"
)

// DefaultInstanceName is shown when an instance has no custom name.
const DefaultInstanceName = "Auto enrolment"

// EnrolInstance is the auto-enrol configuration attached to one course.
// There is at most one instance per course_id.
type EnrolInstance struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	CourseID primitive.ObjectID `bson:"course_id" json:"course_id"` // immutable after creation
	Name     string             `bson:"name,omitempty" json:"name,omitempty"`
	Status   string             `bson:"status" json:"status"` // enabled | disabled
	Role     string             `bson:"role" json:"role"`     // role granted on enrolment

	// EndDate closes the instance to new enrolments once now is past it.
	EndDate *time.Time `bson:"end_date,omitempty" json:"end_date,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Enabled reports whether the instance accepts new enrolments.
func (i EnrolInstance) Enabled() bool {
	return i.Status == InstanceEnabled
}

// ExpiredAt reports whether the end date is set and now is strictly after it.
func (i EnrolInstance) ExpiredAt(now time.Time) bool {
	return i.EndDate != nil && now.After(*i.EndDate)
}

// EndDateAt rounds t up to the next whole millisecond in UTC, the precision
// both stores keep. Rounding down would make now == end_date read as expired.
func EndDateAt(t time.Time) time.Time {
	t = t.UTC()
	if r := t.Truncate(time.Millisecond); !r.Equal(t) {
		return r.Add(time.Millisecond)
	}
	return t
}

// DisplayName returns the custom name or the default instance name.
func (i EnrolInstance) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return DefaultInstanceName
}

// ValidInstanceStatus reports whether s is a known instance status.
func ValidInstanceStatus(s string) bool {
	return s == InstanceEnabled || s == InstanceDisabled
}

// InstanceUpdate is a partial update. Nil fields are left unchanged.
// ClearEndDate removes the end date and wins over EndDate.
type InstanceUpdate struct {
	Name         *string
	Status       *string
	Role         *string
	EndDate      *time.Time
	ClearEndDate bool
}

// Empty reports whether the update changes nothing.
func (u InstanceUpdate) Empty() bool {
	return u.Name == nil && u.Status == nil && u.Role == nil && u.EndDate == nil && !u.ClearEndDate
}
