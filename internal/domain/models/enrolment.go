// internal/domain/models/enrolment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Enrolment status values.
const (
	EnrolmentActive    = "active"
	EnrolmentSuspended = "suspended"
)

// Enrolment joins a user to an auto-enrol instance.
// Exactly one document per (instance_id, user_id).
type Enrolment struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	InstanceID primitive.ObjectID `bson:"instance_id" json:"instance_id"`
	CourseID   primitive.ObjectID `bson:"course_id" json:"course_id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role       string             `bson:"role" json:"role"`
	Status     string             `bson:"status" json:"status"` // active | suspended
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// Active reports whether the enrolment grants access.
func (e Enrolment) Active() bool {
	return e.Status == EnrolmentActive
}

// ValidEnrolmentStatus reports whether s is a known enrolment status.
func ValidEnrolmentStatus(s string) bool {
	return s == EnrolmentActive || s == EnrolmentSuspended
}
