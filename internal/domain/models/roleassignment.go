// internal/domain/models/roleassignment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoleAssignment records that a user holds a role in a course because of
// a component item (for auto enrolment: component enrol_auto, item = instance).
type RoleAssignment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	CourseID  primitive.ObjectID `bson:"course_id" json:"course_id"`
	Role      string             `bson:"role" json:"role"`
	Component string             `bson:"component" json:"component"`
	ItemID    primitive.ObjectID `bson:"item_id" json:"item_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
