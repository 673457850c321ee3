// internal/app/store/roleassign/roleassignstore.go
package roleassignstore

import (
	"context"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/store/storeerr"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the role_assignments collection.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("role_assignments")}
}

// Assign records the role assignment. Assigning the same
// (user, course, role, component, item) twice is a no-op.
func (s *Store) Assign(ctx context.Context, a models.RoleAssignment) error {
	if a.Role == "" {
		return storeerr.ErrRoleRequired
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	filter := bson.M{
		"user_id":   a.UserID,
		"course_id": a.CourseID,
		"role":      a.Role,
		"component": a.Component,
		"item_id":   a.ItemID,
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"created_at": a.CreatedAt.UTC(),
		},
	}
	_, err := s.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// Unassign removes every role a component item granted to the user.
// Returns the number of documents deleted.
func (s *Store) Unassign(ctx context.Context, component string, itemID, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"component": component, "item_id": itemID, "user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByItem removes all role assignments granted through a component item.
// Returns the number of documents deleted.
func (s *Store) DeleteByItem(ctx context.Context, component string, itemID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"component": component, "item_id": itemID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListForUser returns the user's role assignments in a course.
func (s *Store) ListForUser(ctx context.Context, userID, courseID primitive.ObjectID) ([]models.RoleAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "course_id": courseID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RoleAssignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
