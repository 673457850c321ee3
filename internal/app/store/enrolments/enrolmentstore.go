// internal/app/store/enrolments/enrolmentstore.go
package enrolmentstore

// Terminology: User Identifiers
//   - UserID / userID / user_id: the host's ObjectID for the user
//   - InstanceID / instance_id: the auto enrolment instance the user joined through

import (
	"context"
	"strings"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/store/storeerr"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("enrolments")}
}

// Enrol inserts the enrolment if the (instance_id, user_id) pair has none.
//
// The unique index on the pair decides races: the first insert wins and every
// other caller reads back the stored record. An existing record is returned
// unchanged (its role and status are never overwritten) with created=false.
func (s *Store) Enrol(ctx context.Context, e models.Enrolment) (models.Enrolment, bool, error) {
	e.Role = strings.TrimSpace(e.Role)
	if e.Role == "" {
		return models.Enrolment{}, false, storeerr.ErrRoleRequired
	}
	if e.Status == "" {
		e.Status = models.EnrolmentActive
	}
	if !models.ValidEnrolmentStatus(e.Status) {
		return models.Enrolment{}, false, storeerr.ErrInvalidStatus
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.CreatedAt
	e.ID = primitive.NewObjectID()

	_, err := s.c.InsertOne(ctx, e)
	if err == nil {
		return e, true, nil
	}
	if !wafflemongo.IsDup(err) {
		return models.Enrolment{}, false, err
	}

	existing, err := s.Get(ctx, e.InstanceID, e.UserID)
	if err != nil {
		return models.Enrolment{}, false, err
	}
	return existing, false, nil
}

// Get returns the enrolment for (instanceID, userID).
func (s *Store) Get(ctx context.Context, instanceID, userID primitive.ObjectID) (models.Enrolment, error) {
	var e models.Enrolment
	err := s.c.FindOne(ctx, bson.M{"instance_id": instanceID, "user_id": userID}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return models.Enrolment{}, storeerr.ErrNotFound
	}
	if err != nil {
		return models.Enrolment{}, err
	}
	return e, nil
}

// SetStatus changes the status of an existing enrolment.
func (s *Store) SetStatus(ctx context.Context, instanceID, userID primitive.ObjectID, status string) error {
	if !models.ValidEnrolmentStatus(status) {
		return storeerr.ErrInvalidStatus
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"instance_id": instanceID, "user_id": userID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storeerr.ErrNotFound
	}
	return nil
}

// Remove deletes the enrolment document for (instanceID, userID).
func (s *Store) Remove(ctx context.Context, instanceID, userID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"instance_id": instanceID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storeerr.ErrNotFound
	}
	return nil
}

// DeleteByInstance removes all enrolments for an instance.
// Returns the number of documents deleted.
func (s *Store) DeleteByInstance(ctx context.Context, instanceID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"instance_id": instanceID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// CountByInstance returns the count of enrolments for an instance, optionally filtered by status.
// If status is empty, counts all enrolments.
func (s *Store) CountByInstance(ctx context.Context, instanceID primitive.ObjectID, status string) (int64, error) {
	filter := bson.M{"instance_id": instanceID}
	if status != "" {
		filter["status"] = status
	}
	return s.c.CountDocuments(ctx, filter)
}

// ListByInstance returns all enrolments for an instance in creation order.
func (s *Store) ListByInstance(ctx context.Context, instanceID primitive.ObjectID) ([]models.Enrolment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"instance_id": instanceID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Enrolment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
