// internal/app/store/instances/instancestore.go
package instancestore

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

// Store provides access to the enrol_instances collection.
// The unique index on course_id enforces one instance per course.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("enrol_instances")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.EnrolInstance, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetForCourse returns the course's instance whatever its status.
func (s *Store) GetForCourse(ctx context.Context, courseID primitive.ObjectID) (models.EnrolInstance, error) {
	return s.findOne(ctx, bson.M{"course_id": courseID})
}

// GetEnabledForCourse returns the course's instance only if it is enabled.
// A missing or disabled instance both yield storeerr.ErrNotFound.
func (s *Store) GetEnabledForCourse(ctx context.Context, courseID primitive.ObjectID) (models.EnrolInstance, error) {
	return s.findOne(ctx, bson.M{"course_id": courseID, "status": models.InstanceEnabled})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.EnrolInstance, error) {
	var inst models.EnrolInstance
	err := s.c.FindOne(ctx, filter).Decode(&inst)
	if err == mongo.ErrNoDocuments {
		return models.EnrolInstance{}, storeerr.ErrNotFound
	}
	if err != nil {
		return models.EnrolInstance{}, err
	}
	return inst, nil
}

// Create inserts a new instance. Status defaults to disabled.
func (s *Store) Create(ctx context.Context, inst models.EnrolInstance) (models.EnrolInstance, error) {
	if inst.Status == "" {
		inst.Status = models.InstanceDisabled
	}
	if !models.ValidInstanceStatus(inst.Status) {
		return models.EnrolInstance{}, storeerr.ErrInvalidStatus
	}
	inst.Role = strings.TrimSpace(inst.Role)
	if inst.Role == "" {
		return models.EnrolInstance{}, storeerr.ErrRoleRequired
	}

	now := time.Now().UTC()
	inst.ID = primitive.NewObjectID()
	if inst.EndDate != nil {
		end := models.EndDateAt(*inst.EndDate)
		inst.EndDate = &end
	}
	inst.CreatedAt = now
	inst.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, inst); err != nil {
		if wafflemongo.IsDup(err) {
			return models.EnrolInstance{}, storeerr.ErrDuplicateInstance
		}
		return models.EnrolInstance{}, err
	}
	return inst, nil
}

// Update applies a partial update and returns the updated instance.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd models.InstanceUpdate) (models.EnrolInstance, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	update := bson.M{}

	if upd.Name != nil {
		set["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Status != nil {
		if !models.ValidInstanceStatus(*upd.Status) {
			return models.EnrolInstance{}, storeerr.ErrInvalidStatus
		}
		set["status"] = *upd.Status
	}
	if upd.Role != nil {
		role := strings.TrimSpace(*upd.Role)
		if role == "" {
			return models.EnrolInstance{}, storeerr.ErrRoleRequired
		}
		set["role"] = role
	}
	if upd.ClearEndDate {
		update["$unset"] = bson.M{"end_date": ""}
	} else if upd.EndDate != nil {
		set["end_date"] = models.EndDateAt(*upd.EndDate)
	}
	update["$set"] = set

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var inst models.EnrolInstance
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&inst)
	if err == mongo.ErrNoDocuments {
		return models.EnrolInstance{}, storeerr.ErrNotFound
	}
	if err != nil {
		return models.EnrolInstance{}, err
	}
	return inst, nil
}

// Delete removes an instance by ID. Enrolments are removed by the caller.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storeerr.ErrNotFound
	}
	return nil
}

// List returns instances ordered by creation time, optionally filtered by status.
// If status is empty, returns all instances.
func (s *Store) List(ctx context.Context, status string) ([]models.EnrolInstance, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.EnrolInstance
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
