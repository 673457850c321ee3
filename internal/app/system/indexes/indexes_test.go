package indexes_test

import (
	"context"
	"testing"

	"github.com/dalemusser/autoenrol/internal/app/system/indexes"
	"github.com/dalemusser/autoenrol/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// SetupTestDB already ran EnsureAll once.
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	expected := map[string][]string{
		"enrol_instances":  {"uniq_ei_course", "idx_ei_status_created__id"},
		"enrolments":       {"uniq_enr_instance_user", "idx_enr_instance_created__id", "idx_enr_user_course"},
		"role_assignments": {"uniq_ra_user_course_role_component_item", "idx_ra_component_item"},
		"enrol_settings":   {"uniq_es_plugin"},
		"audit_events":     {"idx_audit_ts", "idx_audit_course_ts", "idx_audit_user_ts", "idx_audit_cat_type_ts"},
	}

	for coll, names := range expected {
		got := indexNames(t, ctx, db.Collection(coll))
		for _, name := range names {
			if !got[name] {
				t.Errorf("expected index %q on %s", name, coll)
			}
		}
	}
}

func TestEnsureAll_UniqueCourseEnforced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	courseID := primitive.NewObjectID()
	coll := db.Collection("enrol_instances")
	if _, err := coll.InsertOne(ctx, bson.M{"_id": primitive.NewObjectID(), "course_id": courseID}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	_, err := coll.InsertOne(ctx, bson.M{"_id": primitive.NewObjectID(), "course_id": courseID})
	if !mongo.IsDuplicateKeyError(err) {
		t.Errorf("expected duplicate key error, got %v", err)
	}
}

func TestEnsureAll_UniqueEnrolmentEnforced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	instanceID, userID := primitive.NewObjectID(), primitive.NewObjectID()
	coll := db.Collection("enrolments")
	if _, err := coll.InsertOne(ctx, bson.M{"_id": primitive.NewObjectID(), "instance_id": instanceID, "user_id": userID}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	_, err := coll.InsertOne(ctx, bson.M{"_id": primitive.NewObjectID(), "instance_id": instanceID, "user_id": userID})
	if !mongo.IsDuplicateKeyError(err) {
		t.Errorf("expected duplicate key error, got %v", err)
	}
	if _, err := coll.InsertOne(ctx, bson.M{"_id": primitive.NewObjectID(), "instance_id": instanceID, "user_id": primitive.NewObjectID()}); err != nil {
		t.Errorf("another user in the same instance: %v", err)
	}
}

func indexNames(t *testing.T, ctx context.Context, coll *mongo.Collection) map[string]bool {
	t.Helper()
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes on %s failed: %v", coll.Name(), err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}
