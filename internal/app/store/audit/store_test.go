package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/store/audit"
	"github.com/dalemusser/autoenrol/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_LogAssignsIDAndTimestamp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	before := time.Now().Add(-time.Second)
	if err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryEnrol,
		EventType: audit.EventUserAutoEnrolled,
		UserID:    &userID,
		IP:        "192.168.1.1",
		Success:   true,
	}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{UserID: &userID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID.IsZero() {
		t.Error("expected an ID to be assigned")
	}
	if events[0].Timestamp.Before(before) {
		t.Errorf("Timestamp %v is before %v", events[0].Timestamp, before)
	}
}

func TestStore_QueryByEventType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, et := range []string{audit.EventInstanceCreated, audit.EventInstanceDeleted, audit.EventInstanceCreated} {
		if err := store.Log(ctx, audit.Event{Category: audit.CategoryAdmin, EventType: et, Success: true}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.Query(ctx, audit.QueryFilter{EventType: audit.EventInstanceCreated})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events, got %d", len(events))
	}
}
