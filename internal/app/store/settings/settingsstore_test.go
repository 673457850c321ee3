package settingsstore_test

import (
	"testing"

	settingsstore "github.com/dalemusser/autoenrol/internal/app/store/settings"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"github.com/dalemusser/autoenrol/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStore_Save_SingleDocumentPerPlugin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := settingsstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, enabled := range []bool{true, false, true} {
		s := models.DefaultPluginSettings(models.PluginName)
		s.Enabled = enabled
		if err := store.Save(ctx, models.PluginName, s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	n, err := db.Collection("enrol_settings").CountDocuments(ctx, bson.M{"plugin": models.PluginName})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 settings document, got %d", n)
	}
}

func TestStore_Get_OtherPluginUnaffected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := settingsstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s := models.DefaultPluginSettings(models.PluginName)
	s.Enabled = true
	if err := store.Save(ctx, models.PluginName, s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	enabled, err := store.IsStrategyEnabled(ctx, "manual")
	if err != nil {
		t.Fatalf("IsStrategyEnabled failed: %v", err)
	}
	if enabled {
		t.Error("expected an unsaved plugin to be disabled")
	}
}
