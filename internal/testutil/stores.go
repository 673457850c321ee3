package testutil

import (
	"testing"

	"github.com/dalemusser/autoenrol/internal/app/store/backend"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
)

// SetupSQLiteStores returns stores on a fresh in-memory SQLite database.
func SetupSQLiteStores(t *testing.T) autoenrol.Stores {
	t.Helper()
	return backend.ForSQLite(SetupSQLite(t))
}

// SetupMongoStores returns stores on a fresh test database, skipping when
// MongoDB is unavailable.
func SetupMongoStores(t *testing.T) autoenrol.Stores {
	t.Helper()
	return backend.ForMongo(SetupTestDB(t))
}
