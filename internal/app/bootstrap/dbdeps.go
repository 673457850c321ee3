// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/autoenrol/internal/app/store/backend"
	"github.com/dalemusser/autoenrol/internal/app/store/sqlitestore"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
// Exactly one backend is populated, named by Backend.
type DBDeps struct {
	Backend string

	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	SQLite *sqlitestore.DB
}

// Stores returns the store implementations of the connected backend.
func (d DBDeps) Stores() autoenrol.Stores {
	if d.Backend == backend.SQLite {
		return backend.ForSQLite(d.SQLite)
	}
	return backend.ForMongo(d.MongoDatabase)
}

// Pinger returns the health probe of the connected backend.
func (d DBDeps) Pinger() backend.Pinger {
	if d.Backend == backend.SQLite {
		return d.SQLite
	}
	return backend.MongoPinger{Client: d.MongoClient}
}
