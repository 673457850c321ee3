// Package backend assembles the store implementations for one storage engine.
package backend

import (
	"context"
	"fmt"

	"github.com/dalemusser/autoenrol/internal/app/store/audit"
	enrolmentstore "github.com/dalemusser/autoenrol/internal/app/store/enrolments"
	instancestore "github.com/dalemusser/autoenrol/internal/app/store/instances"
	roleassignstore "github.com/dalemusser/autoenrol/internal/app/store/roleassign"
	settingsstore "github.com/dalemusser/autoenrol/internal/app/store/settings"
	"github.com/dalemusser/autoenrol/internal/app/store/sqlitestore"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Names accepted by the store_backend setting.
const (
	Mongo  = "mongo"
	SQLite = "sqlite"
)

// Valid reports whether name is a supported backend.
func Valid(name string) bool {
	return name == Mongo || name == SQLite
}

// ForMongo returns stores backed by db.
func ForMongo(db *mongo.Database) autoenrol.Stores {
	return autoenrol.Stores{
		Instances:  instancestore.New(db),
		Enrolments: enrolmentstore.New(db),
		Roles:      roleassignstore.New(db),
		Settings:   settingsstore.New(db),
		Audit:      audit.New(db),
	}
}

// ForSQLite returns stores backed by db.
func ForSQLite(db *sqlitestore.DB) autoenrol.Stores {
	return autoenrol.Stores{
		Instances:  db.Instances(),
		Enrolments: db.Enrolments(),
		Roles:      db.RoleAssignments(),
		Settings:   db.Settings(),
		Audit:      db.Audit(),
	}
}

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MongoPinger pings a Mongo client against the primary.
type MongoPinger struct {
	Client *mongo.Client
}

// Ping implements Pinger.
func (p MongoPinger) Ping(ctx context.Context) error {
	if p.Client == nil {
		return fmt.Errorf("mongo client not connected")
	}
	return p.Client.Ping(ctx, readpref.Primary())
}
