// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig carries the storage backend choice, session cookie settings
// shared with the host, audit destinations and enrolment timing.
type AppConfig struct {
	// Storage backend: "mongo" or "sqlite"
	StoreBackend string

	// MongoDB connection configuration (store_backend=mongo)
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// SQLite file path (store_backend=sqlite); ":memory:" for a throwaway database
	SQLitePath string

	// Session management configuration. The cookie is issued by the host
	// platform; this service only reads it.
	SessionKey    string        // Secret key for verifying session cookies
	SessionName   string        // Cookie name for sessions (default: autoenrol-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime when this service writes one

	// Audit logging destinations: all, db, log or off
	AuditLogAdmin string
	AuditLogEnrol string

	// RecheckGrace is added to now to form next_check_at on a successful
	// enrolment outcome.
	RecheckGrace time.Duration

	// Storage timeouts
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
