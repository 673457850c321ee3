// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/store/backend"
	"github.com/dalemusser/autoenrol/internal/app/system/auditlog"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for autoenrol.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: store_backend, mongo_uri, session_name, etc.
//   - Environment variables: AUTOENROL_STORE_BACKEND, AUTOENROL_MONGO_URI, etc.
//   - Command-line flags: --store_backend, --mongo_uri, etc.
var appConfigKeys = []config.AppKey{
	{Name: "store_backend", Default: backend.Mongo, Desc: "Storage backend: 'mongo' or 'sqlite'"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "autoenrol", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "sqlite_path", Default: "autoenrol.db", Desc: "SQLite database file (store_backend=sqlite)"},

	// Session cookie shared with the host platform
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "autoenrol-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},

	// Audit logging settings
	{Name: "audit_log_admin", Default: auditlog.All, Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_enrol", Default: auditlog.All, Desc: "Course-view enrolment logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Enrolment timing
	{Name: "recheck_grace", Default: "10s", Desc: "Added to now to form next_check_at after a successful enrolment"},

	// Storage timeouts
	{Name: "timeout_ping", Default: "2s", Desc: "Health check ping timeout"},
	{Name: "timeout_short", Default: "5s", Desc: "Single-record storage timeout"},
	{Name: "timeout_medium", Default: "10s", Desc: "Enrolment attempt and list timeout"},
	{Name: "timeout_long", Default: "30s", Desc: "Cascade delete, export and restore timeout"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, AUTOENROL_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "AUTOENROL", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		StoreBackend:     strings.ToLower(strings.TrimSpace(appValues.String("store_backend"))),
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SQLitePath:       appValues.String("sqlite_path"),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),

		AuditLogAdmin: appValues.String("audit_log_admin"),
		AuditLogEnrol: appValues.String("audit_log_enrol"),

		RecheckGrace: appValues.Duration("recheck_grace", autoenrol.DefaultRecheckGrace),

		TimeoutPing:   appValues.Duration("timeout_ping", timeouts.DefaultPing),
		TimeoutShort:  appValues.Duration("timeout_short", timeouts.DefaultShort),
		TimeoutMedium: appValues.Duration("timeout_medium", timeouts.DefaultMedium),
		TimeoutLong:   appValues.Duration("timeout_long", timeouts.DefaultLong),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The backend name, the MongoDB URI (for the mongo backend) and the audit
// destinations are checked before any connection is attempted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if !backend.Valid(appCfg.StoreBackend) {
		return fmt.Errorf("store_backend must be %q or %q, got %q", backend.Mongo, backend.SQLite, appCfg.StoreBackend)
	}

	switch appCfg.StoreBackend {
	case backend.Mongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if appCfg.MongoDatabase == "" {
			return fmt.Errorf("mongo_database is required")
		}
	case backend.SQLite:
		if appCfg.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required")
		}
	}

	for key, v := range map[string]string{
		"audit_log_admin": appCfg.AuditLogAdmin,
		"audit_log_enrol": appCfg.AuditLogEnrol,
	} {
		switch v {
		case auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", key, v)
		}
	}

	if appCfg.RecheckGrace < 0 {
		return fmt.Errorf("recheck_grace must not be negative")
	}
	if coreCfg != nil && coreCfg.Env == "prod" && strings.HasPrefix(appCfg.SessionKey, "dev-only") {
		return fmt.Errorf("session_key must be set in production")
	}
	return nil
}
