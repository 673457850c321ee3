package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/store/backend"
	"github.com/dalemusser/autoenrol/internal/app/store/sqlitestore"
	"github.com/dalemusser/autoenrol/internal/app/system/auditlog"
	"github.com/dalemusser/autoenrol/internal/app/system/auth"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/app/system/timeouts"
	"github.com/dalemusser/autoenrol/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func sqliteConfig() AppConfig {
	return AppConfig{
		StoreBackend:  backend.SQLite,
		SQLitePath:    sqlitestore.MemoryPath,
		SessionKey:    "test-session-key-0123456789abcdefghijklmnop",
		SessionName:   "autoenrol-test",
		SessionMaxAge: time.Hour,
		AuditLogAdmin: auditlog.All,
		AuditLogEnrol: auditlog.DB,
		RecheckGrace:  autoenrol.DefaultRecheckGrace,
	}
}

func TestValidateConfig(t *testing.T) {
	dev := &config.CoreConfig{Env: "dev"}
	prod := &config.CoreConfig{Env: "prod"}

	mongoCfg := sqliteConfig()
	mongoCfg.StoreBackend = backend.Mongo
	mongoCfg.MongoURI = "mongodb://localhost:27017"
	mongoCfg.MongoDatabase = "autoenrol"

	tests := []struct {
		name    string
		core    *config.CoreConfig
		mutate  func(*AppConfig)
		base    AppConfig
		wantErr bool
	}{
		{name: "sqlite ok", core: dev, base: sqliteConfig()},
		{name: "mongo ok", core: dev, base: mongoCfg},
		{name: "unknown backend", core: dev, base: sqliteConfig(), mutate: func(c *AppConfig) { c.StoreBackend = "postgres" }, wantErr: true},
		{name: "sqlite without path", core: dev, base: sqliteConfig(), mutate: func(c *AppConfig) { c.SQLitePath = "" }, wantErr: true},
		{name: "bad mongo uri", core: dev, base: mongoCfg, mutate: func(c *AppConfig) { c.MongoURI = "http://nope" }, wantErr: true},
		{name: "mongo without database", core: dev, base: mongoCfg, mutate: func(c *AppConfig) { c.MongoDatabase = "" }, wantErr: true},
		{name: "bad audit destination", core: dev, base: sqliteConfig(), mutate: func(c *AppConfig) { c.AuditLogEnrol = "syslog" }, wantErr: true},
		{name: "negative grace", core: dev, base: sqliteConfig(), mutate: func(c *AppConfig) { c.RecheckGrace = -time.Second }, wantErr: true},
		{name: "dev key in prod", core: prod, base: sqliteConfig(), mutate: func(c *AppConfig) { c.SessionKey = "dev-only-change-me-please-0123456789ABCDEF" }, wantErr: true},
		{name: "real key in prod", core: prod, base: sqliteConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.base
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := ValidateConfig(tt.core, cfg, testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func connectSQLite(t *testing.T) DBDeps {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	core := &config.CoreConfig{Env: "dev"}
	deps, err := ConnectDB(ctx, core, sqliteConfig(), testLogger())
	if err != nil {
		t.Fatalf("ConnectDB failed: %v", err)
	}
	t.Cleanup(func() {
		_ = Shutdown(context.Background(), core, sqliteConfig(), deps, testLogger())
	})
	return deps
}

func TestConnectDB_SQLite(t *testing.T) {
	deps := connectSQLite(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if deps.Backend != backend.SQLite {
		t.Fatalf("Backend = %q, want %q", deps.Backend, backend.SQLite)
	}
	if deps.SQLite == nil || deps.MongoClient != nil {
		t.Fatal("expected only the sqlite handle to be set")
	}
	if err := deps.Pinger().Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := EnsureSchema(ctx, nil, sqliteConfig(), deps, testLogger()); err != nil {
		t.Fatalf("EnsureSchema should be a no-op for sqlite: %v", err)
	}

	// Stores share the same database.
	fx := testutil.NewFixtures(t, deps.Stores())
	inst := fx.CreateInstance(ctx, "enabled")
	got, err := deps.Stores().Instances.GetByID(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.CourseID != inst.CourseID {
		t.Errorf("CourseID = %s, want %s", got.CourseID.Hex(), inst.CourseID.Hex())
	}
}

func TestStartup_ConfiguresTimeouts(t *testing.T) {
	t.Cleanup(timeouts.Reset)

	cfg := sqliteConfig()
	cfg.TimeoutShort = 3 * time.Second
	cfg.TimeoutLong = time.Minute

	if err := Startup(context.Background(), nil, cfg, DBDeps{Backend: backend.SQLite}, testLogger()); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	cur := timeouts.Current()
	if cur.Short != 3*time.Second {
		t.Errorf("Short = %v, want 3s", cur.Short)
	}
	if cur.Long != time.Minute {
		t.Errorf("Long = %v, want 1m", cur.Long)
	}
	if cur.Medium != timeouts.DefaultMedium {
		t.Errorf("Medium = %v, want default %v", cur.Medium, timeouts.DefaultMedium)
	}
}

func buildTestHandler(t *testing.T) (http.Handler, DBDeps) {
	t.Helper()
	deps := connectSQLite(t)
	h, err := BuildHandler(&config.CoreConfig{Env: "dev"}, sqliteConfig(), deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}
	return h, deps
}

// sessionCookie signs in u with the same key and cookie name BuildHandler uses.
func sessionCookie(t *testing.T, u auth.SessionUser) *http.Cookie {
	t.Helper()
	cfg := sqliteConfig()
	sm, err := auth.NewSessionManager(cfg.SessionKey, cfg.SessionName, "", cfg.SessionMaxAge, false, testLogger())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	rec := httptest.NewRecorder()
	if err := sm.SignIn(rec, httptest.NewRequest(http.MethodGet, "/", nil), u); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("SignIn set no cookie")
	}
	return cookies[0]
}

func TestBuildHandler_Health(t *testing.T) {
	h, _ := buildTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"backend":"sqlite"`) {
		t.Errorf("body %s missing backend", rec.Body.String())
	}
}

func TestBuildHandler_CourseViewGuest(t *testing.T) {
	h, _ := buildTestHandler(t)

	courseID := primitive.NewObjectID().Hex()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/courses/"+courseID+"/view", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var out autoenrol.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse outcome: %v", err)
	}
	if out.Enrolled || out.Reason != autoenrol.ReasonGuestUser {
		t.Errorf("outcome = %+v, want guest_user", out)
	}
	if rec.Header().Get(auditlog.RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestBuildHandler_AdminRoutesRequireSession(t *testing.T) {
	h, _ := buildTestHandler(t)

	for _, target := range []string{"/settings", "/instances", "/audit"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want %d", target, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestBuildHandler_SignedInAdmin(t *testing.T) {
	h, _ := buildTestHandler(t)
	cookie := sessionCookie(t, auth.SessionUser{
		ID:   primitive.NewObjectID().Hex(),
		Name: "Site Admin",
		Role: "admin",
	})

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestBuildHandler_SignedInStudentForbidden(t *testing.T) {
	h, _ := buildTestHandler(t)
	cookie := sessionCookie(t, auth.SessionUser{
		ID:   primitive.NewObjectID().Hex(),
		Name: "Student",
		Role: "student",
	})

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusForbidden, rec.Body.String())
	}
}
