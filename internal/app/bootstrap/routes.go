// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	auditlogfeature "github.com/dalemusser/autoenrol/internal/app/features/auditlog"
	backupfeature "github.com/dalemusser/autoenrol/internal/app/features/backup"
	courseviewfeature "github.com/dalemusser/autoenrol/internal/app/features/courseview"
	enrolmentsfeature "github.com/dalemusser/autoenrol/internal/app/features/enrolments"
	errorsfeature "github.com/dalemusser/autoenrol/internal/app/features/errors"
	healthfeature "github.com/dalemusser/autoenrol/internal/app/features/health"
	instancesfeature "github.com/dalemusser/autoenrol/internal/app/features/instances"
	settingsfeature "github.com/dalemusser/autoenrol/internal/app/features/settings"
	"github.com/dalemusser/autoenrol/internal/app/system/auditlog"
	"github.com/dalemusser/autoenrol/internal/app/system/auth"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/app/system/portability"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: the connected storage backend
//   - logger: the fully configured zap.Logger for this app
//
// The course view hook is open to guests (they get a guest_user outcome);
// every administrative route requires a signed-in session user and checks
// capabilities per operation.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	stores := deps.Stores()
	audit := auditlog.New(stores.Audit, logger, auditlog.Config{
		Admin: appCfg.AuditLogAdmin,
		Enrol: appCfg.AuditLogEnrol,
	})
	engine := autoenrol.NewEngine(stores, appCfg.RecheckGrace, audit, logger)
	manager := autoenrol.NewManager(stores, audit, logger)
	backups := portability.New(stores, audit, logger)

	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Request id, client IP and user agent for audit events.
	r.Use(auditlog.Middleware)

	// Global auth middleware: loads SessionUser into context if logged in.
	// This makes the current user available to all handlers via auth.CurrentUser(r).
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.Pinger(), deps.Backend, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Course view hook
	courseviewfeature.MountRoutes(r, courseviewfeature.NewHandler(engine, errLog, logger))

	// Administration
	r.Group(func(pr chi.Router) {
		pr.Use(sessionMgr.RequireSignedIn)

		instancesfeature.NewHandler(manager, errLog, logger).MountRoutes(pr)
		enrolmentsfeature.NewHandler(manager, errLog, logger).MountRoutes(pr)
		backupfeature.NewHandler(backups, errLog, logger).MountRoutes(pr)
		pr.Route("/settings", settingsfeature.NewHandler(manager, errLog, logger).MountRoutes)
	})

	auditHandler := auditlogfeature.NewHandler(stores.Audit, errLog, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	logger.Info("routes mounted",
		zap.String("backend", deps.Backend),
		zap.Duration("recheck_grace", engine.Grace()))
	return r, nil
}
