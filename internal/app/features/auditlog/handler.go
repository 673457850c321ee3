// internal/app/features/auditlog/handler.go
package auditlog

import (
	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"go.uber.org/zap"
)

// Handler serves the audit log.
type Handler struct {
	Store  autoenrol.AuditStore
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs an Audit Log feature handler bound to
// the given audit store and logger.
func NewHandler(store autoenrol.AuditStore, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:  store,
		Log:    logger,
		ErrLog: errLog,
	}
}
