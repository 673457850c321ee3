// internal/app/features/settings/handler.go
package settings

import (
	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"go.uber.org/zap"
)

// Handler owns the site-level plugin settings endpoints.
type Handler struct {
	Manager *autoenrol.Manager
	Log     *zap.Logger
	ErrLog  *uierrors.ErrorLogger
}

// NewHandler constructs a settings Handler.
func NewHandler(mgr *autoenrol.Manager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Manager: mgr,
		Log:     logger,
		ErrLog:  errLog,
	}
}
