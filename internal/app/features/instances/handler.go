// internal/app/features/instances/handler.go
package instances

import (
	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"go.uber.org/zap"
)

// Handler owns the instance administration endpoints.
type Handler struct {
	Manager *autoenrol.Manager
	Log     *zap.Logger
	ErrLog  *uierrors.ErrorLogger
}

// NewHandler constructs an instances Handler.
func NewHandler(mgr *autoenrol.Manager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Manager: mgr,
		Log:     logger,
		ErrLog:  errLog,
	}
}
