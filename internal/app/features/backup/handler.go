// internal/app/features/backup/handler.go
package backup

import (
	"fmt"
	"net/http"

	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/system/authz"
	"github.com/dalemusser/autoenrol/internal/app/system/formutil"
	"github.com/dalemusser/autoenrol/internal/app/system/portability"
	"github.com/dalemusser/autoenrol/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// Handler serves course export and restore.
type Handler struct {
	Service *portability.Service
	Log     *zap.Logger
	ErrLog  *uierrors.ErrorLogger
}

// NewHandler constructs a backup Handler.
func NewHandler(svc *portability.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Service: svc,
		Log:     logger,
		ErrLog:  errLog,
	}
}

// ServeExport handles GET /courses/{courseID}/export and returns the snapshot
// as a JSON attachment.
func (h *Handler) ServeExport(w http.ResponseWriter, r *http.Request) {
	courseID, err := formutil.ObjectIDParam(r, "courseID")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "export course enrolments")
	defer cancel()

	snap, err := h.Service.Export(ctx, authz.Actor(r), courseID)
	if err != nil {
		h.ErrLog.Write(w, r, "could not export course", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="enrol_auto_%s.json"`, courseID.Hex()))
	if err := portability.Encode(w, snap); err != nil {
		h.Log.Warn("export write failed", zap.Error(err), zap.String("course_id", courseID.Hex()))
	}
}

// ServeRestore handles POST /courses/{courseID}/restore?target=new_course|existing.
// The body is a snapshot produced by ServeExport. target defaults to existing.
func (h *Handler) ServeRestore(w http.ResponseWriter, r *http.Request) {
	courseID, err := formutil.ObjectIDParam(r, "courseID")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}
	target := query.Get(r, "target")
	if target == "" {
		target = portability.TargetExisting
	}

	snap, err := portability.Decode(http.MaxBytesReader(w, r.Body, formutil.MaxBodyBytes))
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "restore course enrolments")
	defer cancel()

	res, err := h.Service.Restore(ctx, authz.Actor(r), snap, courseID, target)
	if err != nil {
		h.ErrLog.Write(w, r, "could not restore course", err)
		return
	}
	uierrors.JSON(w, http.StatusOK, res)
}
