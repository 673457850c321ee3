// internal/app/features/enrolments/handler.go
package enrolments

import (
	"net/http"

	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/system/authz"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/app/system/formutil"
	"github.com/dalemusser/autoenrol/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler owns the enrolment administration endpoints of an instance.
type Handler struct {
	Manager *autoenrol.Manager
	Log     *zap.Logger
	ErrLog  *uierrors.ErrorLogger
}

// NewHandler constructs an enrolments Handler.
func NewHandler(mgr *autoenrol.Manager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Manager: mgr,
		Log:     logger,
		ErrLog:  errLog,
	}
}

type statusInput struct {
	Status string `json:"status"`
}

// ServeList handles GET /instances/{id}/enrolments.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	id, err := formutil.ObjectIDParam(r, "id")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list enrolments")
	defer cancel()

	list, err := h.Manager.Enrolments(ctx, authz.Actor(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, "could not list enrolments", err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{
		"instance_id": id,
		"count":       len(list),
		"enrolments":  list,
	})
}

// ServeStatus handles POST /instances/{id}/enrolments/{userID}/status.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := formutil.ObjectIDParam(r, "id")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}
	userID, err := formutil.ObjectIDParam(r, "userID")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}
	var in statusInput
	if err := formutil.DecodeJSON(w, r, &in); err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "set enrolment status")
	defer cancel()

	if err := h.Manager.SetEnrolmentStatus(ctx, authz.Actor(r), id, userID, in.Status); err != nil {
		h.ErrLog.Write(w, r, "could not change enrolment status", err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "status": in.Status})
}

// ServeUnenrol handles POST /instances/{id}/enrolments/{userID}/unenrol.
func (h *Handler) ServeUnenrol(w http.ResponseWriter, r *http.Request) {
	id, err := formutil.ObjectIDParam(r, "id")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}
	userID, err := formutil.ObjectIDParam(r, "userID")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "unenrol user")
	defer cancel()

	if err := h.Manager.Unenrol(ctx, authz.Actor(r), id, userID); err != nil {
		h.ErrLog.Write(w, r, "could not unenrol user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
