// internal/app/features/instances/edit.go
package instances

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/system/authz"
	"github.com/dalemusser/autoenrol/internal/app/system/formutil"
	"github.com/dalemusser/autoenrol/internal/app/system/timeouts"
	"github.com/dalemusser/autoenrol/internal/domain/models"
)

// editInput is the body of POST /instances/{id}/edit. Omitted fields are
// left unchanged.
type editInput struct {
	Name         *string    `json:"name"`
	Status       *string    `json:"status"`
	Role         *string    `json:"role"`
	EndDate      *time.Time `json:"end_date"`
	ClearEndDate bool       `json:"clear_end_date"`
}

type statusInput struct {
	Status string `json:"status"`
}

// ServeEdit handles POST /instances/{id}/edit.
func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	id, err := formutil.ObjectIDParam(r, "id")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}
	var in editInput
	if err := formutil.DecodeJSON(w, r, &in); err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}
	upd := models.InstanceUpdate{
		Name:         in.Name,
		Status:       in.Status,
		Role:         in.Role,
		EndDate:      in.EndDate,
		ClearEndDate: in.ClearEndDate,
	}
	if upd.Empty() {
		uierrors.BadRequest(w, "nothing to update")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "edit instance")
	defer cancel()

	inst, err := h.Manager.UpdateInstance(ctx, authz.Actor(r), id, upd)
	if err != nil {
		h.ErrLog.Write(w, r, "could not update instance", err)
		return
	}
	uierrors.JSON(w, http.StatusOK, viewOf(inst))
}

// ServeStatus handles POST /instances/{id}/status with {"status":"enabled"}.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := formutil.ObjectIDParam(r, "id")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}
	var in statusInput
	if err := formutil.DecodeJSON(w, r, &in); err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "set instance status")
	defer cancel()

	inst, err := h.Manager.SetStatus(ctx, authz.Actor(r), id, in.Status)
	if err != nil {
		h.ErrLog.Write(w, r, "could not change instance status", err)
		return
	}
	uierrors.JSON(w, http.StatusOK, viewOf(inst))
}

// ServeDelete handles POST /instances/{id}/delete.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	id, err := formutil.ObjectIDParam(r, "id")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete instance")
	defer cancel()

	if err := h.Manager.DeleteInstance(ctx, authz.Actor(r), id); err != nil {
		h.ErrLog.Write(w, r, "could not delete instance", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
