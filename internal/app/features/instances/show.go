// internal/app/features/instances/show.go
package instances

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/system/authz"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/app/system/capabilities"
	"github.com/dalemusser/autoenrol/internal/app/system/formutil"
	"github.com/dalemusser/autoenrol/internal/app/system/timeouts"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

// instanceView is the JSON form of an instance.
type instanceView struct {
	models.EnrolInstance
	DisplayName string `json:"display_name"`
}

func viewOf(inst models.EnrolInstance) instanceView {
	return instanceView{EnrolInstance: inst, DisplayName: inst.DisplayName()}
}

// addInput is the body of POST /courses/{courseID}/instance. Every field is
// optional; omitted fields take the site defaults.
type addInput struct {
	Name    string     `json:"name"`
	Status  string     `json:"status"`
	Role    string     `json:"role"`
	EndDate *time.Time `json:"end_date"`
}

// ServeShow handles GET /courses/{courseID}/instance.
func (h *Handler) ServeShow(w http.ResponseWriter, r *http.Request) {
	courseID, err := formutil.ObjectIDParam(r, "courseID")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "show instance")
	defer cancel()

	inst, err := h.Manager.Instance(ctx, authz.Actor(r), courseID)
	if err != nil {
		h.ErrLog.Write(w, r, "could not load instance", err)
		return
	}
	uierrors.JSON(w, http.StatusOK, viewOf(inst))
}

// ServeList handles GET /instances?status=enabled|disabled.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	status := query.Get(r, "status")
	if status != "" && !models.ValidInstanceStatus(status) {
		uierrors.BadRequest(w, "invalid status filter")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list instances")
	defer cancel()

	list, err := h.Manager.Instances(ctx, authz.Actor(r), status)
	if err != nil {
		h.ErrLog.Write(w, r, "could not list instances", err)
		return
	}
	out := make([]instanceView, 0, len(list))
	for _, inst := range list {
		out = append(out, viewOf(inst))
	}
	uierrors.JSON(w, http.StatusOK, map[string]any{"instances": out})
}

// ServeAdd handles POST /courses/{courseID}/instance. An empty body adds an
// instance with the site defaults.
func (h *Handler) ServeAdd(w http.ResponseWriter, r *http.Request) {
	courseID, err := formutil.ObjectIDParam(r, "courseID")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}
	var in addInput
	if err := formutil.DecodeJSON(w, r, &in); err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "add instance")
	defer cancel()

	inst, err := h.Manager.AddInstance(ctx, authz.Actor(r), courseID, autoenrol.InstanceFields{
		Name:    in.Name,
		Status:  in.Status,
		Role:    in.Role,
		EndDate: in.EndDate,
	})
	if err != nil {
		h.ErrLog.Write(w, r, "could not add instance", err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, viewOf(inst))
}

// ServeCourseCreated handles POST /courses/{courseID}/created, the hook the
// host calls after creating a course.
func (h *Handler) ServeCourseCreated(w http.ResponseWriter, r *http.Request) {
	if !authz.Has(r, capabilities.Manage) {
		h.ErrLog.Write(w, r, "", autoenrol.ErrForbidden)
		return
	}
	courseID, err := formutil.ObjectIDParam(r, "courseID")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "course created hook")
	defer cancel()

	inst, created, err := h.Manager.OnCourseCreated(ctx, courseID)
	if err != nil {
		h.ErrLog.Write(w, r, "could not add default instance", err)
		return
	}

	resp := map[string]any{"created": created}
	if !inst.ID.IsZero() {
		resp["instance"] = viewOf(inst)
	}
	uierrors.JSON(w, http.StatusOK, resp)
}
