// internal/app/features/courseview/handler.go
package courseview

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/system/authz"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/app/system/formutil"
	"github.com/dalemusser/autoenrol/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler runs the auto enrolment check when a user opens a course.
type Handler struct {
	Engine *autoenrol.Engine
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger

	// Now is the clock used for expiry and the recheck time.
	Now func() time.Time
}

// NewHandler constructs a course view Handler.
func NewHandler(engine *autoenrol.Engine, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Engine: engine,
		Log:    logger,
		ErrLog: errLog,
		Now:    time.Now,
	}
}

// ServeView handles POST /courses/{courseID}/view.
//
// The host calls this when the current session user opens the course. The
// reply is always 200 with the outcome unless storage fails:
//
//	{ "enrolled": true, "next_check_at": "…", "created": true }
//	{ "enrolled": false, "reason": "instance_disabled" }
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	courseID, err := formutil.ObjectIDParam(r, "courseID")
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "course view enrol")
	defer cancel()

	actor := authz.Actor(r)
	outcome, err := h.Engine.AttemptAutoEnrol(ctx, actor.User, courseID, actor.Caps, h.Now().UTC())
	if err != nil {
		h.ErrLog.Write(w, r, "auto enrolment failed", err)
		return
	}

	if !outcome.Enrolled {
		h.Log.Debug("auto enrolment declined",
			zap.String("course_id", courseID.Hex()),
			zap.String("user_id", actor.ID.Hex()),
			zap.String("reason", string(outcome.Reason)))
	}
	uierrors.JSON(w, http.StatusOK, outcome)
}
