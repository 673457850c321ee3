// internal/app/features/settings/admin.go
package settings

import (
	"net/http"

	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/system/authz"
	"github.com/dalemusser/autoenrol/internal/app/system/formutil"
	"github.com/dalemusser/autoenrol/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// settingsInput is the body of POST /settings. Omitted fields keep their
// stored value.
type settingsInput struct {
	Enabled       *bool   `json:"enabled"`
	DefaultEnrol  *bool   `json:"default_enrol"`
	DefaultStatus *string `json:"default_status"`
	DefaultRole   *string `json:"default_role"`
}

// ServeSettings handles GET /settings.
func (h *Handler) ServeSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load settings")
	defer cancel()

	st, err := h.Manager.Settings(ctx, authz.Actor(r))
	if err != nil {
		h.ErrLog.Write(w, r, "could not load settings", err)
		return
	}
	uierrors.JSON(w, http.StatusOK, st)
}

// HandleSettings handles POST /settings.
func (h *Handler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	var in settingsInput
	if err := formutil.DecodeJSON(w, r, &in); err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "save settings")
	defer cancel()

	actor := authz.Actor(r)
	st, err := h.Manager.Settings(ctx, actor)
	if err != nil {
		h.ErrLog.Write(w, r, "could not load settings", err)
		return
	}
	if in.Enabled != nil {
		st.Enabled = *in.Enabled
	}
	if in.DefaultEnrol != nil {
		st.DefaultEnrol = *in.DefaultEnrol
	}
	if in.DefaultStatus != nil {
		st.DefaultStatus = *in.DefaultStatus
	}
	if in.DefaultRole != nil {
		st.DefaultRole = *in.DefaultRole
	}

	saved, err := h.Manager.SaveSettings(ctx, actor, st)
	if err != nil {
		h.ErrLog.Write(w, r, "could not save settings", err)
		return
	}
	h.Log.Info("auto enrol settings saved",
		zap.Bool("enabled", saved.Enabled),
		zap.String("default_status", saved.DefaultStatus),
		zap.String("default_role", saved.DefaultRole))
	uierrors.JSON(w, http.StatusOK, saved)
}
