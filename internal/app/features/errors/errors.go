// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/autoenrol/internal/app/store/storeerr"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/app/system/portability"
	"go.uber.org/zap"
)

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ErrorLogger writes JSON error replies and logs server-side failures.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{Log: logger}
}

// Status maps a domain error to an HTTP status code.
func Status(err error) int {
	switch {
	case stderrors.Is(err, autoenrol.ErrForbidden):
		return http.StatusForbidden
	case stderrors.Is(err, storeerr.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, storeerr.ErrDuplicateInstance):
		return http.StatusConflict
	case stderrors.Is(err, storeerr.ErrInvalidStatus),
		stderrors.Is(err, storeerr.ErrRoleRequired),
		stderrors.Is(err, autoenrol.ErrUnknownRole),
		stderrors.Is(err, autoenrol.ErrNameTooLong),
		stderrors.Is(err, portability.ErrInvalidSnapshot),
		stderrors.Is(err, portability.ErrInvalidTarget),
		stderrors.Is(err, portability.ErrUnsupportedVersion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Write replies with the status for err. Internal errors are logged with msg
// and their detail is not exposed to the client.
func (el *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		el.Log.Error(msg, zap.Error(err), zap.String("path", r.URL.Path))
		JSON(w, status, errorResponse{Error: http.StatusText(status), Message: msg})
		return
	}
	JSON(w, status, errorResponse{Error: http.StatusText(status), Message: err.Error()})
}

// BadRequest replies 400 with message.
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, errorResponse{Error: http.StatusText(http.StatusBadRequest), Message: message})
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
