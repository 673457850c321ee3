// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/policy/enrolpolicy"
	"github.com/dalemusser/autoenrol/internal/app/store/audit"
	"github.com/dalemusser/autoenrol/internal/app/system/authz"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/app/system/paging"
	"github.com/dalemusser/autoenrol/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// listResponse is the JSON body of GET /audit.
type listResponse struct {
	Events  []audit.Event `json:"events"`
	Range   paging.Range  `json:"range"`
	HasNext bool          `json:"has_next"`
}

// ServeList handles GET /audit.
//
// Query parameters: course_id, user_id, category, event_type,
// start_date and end_date (YYYY-MM-DD), start (1-based row).
// Without course_id the caller needs site configuration rights.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}
	if !enrolpolicy.CanViewAudit(authz.Actor(r), filter.CourseID != nil) {
		h.ErrLog.Write(w, r, "", autoenrol.ErrForbidden)
		return
	}

	start := paging.ParseStart(r)
	filter.Offset = paging.Offset(start)
	filter.Limit = paging.LimitPlusOne()

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Store.Query(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to query audit events", err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	hasNext := paging.TrimPage(&events)

	uierrors.JSON(w, http.StatusOK, listResponse{
		Events:  events,
		Range:   paging.ComputeRange(start, len(events)),
		HasNext: hasNext,
	})
}

type filterError string

func (e filterError) Error() string { return string(e) }

func parseFilter(r *http.Request) (audit.QueryFilter, error) {
	filter := audit.QueryFilter{
		Category:  strings.TrimSpace(query.Get(r, "category")),
		EventType: strings.TrimSpace(query.Get(r, "event_type")),
	}

	if s := query.Get(r, "course_id"); s != "" {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return filter, filterError("invalid course_id")
		}
		filter.CourseID = &id
	}
	if s := query.Get(r, "user_id"); s != "" {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return filter, filterError("invalid user_id")
		}
		filter.UserID = &id
	}
	if s := query.Get(r, "start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return filter, filterError("invalid start_date")
		}
		filter.StartTime = &t
	}
	if s := query.Get(r, "end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return filter, filterError("invalid end_date")
		}
		// End of day
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}
	return filter, nil
}
