package auditlog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/autoenrol/internal/app/features/auditlog"
	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/store/audit"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*auditlog.Handler, autoenrol.AuditStore) {
	t.Helper()
	store := testutil.SetupSQLiteStores(t).Audit
	logger := zap.NewNop()
	return auditlog.NewHandler(store, uierrors.NewErrorLogger(logger), logger), store
}

type listBody struct {
	Events  []audit.Event `json:"events"`
	HasNext bool          `json:"has_next"`
	Range   struct {
		Start int `json:"start"`
		End   int `json:"end"`
	} `json:"range"`
}

func serveList(t *testing.T, h *auditlog.Handler, url string, user testutil.TestUser) (*httptest.ResponseRecorder, listBody) {
	t.Helper()
	req := testutil.WithUser(httptest.NewRequest(http.MethodGet, url, nil), user)
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)

	var body listBody
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
	}
	return rec, body
}

func seed(t *testing.T, store autoenrol.AuditStore, courseID primitive.ObjectID, n int) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	for i := 0; i < n; i++ {
		if err := store.Log(ctx, audit.Event{
			Category:  audit.CategoryEnrol,
			EventType: audit.EventUserAutoEnrolled,
			CourseID:  &courseID,
			Success:   true,
		}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
}

func TestServeList_Admin(t *testing.T) {
	h, store := newTestHandler(t)
	seed(t, store, primitive.NewObjectID(), 3)

	rec, body := serveList(t, h, "/audit", testutil.AdminUser())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(body.Events) != 3 || body.HasNext {
		t.Errorf("events = %d, hasNext = %v", len(body.Events), body.HasNext)
	}
	if body.Range.Start != 1 || body.Range.End != 3 {
		t.Errorf("range = %+v", body.Range)
	}
}

func TestServeList_Paging(t *testing.T) {
	h, store := newTestHandler(t)
	seed(t, store, primitive.NewObjectID(), 55)

	_, first := serveList(t, h, "/audit", testutil.AdminUser())
	if len(first.Events) != 50 || !first.HasNext {
		t.Errorf("first page: %d events, hasNext %v", len(first.Events), first.HasNext)
	}
	_, second := serveList(t, h, "/audit?start=51", testutil.AdminUser())
	if len(second.Events) != 5 || second.HasNext {
		t.Errorf("second page: %d events, hasNext %v", len(second.Events), second.HasNext)
	}
}

func TestServeList_CourseScopedForTeachers(t *testing.T) {
	h, store := newTestHandler(t)
	courseID := primitive.NewObjectID()
	seed(t, store, courseID, 2)
	seed(t, store, primitive.NewObjectID(), 4)

	rec, _ := serveList(t, h, "/audit", testutil.EditingTeacherUser())
	if rec.Code != http.StatusForbidden {
		t.Errorf("unscoped status = %d, want 403", rec.Code)
	}

	rec, body := serveList(t, h, "/audit?course_id="+courseID.Hex(), testutil.EditingTeacherUser())
	if rec.Code != http.StatusOK {
		t.Fatalf("scoped status = %d", rec.Code)
	}
	if len(body.Events) != 2 {
		t.Errorf("events = %d, want 2", len(body.Events))
	}
}

func TestServeList_BadFilter(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, url := range []string{"/audit?course_id=nope", "/audit?start_date=yesterday"} {
		rec, _ := serveList(t, h, url, testutil.AdminUser())
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", url, rec.Code)
		}
	}
}
