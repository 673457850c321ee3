package backup_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/autoenrol/internal/app/features/backup"
	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/system/portability"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"github.com/dalemusser/autoenrol/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (http.Handler, *testutil.Fixtures) {
	t.Helper()
	stores := testutil.SetupSQLiteStores(t)
	logger := zap.NewNop()
	h := backup.NewHandler(portability.New(stores, nil, logger), uierrors.NewErrorLogger(logger), logger)

	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, testutil.NewFixtures(t, stores)
}

func do(router http.Handler, req *http.Request, user testutil.TestUser) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, user))
	return rec
}

func TestExportRestoreRoundTrip(t *testing.T) {
	router, fx := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	userID := primitive.NewObjectID()
	fx.CreateEnrolment(ctx, inst, userID, models.EnrolmentActive)
	manager := testutil.ManagerUser()

	rec := do(router, testutil.NewRequest(http.MethodGet, "/courses/"+inst.CourseID.Hex()+"/export"), manager)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, inst.CourseID.Hex()) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	exported := rec.Body.Bytes()

	target := primitive.NewObjectID()
	req := httptest.NewRequest(http.MethodPost, "/courses/"+target.Hex()+"/restore?target=new_course", bytes.NewReader(exported))
	rec = do(router, req, manager)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore status = %d: %s", rec.Code, rec.Body.String())
	}
	var res portability.RestoreResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if res.Enrolled != 1 || res.Merged {
		t.Errorf("result = %+v", res)
	}
	if _, err := fx.Stores().Enrolments.Get(ctx, res.InstanceID, userID); err != nil {
		t.Errorf("restored enrolment missing: %v", err)
	}
}

func TestExport_Forbidden(t *testing.T) {
	router, fx := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	rec := do(router, testutil.NewRequest(http.MethodGet, "/courses/"+inst.CourseID.Hex()+"/export"), testutil.StudentUser())
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRestore_BadInput(t *testing.T) {
	router, _ := newTestRouter(t)
	course := primitive.NewObjectID().Hex()

	tests := []struct {
		name string
		url  string
		body string
	}{
		{"malformed json", "/courses/" + course + "/restore", `{"schema_version":`},
		{"unknown field", "/courses/" + course + "/restore", `{"schema_version":1,"extra":true}`},
		{"wrong version", "/courses/" + course + "/restore", `{"schema_version":9,"instance":{"status":"enabled","role":"student"}}`},
		{"bad target", "/courses/" + course + "/restore?target=moon", `{"schema_version":1,"instance":{"status":"enabled","role":"student"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(tt.body))
			rec := do(router, req, testutil.AdminUser())
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}
