package enrolments_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/autoenrol/internal/app/features/enrolments"
	uierrors "github.com/dalemusser/autoenrol/internal/app/features/errors"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
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
	h := enrolments.NewHandler(autoenrol.NewManager(stores, nil, logger), uierrors.NewErrorLogger(logger), logger)

	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, testutil.NewFixtures(t, stores)
}

func do(router http.Handler, req *http.Request, user testutil.TestUser) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, user))
	return rec
}

func TestList(t *testing.T) {
	router, fx := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	fx.CreateEnrolment(ctx, inst, primitive.NewObjectID(), models.EnrolmentActive)
	fx.CreateEnrolment(ctx, inst, primitive.NewObjectID(), models.EnrolmentSuspended)

	rec := do(router, testutil.NewRequest(http.MethodGet, "/instances/"+inst.ID.Hex()+"/enrolments"), testutil.EditingTeacherUser())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Count      int                `json:"count"`
		Enrolments []models.Enrolment `json:"enrolments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if body.Count != 2 || len(body.Enrolments) != 2 {
		t.Errorf("count = %d, len = %d, want 2", body.Count, len(body.Enrolments))
	}

	rec = do(router, testutil.NewRequest(http.MethodGet, "/instances/"+inst.ID.Hex()+"/enrolments"), testutil.StudentUser())
	if rec.Code != http.StatusForbidden {
		t.Errorf("student status = %d, want 403", rec.Code)
	}
	rec = do(router, testutil.NewRequest(http.MethodGet, "/instances/"+primitive.NewObjectID().Hex()+"/enrolments"), testutil.ManagerUser())
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown instance status = %d, want 404", rec.Code)
	}
}

func TestSuspendThenUnenrol(t *testing.T) {
	router, fx := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	userID := primitive.NewObjectID()
	fx.CreateEnrolment(ctx, inst, userID, models.EnrolmentActive)
	base := "/instances/" + inst.ID.Hex() + "/enrolments/" + userID.Hex()
	teacher := testutil.EditingTeacherUser()

	rec := do(router, testutil.NewJSONRequest(http.MethodPost, base+"/status", map[string]string{"status": "suspended"}), teacher)
	if rec.Code != http.StatusOK {
		t.Fatalf("suspend status = %d: %s", rec.Code, rec.Body.String())
	}
	e, err := fx.Stores().Enrolments.Get(ctx, inst.ID, userID)
	if err != nil || e.Status != models.EnrolmentSuspended {
		t.Errorf("enrolment = %+v, %v; want suspended", e, err)
	}

	rec = do(router, testutil.NewJSONRequest(http.MethodPost, base+"/status", map[string]string{"status": "frozen"}), teacher)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", rec.Code)
	}

	rec = do(router, testutil.NewRequest(http.MethodPost, base+"/unenrol"), testutil.StudentUser())
	if rec.Code != http.StatusForbidden {
		t.Errorf("student unenrol = %d, want 403", rec.Code)
	}
	rec = do(router, testutil.NewRequest(http.MethodPost, base+"/unenrol"), teacher)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unenrol status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(router, testutil.NewRequest(http.MethodPost, base+"/unenrol"), teacher)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second unenrol = %d, want 404", rec.Code)
	}
}
