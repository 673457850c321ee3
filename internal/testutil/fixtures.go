package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data on any backend.
type Fixtures struct {
	stores autoenrol.Stores
	t      *testing.T
}

// NewFixtures creates a new Fixtures instance for the given stores.
func NewFixtures(t *testing.T, stores autoenrol.Stores) *Fixtures {
	t.Helper()
	return &Fixtures{stores: stores, t: t}
}

// Stores returns the underlying stores for direct access in tests.
func (f *Fixtures) Stores() autoenrol.Stores {
	return f.stores
}

// SetStrategyEnabled saves the site-wide toggle, keeping the other defaults.
func (f *Fixtures) SetStrategyEnabled(ctx context.Context, enabled bool) {
	f.t.Helper()

	st := models.DefaultPluginSettings(models.PluginName)
	st.Enabled = enabled
	if err := f.stores.Settings.Save(ctx, models.PluginName, st); err != nil {
		f.t.Fatalf("failed to save settings: %v", err)
	}
}

// CreateInstance creates an instance for a new course with the given status.
func (f *Fixtures) CreateInstance(ctx context.Context, status string) models.EnrolInstance {
	f.t.Helper()
	return f.CreateInstanceFor(ctx, primitive.NewObjectID(), status, nil)
}

// CreateInstanceFor creates an instance for courseID with an optional end date.
func (f *Fixtures) CreateInstanceFor(ctx context.Context, courseID primitive.ObjectID, status string, endDate *time.Time) models.EnrolInstance {
	f.t.Helper()

	inst, err := f.stores.Instances.Create(ctx, models.EnrolInstance{
		CourseID: courseID,
		Status:   status,
		Role:     models.DefaultRole,
		EndDate:  endDate,
	})
	if err != nil {
		f.t.Fatalf("failed to create instance: %v", err)
	}
	return inst
}

// CreateEnrolment enrols userID in inst with the given status.
func (f *Fixtures) CreateEnrolment(ctx context.Context, inst models.EnrolInstance, userID primitive.ObjectID, status string) models.Enrolment {
	f.t.Helper()

	e, _, err := f.stores.Enrolments.Enrol(ctx, models.Enrolment{
		InstanceID: inst.ID,
		CourseID:   inst.CourseID,
		UserID:     userID,
		Role:       inst.Role,
		Status:     status,
	})
	if err != nil {
		f.t.Fatalf("failed to create enrolment: %v", err)
	}
	return e
}
