package autoenrol_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/store/backend"
	"github.com/dalemusser/autoenrol/internal/app/store/storeerr"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/app/system/capabilities"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"github.com/dalemusser/autoenrol/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	selfEnrol = capabilities.Of(capabilities.EnrolSelf)
	noCaps    = capabilities.Of()
	epoch     = time.Unix(1000, 0).UTC()
)

func newEngine(t *testing.T) (*autoenrol.Engine, *testutil.Fixtures) {
	t.Helper()
	stores := testutil.SetupSQLiteStores(t)
	return autoenrol.NewEngine(stores, 0, nil, nil), testutil.NewFixtures(t, stores)
}

func student() autoenrol.User {
	return autoenrol.User{ID: primitive.NewObjectID(), Name: "U"}
}

func TestAttemptAutoEnrol_ConcreteScenario(t *testing.T) {
	engine, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)
	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	user := student()

	out, err := engine.AttemptAutoEnrol(ctx, user, inst.CourseID, selfEnrol, epoch)
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if !out.Enrolled {
		t.Fatalf("expected Enrolled, got NotEligible(%s)", out.Reason)
	}
	want := time.Unix(1010, 0).UTC()
	if out.NextCheckAt == nil || !out.NextCheckAt.Equal(want) {
		t.Errorf("NextCheckAt = %v, want %v", out.NextCheckAt, want)
	}
	if !out.Created {
		t.Error("expected Created on first attempt")
	}

	e, err := fx.Stores().Enrolments.Get(ctx, inst.ID, user.ID)
	if err != nil {
		t.Fatalf("enrolment not recorded: %v", err)
	}
	if e.Status != models.EnrolmentActive || e.Role != "student" {
		t.Errorf("enrolment = %+v, want active student", e)
	}
}

func TestAttemptAutoEnrol_StrategyDisabled(t *testing.T) {
	engine, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, false)
	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	user := student()

	out, err := engine.AttemptAutoEnrol(ctx, user, inst.CourseID, selfEnrol, epoch)
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if out.Enrolled || out.Reason != autoenrol.ReasonStrategyDisabled {
		t.Errorf("outcome = %+v, want NotEligible(strategy_disabled)", out)
	}
	if n, _ := fx.Stores().Enrolments.CountByInstance(ctx, inst.ID, ""); n != 0 {
		t.Errorf("expected no enrolment, found %d", n)
	}
}

func TestAttemptAutoEnrol_GuestCheckedFirst(t *testing.T) {
	engine, _ := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// No settings, no instance, no capabilities: guest still wins.
	for _, caps := range []autoenrol.Capabilities{nil, noCaps, selfEnrol} {
		out, err := engine.AttemptAutoEnrol(ctx, autoenrol.GuestUser(), primitive.NewObjectID(), caps, epoch)
		if err != nil {
			t.Fatalf("AttemptAutoEnrol failed: %v", err)
		}
		if out.Reason != autoenrol.ReasonGuestUser {
			t.Errorf("reason = %q, want guest_user", out.Reason)
		}
	}
}

func TestAttemptAutoEnrol_MissingCapabilityRegardlessOfInstance(t *testing.T) {
	engine, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)
	courses := []primitive.ObjectID{
		fx.CreateInstance(ctx, models.InstanceEnabled).CourseID,
		fx.CreateInstance(ctx, models.InstanceDisabled).CourseID,
		primitive.NewObjectID(),
	}
	for _, courseID := range courses {
		out, err := engine.AttemptAutoEnrol(ctx, student(), courseID, noCaps, epoch)
		if err != nil {
			t.Fatalf("AttemptAutoEnrol failed: %v", err)
		}
		if out.Reason != autoenrol.ReasonMissingCapability {
			t.Errorf("reason = %q, want missing_capability", out.Reason)
		}
	}
}

func TestAttemptAutoEnrol_InstanceAbsentAndDisabled(t *testing.T) {
	engine, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)

	out, err := engine.AttemptAutoEnrol(ctx, student(), primitive.NewObjectID(), selfEnrol, epoch)
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if out.Reason != autoenrol.ReasonInstanceAbsent {
		t.Errorf("reason = %q, want instance_absent", out.Reason)
	}

	disabled := fx.CreateInstance(ctx, models.InstanceDisabled)
	out, err = engine.AttemptAutoEnrol(ctx, student(), disabled.CourseID, selfEnrol, epoch)
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if out.Reason != autoenrol.ReasonInstanceDisabled {
		t.Errorf("reason = %q, want instance_disabled", out.Reason)
	}
}

func TestAttemptAutoEnrol_ExpiryBoundary(t *testing.T) {
	engine, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)
	end := epoch
	inst := fx.CreateInstanceFor(ctx, primitive.NewObjectID(), models.InstanceEnabled, &end)

	out, err := engine.AttemptAutoEnrol(ctx, student(), inst.CourseID, selfEnrol, end)
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if !out.Enrolled {
		t.Errorf("now == end_date: got NotEligible(%s), want Enrolled", out.Reason)
	}

	out, err = engine.AttemptAutoEnrol(ctx, student(), inst.CourseID, selfEnrol, end.Add(time.Second))
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if out.Reason != autoenrol.ReasonInstanceExpired {
		t.Errorf("now > end_date: reason = %q, want instance_expired", out.Reason)
	}
}

func TestAttemptAutoEnrol_ExpiryBoundarySubMillisecond(t *testing.T) {
	engine, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)
	end := time.Unix(1000, 500_000).UTC()
	inst := fx.CreateInstanceFor(ctx, primitive.NewObjectID(), models.InstanceEnabled, &end)

	out, err := engine.AttemptAutoEnrol(ctx, student(), inst.CourseID, selfEnrol, end)
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if !out.Enrolled {
		t.Errorf("now == end_date: got NotEligible(%s), want Enrolled", out.Reason)
	}

	out, err = engine.AttemptAutoEnrol(ctx, student(), inst.CourseID, selfEnrol, end.Add(time.Millisecond))
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if out.Reason != autoenrol.ReasonInstanceExpired {
		t.Errorf("now > end_date: reason = %q, want instance_expired", out.Reason)
	}
}

func TestAttemptAutoEnrol_Idempotent(t *testing.T) {
	engine, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)
	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	user := student()

	first, err := engine.AttemptAutoEnrol(ctx, user, inst.CourseID, selfEnrol, epoch)
	if err != nil {
		t.Fatalf("first attempt failed: %v", err)
	}
	second, err := engine.AttemptAutoEnrol(ctx, user, inst.CourseID, selfEnrol, epoch.Add(5*time.Second))
	if err != nil {
		t.Fatalf("second attempt failed: %v", err)
	}
	if !first.Enrolled || !second.Enrolled {
		t.Fatalf("expected Enrolled twice, got %+v and %+v", first, second)
	}
	if second.Created {
		t.Error("second attempt must not create a record")
	}
	if n, _ := fx.Stores().Enrolments.CountByInstance(ctx, inst.ID, ""); n != 1 {
		t.Errorf("expected exactly one enrolment, found %d", n)
	}
}

func TestAttemptAutoEnrol_ExistingRoleNotRewritten(t *testing.T) {
	engine, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)
	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	user := student()
	if _, err := engine.AttemptAutoEnrol(ctx, user, inst.CourseID, selfEnrol, epoch); err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}

	role := "teacher"
	if _, err := fx.Stores().Instances.Update(ctx, inst.ID, models.InstanceUpdate{Role: &role}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := engine.AttemptAutoEnrol(ctx, user, inst.CourseID, selfEnrol, epoch); err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}

	e, err := fx.Stores().Enrolments.Get(ctx, inst.ID, user.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if e.Role != "student" {
		t.Errorf("Role = %q, want the original student", e.Role)
	}
}

func TestAttemptAutoEnrol_DisableKeepsExistingBlocksNew(t *testing.T) {
	engine, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)
	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	enrolled := student()
	if _, err := engine.AttemptAutoEnrol(ctx, enrolled, inst.CourseID, selfEnrol, epoch); err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}

	status := models.InstanceDisabled
	if _, err := fx.Stores().Instances.Update(ctx, inst.ID, models.InstanceUpdate{Status: &status}); err != nil {
		t.Fatalf("disable failed: %v", err)
	}

	if _, err := fx.Stores().Enrolments.Get(ctx, inst.ID, enrolled.ID); err != nil {
		t.Errorf("existing enrolment removed by disable: %v", err)
	}
	out, err := engine.AttemptAutoEnrol(ctx, student(), inst.CourseID, selfEnrol, epoch)
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if out.Reason != autoenrol.ReasonInstanceDisabled {
		t.Errorf("reason = %q, want instance_disabled", out.Reason)
	}
}

func TestAttemptAutoEnrol_SuspendedEnrolmentUntouched(t *testing.T) {
	engine, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)
	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	user := student()
	fx.CreateEnrolment(ctx, inst, user.ID, models.EnrolmentSuspended)

	out, err := engine.AttemptAutoEnrol(ctx, user, inst.CourseID, selfEnrol, epoch)
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if out.Reason != autoenrol.ReasonEnrolmentSuspended {
		t.Errorf("reason = %q, want enrolment_suspended", out.Reason)
	}
	e, _ := fx.Stores().Enrolments.Get(ctx, inst.ID, user.ID)
	if e.Status != models.EnrolmentSuspended {
		t.Errorf("status = %q, suspended enrolment was changed", e.Status)
	}
}

func TestAttemptAutoEnrol_ConcurrentAttemptsConverge(t *testing.T) {
	engine, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)
	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	user := student()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := engine.AttemptAutoEnrol(ctx, user, inst.CourseID, selfEnrol, epoch)
			if err != nil {
				t.Errorf("AttemptAutoEnrol failed: %v", err)
				return
			}
			if !out.Enrolled {
				t.Errorf("expected Enrolled, got %q", out.Reason)
			}
			if out.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("%d attempts created the enrolment, want 1", created)
	}
}

func TestAttemptAutoEnrol_CustomGrace(t *testing.T) {
	stores := testutil.SetupSQLiteStores(t)
	fx := testutil.NewFixtures(t, stores)
	engine := autoenrol.NewEngine(stores, time.Minute, nil, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)
	inst := fx.CreateInstance(ctx, models.InstanceEnabled)

	out, err := engine.AttemptAutoEnrol(ctx, student(), inst.CourseID, selfEnrol, epoch)
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if out.NextCheckAt == nil || !out.NextCheckAt.Equal(epoch.Add(time.Minute)) {
		t.Errorf("NextCheckAt = %v, want now+1m", out.NextCheckAt)
	}
}

// failingRoles fails every assignment.
type failingRoles struct {
	autoenrol.RoleAssigner
}

func (failingRoles) Assign(context.Context, models.RoleAssignment) error {
	return errors.New("role sink down")
}

func TestAttemptAutoEnrol_RoleFailureLeavesNoEnrolment(t *testing.T) {
	stores := testutil.SetupSQLiteStores(t)
	fx := testutil.NewFixtures(t, stores)
	stores.Roles = failingRoles{stores.Roles}
	engine := autoenrol.NewEngine(stores, 0, nil, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.SetStrategyEnabled(ctx, true)
	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	user := student()

	if _, err := engine.AttemptAutoEnrol(ctx, user, inst.CourseID, selfEnrol, epoch); err == nil {
		t.Fatal("expected an error when the role sink fails")
	}
	if _, err := stores.Enrolments.Get(ctx, inst.ID, user.ID); !errors.Is(err, storeerr.ErrNotFound) {
		t.Errorf("expected enrolment rolled back, got err = %v", err)
	}
}

// deletingEnrolments deletes the instance through the manager just before
// the enrolment is written, as a concurrent DeleteInstance would.
type deletingEnrolments struct {
	autoenrol.EnrolmentStore
	mgr *autoenrol.Manager
}

func (d deletingEnrolments) Enrol(ctx context.Context, e models.Enrolment) (models.Enrolment, bool, error) {
	if err := d.mgr.DeleteInstance(ctx, admin, e.InstanceID); err != nil {
		return models.Enrolment{}, false, err
	}
	return d.EnrolmentStore.Enrol(ctx, e)
}

func TestAttemptAutoEnrol_InstanceDeletedDuringEnrol(t *testing.T) {
	db := testutil.SetupSQLite(t)
	stores := backend.ForSQLite(db)
	fx := testutil.NewFixtures(t, stores)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	racing := stores
	racing.Enrolments = deletingEnrolments{EnrolmentStore: stores.Enrolments, mgr: autoenrol.NewManager(stores, nil, nil)}
	engine := autoenrol.NewEngine(racing, 0, nil, nil)

	fx.SetStrategyEnabled(ctx, true)
	inst := fx.CreateInstance(ctx, models.InstanceEnabled)
	user := student()

	out, err := engine.AttemptAutoEnrol(ctx, user, inst.CourseID, selfEnrol, epoch)
	if err != nil {
		t.Fatalf("AttemptAutoEnrol failed: %v", err)
	}
	if out.Enrolled || out.Reason != autoenrol.ReasonInstanceAbsent {
		t.Errorf("outcome = %+v, want NotEligible(instance_absent)", out)
	}
	if _, err := stores.Enrolments.Get(ctx, inst.ID, user.ID); !errors.Is(err, storeerr.ErrNotFound) {
		t.Errorf("enrolment for deleted instance left behind: err = %v", err)
	}
	roles, err := db.RoleAssignments().ListForUser(ctx, user.ID, inst.CourseID)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(roles) != 0 {
		t.Errorf("role assignments = %+v, want none", roles)
	}
}
