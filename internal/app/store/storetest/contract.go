// Package storetest holds behaviour tests every storage backend must pass.
// Backend packages call Run from their own tests with a factory for fresh
// stores.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/store/audit"
	"github.com/dalemusser/autoenrol/internal/app/store/storeerr"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Factory returns empty stores for one subtest.
type Factory func(t *testing.T) autoenrol.Stores

func testContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// Run executes the contract against stores produced by newStores.
func Run(t *testing.T, newStores Factory) {
	t.Run("Instances", func(t *testing.T) { instanceTests(t, newStores) })
	t.Run("Enrolments", func(t *testing.T) { enrolmentTests(t, newStores) })
	t.Run("RoleAssignments", func(t *testing.T) { roleTests(t, newStores) })
	t.Run("Settings", func(t *testing.T) { settingsTests(t, newStores) })
	t.Run("Audit", func(t *testing.T) { auditTests(t, newStores) })
}

func mustCreate(t *testing.T, ctx context.Context, st autoenrol.Stores, courseID primitive.ObjectID, status string) models.EnrolInstance {
	t.Helper()
	inst, err := st.Instances.Create(ctx, models.EnrolInstance{CourseID: courseID, Status: status, Role: "student"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return inst
}

func instanceTests(t *testing.T, newStores Factory) {
	t.Run("CreateDefaultsToDisabled", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		inst, err := st.Instances.Create(ctx, models.EnrolInstance{CourseID: primitive.NewObjectID(), Role: "student"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if inst.ID.IsZero() {
			t.Error("expected generated ID")
		}
		if inst.Status != models.InstanceDisabled {
			t.Errorf("Status = %q, want %q", inst.Status, models.InstanceDisabled)
		}
	})

	t.Run("CreateRequiresRole", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		_, err := st.Instances.Create(ctx, models.EnrolInstance{CourseID: primitive.NewObjectID()})
		if !errors.Is(err, storeerr.ErrRoleRequired) {
			t.Errorf("err = %v, want ErrRoleRequired", err)
		}
	})

	t.Run("OneInstancePerCourse", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		courseID := primitive.NewObjectID()
		mustCreate(t, ctx, st, courseID, models.InstanceEnabled)
		_, err := st.Instances.Create(ctx, models.EnrolInstance{CourseID: courseID, Role: "student"})
		if !errors.Is(err, storeerr.ErrDuplicateInstance) {
			t.Errorf("err = %v, want ErrDuplicateInstance", err)
		}
	})

	t.Run("GetEnabledForCourse", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		enabled := mustCreate(t, ctx, st, primitive.NewObjectID(), models.InstanceEnabled)
		disabled := mustCreate(t, ctx, st, primitive.NewObjectID(), models.InstanceDisabled)

		got, err := st.Instances.GetEnabledForCourse(ctx, enabled.CourseID)
		if err != nil {
			t.Fatalf("GetEnabledForCourse failed: %v", err)
		}
		if got.ID != enabled.ID {
			t.Errorf("got instance %s, want %s", got.ID.Hex(), enabled.ID.Hex())
		}

		if _, err := st.Instances.GetEnabledForCourse(ctx, disabled.CourseID); !errors.Is(err, storeerr.ErrNotFound) {
			t.Errorf("disabled: err = %v, want ErrNotFound", err)
		}
		if _, err := st.Instances.GetEnabledForCourse(ctx, primitive.NewObjectID()); !errors.Is(err, storeerr.ErrNotFound) {
			t.Errorf("absent: err = %v, want ErrNotFound", err)
		}

		// Repeated queries see the same record.
		again, err := st.Instances.GetEnabledForCourse(ctx, enabled.CourseID)
		if err != nil || again.ID != got.ID {
			t.Errorf("repeat query: got %v, %v", again.ID, err)
		}
	})

	t.Run("GetForCourseIgnoresStatus", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		disabled := mustCreate(t, ctx, st, primitive.NewObjectID(), models.InstanceDisabled)
		got, err := st.Instances.GetForCourse(ctx, disabled.CourseID)
		if err != nil {
			t.Fatalf("GetForCourse failed: %v", err)
		}
		if got.Status != models.InstanceDisabled {
			t.Errorf("Status = %q, want disabled", got.Status)
		}
	})

	t.Run("UpdatePartial", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		inst := mustCreate(t, ctx, st, primitive.NewObjectID(), models.InstanceDisabled)
		end := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		status := models.InstanceEnabled
		role := "teacher"

		got, err := st.Instances.Update(ctx, inst.ID, models.InstanceUpdate{Status: &status, Role: &role, EndDate: &end})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.Status != status || got.Role != role {
			t.Errorf("got status=%q role=%q", got.Status, got.Role)
		}
		if got.EndDate == nil || !got.EndDate.Equal(end) {
			t.Errorf("EndDate = %v, want %v", got.EndDate, end)
		}
		if got.CourseID != inst.CourseID {
			t.Error("course id must not change")
		}

		got, err = st.Instances.Update(ctx, inst.ID, models.InstanceUpdate{ClearEndDate: true})
		if err != nil {
			t.Fatalf("clear end date failed: %v", err)
		}
		if got.EndDate != nil {
			t.Errorf("EndDate = %v, want nil", got.EndDate)
		}
		if got.Role != role {
			t.Errorf("Role = %q, untouched field changed", got.Role)
		}
	})

	t.Run("EndDateRoundsUpToMillisecond", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		end := time.Date(2030, 1, 2, 3, 4, 5, 500_000, time.UTC)
		want := time.Date(2030, 1, 2, 3, 4, 5, int(time.Millisecond), time.UTC)

		inst, err := st.Instances.Create(ctx, models.EnrolInstance{
			CourseID: primitive.NewObjectID(),
			Status:   models.InstanceEnabled,
			Role:     models.DefaultRole,
			EndDate:  &end,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		got, err := st.Instances.GetByID(ctx, inst.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.EndDate == nil || !got.EndDate.Equal(want) {
			t.Errorf("created EndDate = %v, want %v", got.EndDate, want)
		}

		later := end.Add(time.Hour)
		got, err = st.Instances.Update(ctx, inst.ID, models.InstanceUpdate{EndDate: &later})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.EndDate == nil || !got.EndDate.Equal(want.Add(time.Hour)) {
			t.Errorf("updated EndDate = %v, want %v", got.EndDate, want.Add(time.Hour))
		}
	})

	t.Run("UpdateUnknown", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		status := models.InstanceEnabled
		_, err := st.Instances.Update(ctx, primitive.NewObjectID(), models.InstanceUpdate{Status: &status})
		if !errors.Is(err, storeerr.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdateInvalidStatus", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		inst := mustCreate(t, ctx, st, primitive.NewObjectID(), models.InstanceDisabled)
		bad := "paused"
		_, err := st.Instances.Update(ctx, inst.ID, models.InstanceUpdate{Status: &bad})
		if !errors.Is(err, storeerr.ErrInvalidStatus) {
			t.Errorf("err = %v, want ErrInvalidStatus", err)
		}
	})

	t.Run("DeleteAndList", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		a := mustCreate(t, ctx, st, primitive.NewObjectID(), models.InstanceEnabled)
		mustCreate(t, ctx, st, primitive.NewObjectID(), models.InstanceDisabled)

		all, err := st.Instances.List(ctx, "")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("List() returned %d, want 2", len(all))
		}
		enabled, err := st.Instances.List(ctx, models.InstanceEnabled)
		if err != nil {
			t.Fatalf("List(enabled) failed: %v", err)
		}
		if len(enabled) != 1 || enabled[0].ID != a.ID {
			t.Errorf("List(enabled) = %v", enabled)
		}

		if err := st.Instances.Delete(ctx, a.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := st.Instances.Delete(ctx, a.ID); !errors.Is(err, storeerr.ErrNotFound) {
			t.Errorf("second Delete: err = %v, want ErrNotFound", err)
		}
		if _, err := st.Instances.GetByID(ctx, a.ID); !errors.Is(err, storeerr.ErrNotFound) {
			t.Errorf("GetByID after delete: err = %v, want ErrNotFound", err)
		}
	})
}

func enrolmentTests(t *testing.T, newStores Factory) {
	t.Run("EnrolIsIdempotent", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		inst := mustCreate(t, ctx, st, primitive.NewObjectID(), models.InstanceEnabled)
		userID := primitive.NewObjectID()
		e := models.Enrolment{InstanceID: inst.ID, CourseID: inst.CourseID, UserID: userID, Role: "student"}

		first, created, err := st.Enrolments.Enrol(ctx, e)
		if err != nil {
			t.Fatalf("Enrol failed: %v", err)
		}
		if !created || first.Status != models.EnrolmentActive {
			t.Errorf("first: created=%v status=%q", created, first.Status)
		}

		e.Role = "teacher"
		second, created, err := st.Enrolments.Enrol(ctx, e)
		if err != nil {
			t.Fatalf("second Enrol failed: %v", err)
		}
		if created {
			t.Error("second Enrol should not create")
		}
		if second.ID != first.ID || second.Role != "student" {
			t.Errorf("existing record changed: %+v", second)
		}

		n, err := st.Enrolments.CountByInstance(ctx, inst.ID, "")
		if err != nil || n != 1 {
			t.Errorf("CountByInstance = %d, %v; want 1", n, err)
		}
	})

	t.Run("ConcurrentEnrolCreatesOne", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		inst := mustCreate(t, ctx, st, primitive.NewObjectID(), models.InstanceEnabled)
		userID := primitive.NewObjectID()

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			errs    []error
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, c, err := st.Enrolments.Enrol(ctx, models.Enrolment{
					InstanceID: inst.ID, CourseID: inst.CourseID, UserID: userID, Role: "student",
				})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
				}
				if c {
					created++
				}
			}()
		}
		wg.Wait()

		if len(errs) > 0 {
			t.Fatalf("concurrent Enrol errors: %v", errs)
		}
		if created != 1 {
			t.Errorf("created %d enrolments, want exactly 1", created)
		}
	})

	t.Run("StatusRemoveAndList", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		inst := mustCreate(t, ctx, st, primitive.NewObjectID(), models.InstanceEnabled)
		u1, u2 := primitive.NewObjectID(), primitive.NewObjectID()
		for _, u := range []primitive.ObjectID{u1, u2} {
			if _, _, err := st.Enrolments.Enrol(ctx, models.Enrolment{InstanceID: inst.ID, CourseID: inst.CourseID, UserID: u, Role: "student"}); err != nil {
				t.Fatalf("Enrol failed: %v", err)
			}
		}

		if err := st.Enrolments.SetStatus(ctx, inst.ID, u1, models.EnrolmentSuspended); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		got, err := st.Enrolments.Get(ctx, inst.ID, u1)
		if err != nil || got.Status != models.EnrolmentSuspended {
			t.Errorf("Get after SetStatus = %q, %v", got.Status, err)
		}
		if err := st.Enrolments.SetStatus(ctx, inst.ID, primitive.NewObjectID(), models.EnrolmentActive); !errors.Is(err, storeerr.ErrNotFound) {
			t.Errorf("SetStatus unknown: err = %v, want ErrNotFound", err)
		}
		if err := st.Enrolments.SetStatus(ctx, inst.ID, u1, "gone"); !errors.Is(err, storeerr.ErrInvalidStatus) {
			t.Errorf("SetStatus invalid: err = %v, want ErrInvalidStatus", err)
		}

		active, err := st.Enrolments.CountByInstance(ctx, inst.ID, models.EnrolmentActive)
		if err != nil || active != 1 {
			t.Errorf("active count = %d, %v; want 1", active, err)
		}

		list, err := st.Enrolments.ListByInstance(ctx, inst.ID)
		if err != nil || len(list) != 2 {
			t.Fatalf("ListByInstance = %d, %v; want 2", len(list), err)
		}

		if err := st.Enrolments.Remove(ctx, inst.ID, u2); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if _, err := st.Enrolments.Get(ctx, inst.ID, u2); !errors.Is(err, storeerr.ErrNotFound) {
			t.Errorf("Get after Remove: err = %v, want ErrNotFound", err)
		}
		if err := st.Enrolments.Remove(ctx, inst.ID, u2); !errors.Is(err, storeerr.ErrNotFound) {
			t.Errorf("second Remove: err = %v, want ErrNotFound", err)
		}

		n, err := st.Enrolments.DeleteByInstance(ctx, inst.ID)
		if err != nil || n != 1 {
			t.Errorf("DeleteByInstance = %d, %v; want 1", n, err)
		}
	})
}

func roleTests(t *testing.T, newStores Factory) {
	t.Run("AssignIdempotentAndUnassign", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		a := models.RoleAssignment{
			UserID:    primitive.NewObjectID(),
			CourseID:  primitive.NewObjectID(),
			Role:      "student",
			Component: models.Component,
			ItemID:    primitive.NewObjectID(),
		}
		for i := 0; i < 2; i++ {
			if err := st.Roles.Assign(ctx, a); err != nil {
				t.Fatalf("Assign #%d failed: %v", i+1, err)
			}
		}

		n, err := st.Roles.Unassign(ctx, models.Component, a.ItemID, a.UserID)
		if err != nil {
			t.Fatalf("Unassign failed: %v", err)
		}
		if n != 1 {
			t.Errorf("Unassign removed %d, want 1", n)
		}
	})

	t.Run("DeleteByItem", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		item := primitive.NewObjectID()
		course := primitive.NewObjectID()
		for i := 0; i < 3; i++ {
			if err := st.Roles.Assign(ctx, models.RoleAssignment{
				UserID: primitive.NewObjectID(), CourseID: course, Role: "student",
				Component: models.Component, ItemID: item,
			}); err != nil {
				t.Fatalf("Assign failed: %v", err)
			}
		}
		n, err := st.Roles.DeleteByItem(ctx, models.Component, item)
		if err != nil || n != 3 {
			t.Errorf("DeleteByItem = %d, %v; want 3", n, err)
		}
	})

	t.Run("AssignRequiresRole", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		err := st.Roles.Assign(ctx, models.RoleAssignment{UserID: primitive.NewObjectID(), Component: models.Component})
		if !errors.Is(err, storeerr.ErrRoleRequired) {
			t.Errorf("err = %v, want ErrRoleRequired", err)
		}
	})
}

func settingsTests(t *testing.T, newStores Factory) {
	t.Run("DefaultsWhenUnsaved", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		got, err := st.Settings.Get(ctx, models.PluginName)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		want := models.DefaultPluginSettings(models.PluginName)
		if got.Enabled != want.Enabled || got.DefaultEnrol != want.DefaultEnrol ||
			got.DefaultStatus != want.DefaultStatus || got.DefaultRole != want.DefaultRole {
			t.Errorf("Get() = %+v, want defaults %+v", got, want)
		}
		enabled, err := st.Settings.IsStrategyEnabled(ctx, models.PluginName)
		if err != nil || enabled {
			t.Errorf("IsStrategyEnabled = %v, %v; want false", enabled, err)
		}
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		actor := primitive.NewObjectID()
		s := models.PluginSettings{
			Enabled:       true,
			DefaultEnrol:  false,
			DefaultStatus: models.InstanceEnabled,
			DefaultRole:   "teacher",
			UpdatedByID:   &actor,
			UpdatedByName: "Admin",
		}
		if err := st.Settings.Save(ctx, models.PluginName, s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		s.DefaultRole = "student"
		if err := st.Settings.Save(ctx, models.PluginName, s); err != nil {
			t.Fatalf("second Save failed: %v", err)
		}

		got, err := st.Settings.Get(ctx, models.PluginName)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !got.Enabled || got.DefaultEnrol || got.DefaultStatus != models.InstanceEnabled || got.DefaultRole != "student" {
			t.Errorf("Get() = %+v", got)
		}
		if got.UpdatedAt == nil {
			t.Error("expected UpdatedAt to be set")
		}
		if got.UpdatedByID == nil || *got.UpdatedByID != actor {
			t.Errorf("UpdatedByID = %v, want %s", got.UpdatedByID, actor.Hex())
		}
		enabled, err := st.Settings.IsStrategyEnabled(ctx, models.PluginName)
		if err != nil || !enabled {
			t.Errorf("IsStrategyEnabled = %v, %v; want true", enabled, err)
		}
	})
}

func auditTests(t *testing.T, newStores Factory) {
	t.Run("LogAndQuery", func(t *testing.T) {
		st := newStores(t)
		ctx, cancel := testContext()
		defer cancel()

		courseID := primitive.NewObjectID()
		userID := primitive.NewObjectID()
		base := time.Now().UTC().Truncate(time.Millisecond)

		events := []audit.Event{
			{Timestamp: base.Add(-2 * time.Minute), Category: audit.CategoryAdmin, EventType: audit.EventInstanceCreated, CourseID: &courseID, Success: true},
			{Timestamp: base.Add(-1 * time.Minute), Category: audit.CategoryEnrol, EventType: audit.EventUserAutoEnrolled, CourseID: &courseID, UserID: &userID, Success: true, Details: map[string]string{"role": "student"}},
			{Timestamp: base, Category: audit.CategoryAdmin, EventType: audit.EventSettingsUpdated, Success: true},
		}
		for _, ev := range events {
			if err := st.Audit.Log(ctx, ev); err != nil {
				t.Fatalf("Log failed: %v", err)
			}
		}

		byCourse, err := st.Audit.Query(ctx, audit.QueryFilter{CourseID: &courseID})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(byCourse) != 2 {
			t.Fatalf("Query(course) returned %d, want 2", len(byCourse))
		}
		if byCourse[0].EventType != audit.EventUserAutoEnrolled {
			t.Errorf("expected newest first, got %q", byCourse[0].EventType)
		}
		if byCourse[0].Details["role"] != "student" {
			t.Errorf("Details = %v", byCourse[0].Details)
		}

		byUser, err := st.Audit.Query(ctx, audit.QueryFilter{UserID: &userID, Category: audit.CategoryEnrol})
		if err != nil || len(byUser) != 1 {
			t.Errorf("Query(user) = %d, %v; want 1", len(byUser), err)
		}

		start := base.Add(-90 * time.Second)
		recent, err := st.Audit.Query(ctx, audit.QueryFilter{StartTime: &start})
		if err != nil || len(recent) != 2 {
			t.Errorf("Query(start) = %d, %v; want 2", len(recent), err)
		}

		limited, err := st.Audit.Query(ctx, audit.QueryFilter{Limit: 1, Offset: 1})
		if err != nil || len(limited) != 1 || limited[0].EventType != audit.EventUserAutoEnrolled {
			t.Errorf("Query(limit/offset) = %v, %v", limited, err)
		}
	})
}
