// Package autoenrol decides whether a user viewing a course is enrolled
// automatically, and administers the per-course instances that make that
// decision possible.
package autoenrol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/store/storeerr"
	"github.com/dalemusser/autoenrol/internal/app/system/auditlog"
	"github.com/dalemusser/autoenrol/internal/app/system/capabilities"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultRecheckGrace is added to now on success; callers skip further
// attempts for the same user and course until it passes.
const DefaultRecheckGrace = 10 * time.Second

// Engine evaluates course views.
type Engine struct {
	instances  InstanceStore
	enrolments EnrolmentStore
	roles      RoleAssigner
	settings   SettingsStore
	audit      *auditlog.Logger
	log        *zap.Logger
	grace      time.Duration
}

// NewEngine wires an Engine to a storage backend. A non-positive grace uses
// DefaultRecheckGrace.
func NewEngine(st Stores, grace time.Duration, audit *auditlog.Logger, logger *zap.Logger) *Engine {
	if grace <= 0 {
		grace = DefaultRecheckGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		instances:  st.Instances,
		enrolments: st.Enrolments,
		roles:      st.Roles,
		settings:   st.Settings,
		audit:      audit,
		log:        logger,
		grace:      grace,
	}
}

// Grace returns the re-check interval applied on success.
func (e *Engine) Grace() time.Duration { return e.grace }

// AttemptAutoEnrol runs the eligibility checks in a fixed order and stops at
// the first that fails:
//
//  1. the user is not a guest
//  2. the user holds enrol/auto:enrolself in the course
//  3. the strategy is enabled site-wide
//  4. the course has an instance and it is enabled
//  5. the instance has not expired (now > end date)
//
// It then enrols the user if not already enrolled, assigning the instance
// role only when this call created the enrolment. A write that lands after a
// concurrent DeleteInstance is undone and reported as instance_absent.
// Refusals are outcomes; an
// error means storage failed and nothing can be concluded.
func (e *Engine) AttemptAutoEnrol(ctx context.Context, user User, courseID primitive.ObjectID, caps Capabilities, now time.Time) (Outcome, error) {
	if user.Guest {
		return NotEligible(ReasonGuestUser), nil
	}
	if caps == nil || !caps.Has(capabilities.EnrolSelf) {
		return NotEligible(ReasonMissingCapability), nil
	}

	enabled, err := e.settings.IsStrategyEnabled(ctx, models.PluginName)
	if err != nil {
		return Outcome{}, fmt.Errorf("read strategy toggle: %w", err)
	}
	if !enabled {
		return NotEligible(ReasonStrategyDisabled), nil
	}

	inst, err := e.instances.GetForCourse(ctx, courseID)
	if errors.Is(err, storeerr.ErrNotFound) {
		return NotEligible(ReasonInstanceAbsent), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("load instance: %w", err)
	}
	if !inst.Enabled() {
		return NotEligible(ReasonInstanceDisabled), nil
	}
	if inst.ExpiredAt(now) {
		return NotEligible(ReasonInstanceExpired), nil
	}

	enr, created, err := e.enrolments.Enrol(ctx, models.Enrolment{
		InstanceID: inst.ID,
		CourseID:   inst.CourseID,
		UserID:     user.ID,
		Role:       inst.Role,
		Status:     models.EnrolmentActive,
		CreatedAt:  now,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("enrol user: %w", err)
	}

	if !created {
		if !enr.Active() {
			return NotEligible(ReasonEnrolmentSuspended), nil
		}
		return Enrolled(now.Add(e.grace)), nil
	}

	if err := e.roles.Assign(ctx, models.RoleAssignment{
		UserID:    user.ID,
		CourseID:  inst.CourseID,
		Role:      inst.Role,
		Component: models.Component,
		ItemID:    inst.ID,
		CreatedAt: now,
	}); err != nil {
		// A retry would see created=false and skip the role, so undo.
		if rmErr := e.enrolments.Remove(ctx, inst.ID, user.ID); rmErr != nil {
			e.log.Error("failed to roll back enrolment after role assignment error",
				zap.Error(rmErr),
				zap.String("instance_id", inst.ID.Hex()),
				zap.String("user_id", user.ID.Hex()))
		}
		return Outcome{}, fmt.Errorf("assign role: %w", err)
	}

	// DeleteInstance removes the instance before its enrolments, so an
	// instance missing now means this write landed after the cascade.
	_, err = e.instances.GetByID(ctx, inst.ID)
	if errors.Is(err, storeerr.ErrNotFound) {
		e.discard(ctx, inst.ID, user.ID)
		return NotEligible(ReasonInstanceAbsent), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("recheck instance: %w", err)
	}

	e.audit.UserAutoEnrolled(ctx, user.ID, inst.CourseID, inst.ID, inst.Role)
	e.log.Info("user auto-enrolled",
		zap.String("user_id", user.ID.Hex()),
		zap.String("course_id", inst.CourseID.Hex()),
		zap.String("role", inst.Role))

	out := Enrolled(now.Add(e.grace))
	out.Created = true
	return out, nil
}

// discard removes an enrolment and its role assignment written for an
// instance that was deleted concurrently.
func (e *Engine) discard(ctx context.Context, instanceID, userID primitive.ObjectID) {
	if err := e.enrolments.Remove(ctx, instanceID, userID); err != nil && !errors.Is(err, storeerr.ErrNotFound) {
		e.log.Error("failed to remove enrolment for deleted instance",
			zap.Error(err),
			zap.String("instance_id", instanceID.Hex()),
			zap.String("user_id", userID.Hex()))
	}
	if _, err := e.roles.Unassign(ctx, models.Component, instanceID, userID); err != nil {
		e.log.Error("failed to remove role assignment for deleted instance",
			zap.Error(err),
			zap.String("instance_id", instanceID.Hex()),
			zap.String("user_id", userID.Hex()))
	}
	e.log.Info("enrolment discarded, instance deleted concurrently",
		zap.String("instance_id", instanceID.Hex()),
		zap.String("user_id", userID.Hex()))
}
