// Package portability exports a course's auto enrolment instance with its
// enrolments as a JSON snapshot and restores such a snapshot into a course.
package portability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/policy/enrolpolicy"
	"github.com/dalemusser/autoenrol/internal/app/store/storeerr"
	"github.com/dalemusser/autoenrol/internal/app/system/auditlog"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/app/system/capabilities"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SchemaVersion is the only snapshot version this package reads and writes.
const SchemaVersion = 1

// Restore targets.
const (
	// TargetNewCourse creates a fresh instance and re-enrols every user with
	// their recorded status.
	TargetNewCourse = "new_course"
	// TargetExisting merges into the course's instance when its role matches
	// and only re-assigns roles.
	TargetExisting = "existing"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported snapshot schema version")
	ErrInvalidTarget      = errors.New("invalid restore target")
	ErrInvalidSnapshot    = errors.New("invalid snapshot")
)

// Snapshot is the exported form of one course's auto enrolment state.
type Snapshot struct {
	SchemaVersion int                 `json:"schema_version"`
	CourseID      primitive.ObjectID  `json:"course_id"`
	ExportedAt    time.Time           `json:"exported_at"`
	Instance      InstanceSnapshot    `json:"instance"`
	Enrolments    []EnrolmentSnapshot `json:"enrolments"`
}

// InstanceSnapshot carries the instance settings, without identity.
type InstanceSnapshot struct {
	Name    string     `json:"name,omitempty"`
	Status  string     `json:"status"`
	Role    string     `json:"role"`
	EndDate *time.Time `json:"end_date,omitempty"`
}

// EnrolmentSnapshot carries one user's enrolment.
type EnrolmentSnapshot struct {
	UserID    primitive.ObjectID `json:"user_id"`
	Role      string             `json:"role"`
	Status    string             `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// RestoreResult reports what a restore did.
type RestoreResult struct {
	InstanceID    primitive.ObjectID `json:"instance_id"`
	Merged        bool               `json:"merged"`
	Enrolled      int                `json:"enrolled"`
	RolesAssigned int                `json:"roles_assigned"`
}

// Service exports and restores snapshots.
type Service struct {
	instances  autoenrol.InstanceStore
	enrolments autoenrol.EnrolmentStore
	roles      autoenrol.RoleAssigner
	audit      *auditlog.Logger
	log        *zap.Logger
	now        func() time.Time
}

// New wires a Service to a storage backend.
func New(st autoenrol.Stores, audit *auditlog.Logger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		instances:  st.Instances,
		enrolments: st.Enrolments,
		roles:      st.Roles,
		audit:      audit,
		log:        logger,
		now:        time.Now,
	}
}

// Export builds a snapshot of the course's instance and enrolments.
func (s *Service) Export(ctx context.Context, actor autoenrol.Actor, courseID primitive.ObjectID) (Snapshot, error) {
	if !enrolpolicy.CanExport(actor) {
		return Snapshot{}, autoenrol.ErrForbidden
	}
	inst, err := s.instances.GetForCourse(ctx, courseID)
	if err != nil {
		return Snapshot{}, err
	}
	enrolments, err := s.enrolments.ListByInstance(ctx, inst.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list enrolments: %w", err)
	}

	snap := Snapshot{
		SchemaVersion: SchemaVersion,
		CourseID:      courseID,
		ExportedAt:    s.now().UTC(),
		Instance: InstanceSnapshot{
			Name:    inst.Name,
			Status:  inst.Status,
			Role:    inst.Role,
			EndDate: inst.EndDate,
		},
		Enrolments: make([]EnrolmentSnapshot, 0, len(enrolments)),
	}
	for _, e := range enrolments {
		snap.Enrolments = append(snap.Enrolments, EnrolmentSnapshot{
			UserID:    e.UserID,
			Role:      e.Role,
			Status:    e.Status,
			CreatedAt: e.CreatedAt,
		})
	}
	return snap, nil
}

// Restore applies snap to targetCourseID.
//
// For TargetNewCourse a new instance is created from the snapshot settings and
// every user is enrolled with their recorded status and role. For
// TargetExisting the course's instance is reused when its role matches the
// snapshot's (otherwise one is created) and only role assignments are
// restored. A course holds one instance, so an existing instance with a
// different role fails with storeerr.ErrDuplicateInstance.
func (s *Service) Restore(ctx context.Context, actor autoenrol.Actor, snap Snapshot, targetCourseID primitive.ObjectID, target string) (RestoreResult, error) {
	if !enrolpolicy.CanRestore(actor) {
		return RestoreResult{}, autoenrol.ErrForbidden
	}
	snap = normalizeRoles(snap)
	if err := Validate(snap); err != nil {
		return RestoreResult{}, err
	}
	if target != TargetNewCourse && target != TargetExisting {
		return RestoreResult{}, ErrInvalidTarget
	}

	var res RestoreResult
	inst, merged, err := s.resolveInstance(ctx, snap, targetCourseID, target)
	if err != nil {
		return RestoreResult{}, err
	}
	res.InstanceID = inst.ID
	res.Merged = merged

	for _, e := range snap.Enrolments {
		role := e.Role
		if role == "" {
			role = inst.Role
		}
		if target == TargetNewCourse {
			_, created, err := s.enrolments.Enrol(ctx, models.Enrolment{
				InstanceID: inst.ID,
				CourseID:   targetCourseID,
				UserID:     e.UserID,
				Role:       role,
				Status:     e.Status,
				CreatedAt:  e.CreatedAt,
			})
			if err != nil {
				return res, fmt.Errorf("restore enrolment for %s: %w", e.UserID.Hex(), err)
			}
			if created {
				res.Enrolled++
			}
		}
		if err := s.roles.Assign(ctx, models.RoleAssignment{
			UserID:    e.UserID,
			CourseID:  targetCourseID,
			Role:      role,
			Component: models.Component,
			ItemID:    inst.ID,
		}); err != nil {
			return res, fmt.Errorf("restore role for %s: %w", e.UserID.Hex(), err)
		}
		res.RolesAssigned++
	}

	s.audit.CourseRestored(ctx, actor.ID, targetCourseID, inst.ID, target, merged, res.Enrolled)
	s.log.Info("course enrolments restored",
		zap.String("course_id", targetCourseID.Hex()),
		zap.String("instance_id", inst.ID.Hex()),
		zap.String("target", target),
		zap.Bool("merged", merged),
		zap.Int("enrolled", res.Enrolled))
	return res, nil
}

func (s *Service) resolveInstance(ctx context.Context, snap Snapshot, courseID primitive.ObjectID, target string) (models.EnrolInstance, bool, error) {
	if target == TargetExisting {
		existing, err := s.instances.GetForCourse(ctx, courseID)
		switch {
		case err == nil && existing.Role == snap.Instance.Role:
			return existing, true, nil
		case err == nil:
			return models.EnrolInstance{}, false, storeerr.ErrDuplicateInstance
		case !errors.Is(err, storeerr.ErrNotFound):
			return models.EnrolInstance{}, false, err
		}
	}

	inst, err := s.instances.Create(ctx, models.EnrolInstance{
		CourseID: courseID,
		Name:     snap.Instance.Name,
		Status:   snap.Instance.Status,
		Role:     snap.Instance.Role,
		EndDate:  snap.Instance.EndDate,
	})
	if err != nil {
		return models.EnrolInstance{}, false, err
	}
	return inst, false, nil
}

// normalizeRoles lowercases and trims every role in a copy of snap.
func normalizeRoles(snap Snapshot) Snapshot {
	snap.Instance.Role = strings.ToLower(strings.TrimSpace(snap.Instance.Role))
	enrolments := make([]EnrolmentSnapshot, len(snap.Enrolments))
	for i, e := range snap.Enrolments {
		e.Role = strings.ToLower(strings.TrimSpace(e.Role))
		enrolments[i] = e
	}
	snap.Enrolments = enrolments
	return snap
}

// Validate checks a snapshot before it is applied.
func Validate(snap Snapshot) error {
	if snap.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.SchemaVersion)
	}
	if !models.ValidInstanceStatus(snap.Instance.Status) {
		return fmt.Errorf("%w: instance status %q", ErrInvalidSnapshot, snap.Instance.Status)
	}
	if !capabilities.AssignableRole(snap.Instance.Role) {
		return fmt.Errorf("%w: instance role %q", ErrInvalidSnapshot, snap.Instance.Role)
	}
	for i, e := range snap.Enrolments {
		if e.UserID.IsZero() {
			return fmt.Errorf("%w: enrolment %d has no user", ErrInvalidSnapshot, i)
		}
		if !models.ValidEnrolmentStatus(e.Status) {
			return fmt.Errorf("%w: enrolment %d status %q", ErrInvalidSnapshot, i, e.Status)
		}
		if e.Role != "" && !capabilities.AssignableRole(e.Role) {
			return fmt.Errorf("%w: enrolment %d role %q", ErrInvalidSnapshot, i, e.Role)
		}
	}
	return nil
}

// Decode reads a snapshot from r, rejecting unknown fields.
func Decode(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return snap, nil
}

// Encode writes snap to w as indented JSON.
func Encode(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
