package autoenrol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/autoenrol/internal/app/policy/enrolpolicy"
	"github.com/dalemusser/autoenrol/internal/app/store/storeerr"
	"github.com/dalemusser/autoenrol/internal/app/system/auditlog"
	"github.com/dalemusser/autoenrol/internal/app/system/capabilities"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Manager errors.
var (
	ErrForbidden   = errors.New("forbidden")
	ErrUnknownRole = errors.New("unknown role")
	ErrNameTooLong = errors.New("instance name too long")
)

// MaxNameLength bounds a custom instance name, in characters.
const MaxNameLength = 255

// InstanceFields are the settings supplied when adding an instance. Empty
// fields fall back to the site defaults.
type InstanceFields struct {
	Name    string
	Status  string
	Role    string
	EndDate *time.Time
}

// Manager performs administrative operations on instances, enrolments and
// site settings. Every method checks the actor's capabilities first.
type Manager struct {
	instances  InstanceStore
	enrolments EnrolmentStore
	roles      RoleAssigner
	settings   SettingsStore
	audit      *auditlog.Logger
	log        *zap.Logger
	sanitizer  *bluemonday.Policy
}

// NewManager wires a Manager to a storage backend.
func NewManager(st Stores, audit *auditlog.Logger, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		instances:  st.Instances,
		enrolments: st.Enrolments,
		roles:      st.Roles,
		settings:   st.Settings,
		audit:      audit,
		log:        logger,
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Instances                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// Instance returns the course's instance whatever its status.
func (m *Manager) Instance(ctx context.Context, actor Actor, courseID primitive.ObjectID) (models.EnrolInstance, error) {
	if !enrolpolicy.AllowManage(actor) {
		return models.EnrolInstance{}, ErrForbidden
	}
	return m.instances.GetForCourse(ctx, courseID)
}

// Instances lists instances, optionally filtered by status.
func (m *Manager) Instances(ctx context.Context, actor Actor, status string) ([]models.EnrolInstance, error) {
	if !enrolpolicy.AllowManage(actor) {
		return nil, ErrForbidden
	}
	return m.instances.List(ctx, status)
}

// AddInstance creates the course's instance. A course holds at most one;
// a second add returns storeerr.ErrDuplicateInstance.
func (m *Manager) AddInstance(ctx context.Context, actor Actor, courseID primitive.ObjectID, fields InstanceFields) (models.EnrolInstance, error) {
	if !enrolpolicy.CanAddInstance(actor) {
		return models.EnrolInstance{}, ErrForbidden
	}
	return m.addInstance(ctx, actor, courseID, fields)
}

// AddDefaultInstance creates the course's instance from the site defaults.
func (m *Manager) AddDefaultInstance(ctx context.Context, actor Actor, courseID primitive.ObjectID) (models.EnrolInstance, error) {
	return m.AddInstance(ctx, actor, courseID, InstanceFields{})
}

// OnCourseCreated adds a default instance to a new course when the site is
// configured to do so. An existing instance is returned unchanged.
func (m *Manager) OnCourseCreated(ctx context.Context, courseID primitive.ObjectID) (models.EnrolInstance, bool, error) {
	st, err := m.settings.Get(ctx, models.PluginName)
	if err != nil {
		return models.EnrolInstance{}, false, fmt.Errorf("load settings: %w", err)
	}
	if !st.DefaultEnrol {
		return models.EnrolInstance{}, false, nil
	}

	inst, err := m.addInstance(ctx, SystemActor(), courseID, InstanceFields{})
	if errors.Is(err, storeerr.ErrDuplicateInstance) {
		existing, getErr := m.instances.GetForCourse(ctx, courseID)
		return existing, false, getErr
	}
	if err != nil {
		return models.EnrolInstance{}, false, err
	}
	return inst, true, nil
}

func (m *Manager) addInstance(ctx context.Context, actor Actor, courseID primitive.ObjectID, fields InstanceFields) (models.EnrolInstance, error) {
	defaults, err := m.settings.Get(ctx, models.PluginName)
	if err != nil {
		return models.EnrolInstance{}, fmt.Errorf("load settings: %w", err)
	}

	name, err := m.cleanName(fields.Name)
	if err != nil {
		return models.EnrolInstance{}, err
	}
	status := fields.Status
	if status == "" {
		status = defaults.DefaultStatus
	}
	if !models.ValidInstanceStatus(status) {
		return models.EnrolInstance{}, storeerr.ErrInvalidStatus
	}
	role := strings.ToLower(strings.TrimSpace(fields.Role))
	if role == "" {
		role = defaults.DefaultRole
	}
	if !capabilities.AssignableRole(role) {
		return models.EnrolInstance{}, ErrUnknownRole
	}

	inst, err := m.instances.Create(ctx, models.EnrolInstance{
		CourseID: courseID,
		Name:     name,
		Status:   status,
		Role:     role,
		EndDate:  fields.EndDate,
	})
	if err != nil {
		return models.EnrolInstance{}, err
	}

	m.audit.InstanceCreated(ctx, actor.ID, courseID, inst.ID, inst.Status, inst.Role)
	m.log.Info("enrol instance created",
		zap.String("course_id", courseID.Hex()),
		zap.String("instance_id", inst.ID.Hex()),
		zap.String("status", inst.Status))
	return inst, nil
}

// UpdateInstance edits an instance's name, role or end date. Changing the
// status through this path also requires the hide/show permission.
func (m *Manager) UpdateInstance(ctx context.Context, actor Actor, id primitive.ObjectID, upd models.InstanceUpdate) (models.EnrolInstance, error) {
	if !enrolpolicy.AllowManage(actor) {
		return models.EnrolInstance{}, ErrForbidden
	}
	if upd.Status != nil && !enrolpolicy.CanHideShow(actor) {
		return models.EnrolInstance{}, ErrForbidden
	}

	var changed []string
	if upd.Name != nil {
		name, err := m.cleanName(*upd.Name)
		if err != nil {
			return models.EnrolInstance{}, err
		}
		upd.Name = &name
		changed = append(changed, "name")
	}
	if upd.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*upd.Role))
		if !capabilities.AssignableRole(role) {
			return models.EnrolInstance{}, ErrUnknownRole
		}
		upd.Role = &role
		changed = append(changed, "role")
	}
	if upd.Status != nil {
		changed = append(changed, "status")
	}
	if upd.EndDate != nil || upd.ClearEndDate {
		changed = append(changed, "end_date")
	}

	inst, err := m.instances.Update(ctx, id, upd)
	if err != nil {
		return models.EnrolInstance{}, err
	}
	if len(changed) > 0 {
		m.audit.InstanceUpdated(ctx, actor.ID, inst.CourseID, inst.ID, strings.Join(changed, ","))
	}
	return inst, nil
}

// SetStatus enables or disables an instance. Disabling never removes
// existing enrolments; it only stops new ones.
func (m *Manager) SetStatus(ctx context.Context, actor Actor, id primitive.ObjectID, status string) (models.EnrolInstance, error) {
	if !enrolpolicy.CanHideShow(actor) {
		return models.EnrolInstance{}, ErrForbidden
	}
	if !models.ValidInstanceStatus(status) {
		return models.EnrolInstance{}, storeerr.ErrInvalidStatus
	}
	inst, err := m.instances.Update(ctx, id, models.InstanceUpdate{Status: &status})
	if err != nil {
		return models.EnrolInstance{}, err
	}
	m.audit.InstanceStatusChanged(ctx, actor.ID, inst.CourseID, inst.ID, inst.Enabled())
	return inst, nil
}

// DeleteInstance removes an instance with its enrolments and the roles it
// granted.
func (m *Manager) DeleteInstance(ctx context.Context, actor Actor, id primitive.ObjectID) error {
	if !enrolpolicy.CanDelete(actor) {
		return ErrForbidden
	}
	inst, err := m.instances.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// The instance goes first so no new enrolment can be written for it
	// once the cascade has run.
	if err := m.instances.Delete(ctx, id); err != nil {
		return err
	}
	removed, err := m.enrolments.DeleteByInstance(ctx, id)
	if err != nil {
		return fmt.Errorf("delete enrolments: %w", err)
	}
	if _, err := m.roles.DeleteByItem(ctx, models.Component, id); err != nil {
		return fmt.Errorf("delete role assignments: %w", err)
	}

	m.audit.InstanceDeleted(ctx, actor.ID, inst.CourseID, inst.ID, removed)
	m.log.Info("enrol instance deleted",
		zap.String("course_id", inst.CourseID.Hex()),
		zap.String("instance_id", inst.ID.Hex()),
		zap.Int64("enrolments_removed", removed))
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Enrolments                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// Enrolments lists an instance's enrolments.
func (m *Manager) Enrolments(ctx context.Context, actor Actor, instanceID primitive.ObjectID) ([]models.Enrolment, error) {
	if !enrolpolicy.AllowManage(actor) {
		return nil, ErrForbidden
	}
	if _, err := m.instances.GetByID(ctx, instanceID); err != nil {
		return nil, err
	}
	return m.enrolments.ListByInstance(ctx, instanceID)
}

// SetEnrolmentStatus activates or suspends a user's enrolment.
func (m *Manager) SetEnrolmentStatus(ctx context.Context, actor Actor, instanceID, userID primitive.ObjectID, status string) error {
	if !enrolpolicy.AllowManage(actor) {
		return ErrForbidden
	}
	inst, err := m.instances.GetByID(ctx, instanceID)
	if err != nil {
		return err
	}
	if err := m.enrolments.SetStatus(ctx, instanceID, userID, status); err != nil {
		return err
	}
	m.audit.EnrolmentStatusChanged(ctx, actor.ID, userID, inst.CourseID, inst.ID, status)
	return nil
}

// Unenrol removes a user's enrolment and the roles this instance granted them.
func (m *Manager) Unenrol(ctx context.Context, actor Actor, instanceID, userID primitive.ObjectID) error {
	if !enrolpolicy.AllowUnenrol(actor) {
		return ErrForbidden
	}
	inst, err := m.instances.GetByID(ctx, instanceID)
	if err != nil {
		return err
	}
	if err := m.enrolments.Remove(ctx, instanceID, userID); err != nil {
		return err
	}
	if _, err := m.roles.Unassign(ctx, models.Component, instanceID, userID); err != nil {
		return fmt.Errorf("unassign role: %w", err)
	}
	m.audit.UserUnenrolled(ctx, actor.ID, userID, inst.CourseID, inst.ID)
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Site settings                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// Settings returns the site-level plugin settings.
func (m *Manager) Settings(ctx context.Context, actor Actor) (models.PluginSettings, error) {
	if !enrolpolicy.CanConfigure(actor) {
		return models.PluginSettings{}, ErrForbidden
	}
	return m.settings.Get(ctx, models.PluginName)
}

// SaveSettings validates and stores the site-level plugin settings.
func (m *Manager) SaveSettings(ctx context.Context, actor Actor, st models.PluginSettings) (models.PluginSettings, error) {
	if !enrolpolicy.CanConfigure(actor) {
		return models.PluginSettings{}, ErrForbidden
	}
	if !models.ValidInstanceStatus(st.DefaultStatus) {
		return models.PluginSettings{}, storeerr.ErrInvalidStatus
	}
	st.DefaultRole = strings.ToLower(strings.TrimSpace(st.DefaultRole))
	if !capabilities.AssignableRole(st.DefaultRole) {
		return models.PluginSettings{}, ErrUnknownRole
	}

	st.Plugin = models.PluginName
	if !actor.ID.IsZero() {
		id := actor.ID
		st.UpdatedByID = &id
	}
	st.UpdatedByName = actor.Name
	if err := m.settings.Save(ctx, models.PluginName, st); err != nil {
		return models.PluginSettings{}, err
	}

	m.audit.SettingsUpdated(ctx, actor.ID, st.Enabled, st.DefaultStatus, st.DefaultRole)
	return m.settings.Get(ctx, models.PluginName)
}

// cleanName strips markup from a custom instance name.
func (m *Manager) cleanName(name string) (string, error) {
	name = strings.TrimSpace(m.sanitizer.Sanitize(name))
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}
