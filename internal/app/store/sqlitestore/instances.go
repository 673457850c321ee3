package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/store/storeerr"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InstanceStore persists auto enrolment instances in the enrol_instances table.
type InstanceStore struct {
	db *sql.DB
}

const instanceColumns = `id, course_id, name, status, role, end_date, created_at, updated_at`

func scanInstance(row rowScanner) (models.EnrolInstance, error) {
	var (
		id, courseID         string
		inst                 models.EnrolInstance
		endDate              sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &courseID, &inst.Name, &inst.Status, &inst.Role, &endDate, &createdAt, &updatedAt); err != nil {
		return models.EnrolInstance{}, err
	}
	var err error
	if inst.ID, err = oid(id); err != nil {
		return models.EnrolInstance{}, err
	}
	if inst.CourseID, err = oid(courseID); err != nil {
		return models.EnrolInstance{}, err
	}
	inst.EndDate = timePtr(endDate)
	inst.CreatedAt = fromMillis(createdAt)
	inst.UpdatedAt = fromMillis(updatedAt)
	return inst, nil
}

func (s *InstanceStore) getOne(ctx context.Context, where string, args ...any) (models.EnrolInstance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM enrol_instances WHERE `+where, args...)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EnrolInstance{}, storeerr.ErrNotFound
	}
	if err != nil {
		return models.EnrolInstance{}, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

func (s *InstanceStore) GetByID(ctx context.Context, id primitive.ObjectID) (models.EnrolInstance, error) {
	return s.getOne(ctx, `id = ?`, id.Hex())
}

// GetForCourse returns the course's instance whatever its status.
func (s *InstanceStore) GetForCourse(ctx context.Context, courseID primitive.ObjectID) (models.EnrolInstance, error) {
	return s.getOne(ctx, `course_id = ?`, courseID.Hex())
}

// GetEnabledForCourse returns the course's instance only if it is enabled.
func (s *InstanceStore) GetEnabledForCourse(ctx context.Context, courseID primitive.ObjectID) (models.EnrolInstance, error) {
	return s.getOne(ctx, `course_id = ? AND status = ?`, courseID.Hex(), models.InstanceEnabled)
}

// Create inserts a new instance. Status defaults to disabled.
func (s *InstanceStore) Create(ctx context.Context, inst models.EnrolInstance) (models.EnrolInstance, error) {
	if inst.Status == "" {
		inst.Status = models.InstanceDisabled
	}
	if !models.ValidInstanceStatus(inst.Status) {
		return models.EnrolInstance{}, storeerr.ErrInvalidStatus
	}
	inst.Role = strings.TrimSpace(inst.Role)
	if inst.Role == "" {
		return models.EnrolInstance{}, storeerr.ErrRoleRequired
	}

	now := fromMillis(toMillis(time.Now()))
	inst.ID = primitive.NewObjectID()
	inst.Name = strings.TrimSpace(inst.Name)
	if inst.EndDate != nil {
		end := fromMillis(toMillis(models.EndDateAt(*inst.EndDate)))
		inst.EndDate = &end
	}
	inst.CreatedAt = now
	inst.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrol_instances (`+instanceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID.Hex(), inst.CourseID.Hex(), inst.Name, inst.Status, inst.Role,
		nullMillis(inst.EndDate), toMillis(inst.CreatedAt), toMillis(inst.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.EnrolInstance{}, storeerr.ErrDuplicateInstance
		}
		return models.EnrolInstance{}, fmt.Errorf("create instance: %w", err)
	}
	return inst, nil
}

// Update applies a partial update and returns the updated instance.
func (s *InstanceStore) Update(ctx context.Context, id primitive.ObjectID, upd models.InstanceUpdate) (models.EnrolInstance, error) {
	sets := []string{"updated_at = ?"}
	args := []any{toMillis(time.Now())}

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*upd.Name))
	}
	if upd.Status != nil {
		if !models.ValidInstanceStatus(*upd.Status) {
			return models.EnrolInstance{}, storeerr.ErrInvalidStatus
		}
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.Role != nil {
		role := strings.TrimSpace(*upd.Role)
		if role == "" {
			return models.EnrolInstance{}, storeerr.ErrRoleRequired
		}
		sets = append(sets, "role = ?")
		args = append(args, role)
	}
	if upd.ClearEndDate {
		sets = append(sets, "end_date = NULL")
	} else if upd.EndDate != nil {
		sets = append(sets, "end_date = ?")
		args = append(args, toMillis(models.EndDateAt(*upd.EndDate)))
	}
	args = append(args, id.Hex())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.EnrolInstance{}, fmt.Errorf("begin update instance: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE enrol_instances SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return models.EnrolInstance{}, fmt.Errorf("update instance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.EnrolInstance{}, storeerr.ErrNotFound
	}

	inst, err := scanInstance(tx.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM enrol_instances WHERE id = ?`, id.Hex()))
	if err != nil {
		return models.EnrolInstance{}, fmt.Errorf("reload instance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.EnrolInstance{}, fmt.Errorf("commit update instance: %w", err)
	}
	return inst, nil
}

// Delete removes an instance by ID. Enrolments are removed by the caller.
func (s *InstanceStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM enrol_instances WHERE id = ?`, id.Hex())
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.ErrNotFound
	}
	return nil
}

// List returns instances ordered by creation time, optionally filtered by status.
func (s *InstanceStore) List(ctx context.Context, status string) ([]models.EnrolInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM enrol_instances`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var out []models.EnrolInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}
