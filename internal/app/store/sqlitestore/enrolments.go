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

// EnrolmentStore persists enrolments in the enrolments table.
type EnrolmentStore struct {
	db *sql.DB
}

const enrolmentColumns = `id, instance_id, course_id, user_id, role, status, created_at, updated_at`

func scanEnrolment(row rowScanner) (models.Enrolment, error) {
	var (
		e                                models.Enrolment
		id, instanceID, courseID, userID string
		createdAt, updatedAt             int64
	)
	if err := row.Scan(&id, &instanceID, &courseID, &userID, &e.Role, &e.Status, &createdAt, &updatedAt); err != nil {
		return models.Enrolment{}, err
	}
	var err error
	if e.ID, err = oid(id); err != nil {
		return models.Enrolment{}, err
	}
	if e.InstanceID, err = oid(instanceID); err != nil {
		return models.Enrolment{}, err
	}
	if e.CourseID, err = oid(courseID); err != nil {
		return models.Enrolment{}, err
	}
	if e.UserID, err = oid(userID); err != nil {
		return models.Enrolment{}, err
	}
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return e, nil
}

// Enrol inserts the enrolment unless (instance_id, user_id) already has one.
// ON CONFLICT DO NOTHING lets the first writer win; everyone else reads back
// the stored record unchanged with created=false.
func (s *EnrolmentStore) Enrol(ctx context.Context, e models.Enrolment) (models.Enrolment, bool, error) {
	e.Role = strings.TrimSpace(e.Role)
	if e.Role == "" {
		return models.Enrolment{}, false, storeerr.ErrRoleRequired
	}
	if e.Status == "" {
		e.Status = models.EnrolmentActive
	}
	if !models.ValidEnrolmentStatus(e.Status) {
		return models.Enrolment{}, false, storeerr.ErrInvalidStatus
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = fromMillis(toMillis(e.CreatedAt))
	e.UpdatedAt = e.CreatedAt
	e.ID = primitive.NewObjectID()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO enrolments (`+enrolmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (instance_id, user_id) DO NOTHING`,
		e.ID.Hex(), e.InstanceID.Hex(), e.CourseID.Hex(), e.UserID.Hex(),
		e.Role, e.Status, toMillis(e.CreatedAt), toMillis(e.UpdatedAt),
	)
	if err != nil {
		return models.Enrolment{}, false, fmt.Errorf("insert enrolment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return e, true, nil
	}

	existing, err := s.Get(ctx, e.InstanceID, e.UserID)
	if err != nil {
		return models.Enrolment{}, false, err
	}
	return existing, false, nil
}

// Get returns the enrolment for (instanceID, userID).
func (s *EnrolmentStore) Get(ctx context.Context, instanceID, userID primitive.ObjectID) (models.Enrolment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+enrolmentColumns+` FROM enrolments WHERE instance_id = ? AND user_id = ?`,
		instanceID.Hex(), userID.Hex())
	e, err := scanEnrolment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Enrolment{}, storeerr.ErrNotFound
	}
	if err != nil {
		return models.Enrolment{}, fmt.Errorf("get enrolment: %w", err)
	}
	return e, nil
}

// SetStatus changes the status of an existing enrolment.
func (s *EnrolmentStore) SetStatus(ctx context.Context, instanceID, userID primitive.ObjectID, status string) error {
	if !models.ValidEnrolmentStatus(status) {
		return storeerr.ErrInvalidStatus
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrolments SET status = ?, updated_at = ? WHERE instance_id = ? AND user_id = ?`,
		status, toMillis(time.Now()), instanceID.Hex(), userID.Hex())
	if err != nil {
		return fmt.Errorf("set enrolment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.ErrNotFound
	}
	return nil
}

// Remove deletes the enrolment for (instanceID, userID).
func (s *EnrolmentStore) Remove(ctx context.Context, instanceID, userID primitive.ObjectID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM enrolments WHERE instance_id = ? AND user_id = ?`,
		instanceID.Hex(), userID.Hex())
	if err != nil {
		return fmt.Errorf("remove enrolment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.ErrNotFound
	}
	return nil
}

// DeleteByInstance removes all enrolments for an instance.
func (s *EnrolmentStore) DeleteByInstance(ctx context.Context, instanceID primitive.ObjectID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM enrolments WHERE instance_id = ?`, instanceID.Hex())
	if err != nil {
		return 0, fmt.Errorf("delete enrolments: %w", err)
	}
	return res.RowsAffected()
}

// CountByInstance counts enrolments for an instance, optionally filtered by status.
func (s *EnrolmentStore) CountByInstance(ctx context.Context, instanceID primitive.ObjectID, status string) (int64, error) {
	query := `SELECT COUNT(*) FROM enrolments WHERE instance_id = ?`
	args := []any{instanceID.Hex()}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count enrolments: %w", err)
	}
	return n, nil
}

// ListByInstance returns all enrolments for an instance in creation order.
func (s *EnrolmentStore) ListByInstance(ctx context.Context, instanceID primitive.ObjectID) ([]models.Enrolment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+enrolmentColumns+` FROM enrolments WHERE instance_id = ? ORDER BY created_at, id`,
		instanceID.Hex())
	if err != nil {
		return nil, fmt.Errorf("list enrolments: %w", err)
	}
	defer rows.Close()

	var out []models.Enrolment
	for rows.Next() {
		e, err := scanEnrolment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrolment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
