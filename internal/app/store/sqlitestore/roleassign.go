package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/store/storeerr"
	"github.com/dalemusser/autoenrol/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoleAssignStore persists role assignments in the role_assignments table.
type RoleAssignStore struct {
	db *sql.DB
}

// Assign records the role assignment; repeating it is a no-op.
func (s *RoleAssignStore) Assign(ctx context.Context, a models.RoleAssignment) error {
	if a.Role == "" {
		return storeerr.ErrRoleRequired
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO role_assignments (id, user_id, course_id, role, component, item_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, course_id, role, component, item_id) DO NOTHING`,
		primitive.NewObjectID().Hex(), a.UserID.Hex(), a.CourseID.Hex(), a.Role,
		a.Component, a.ItemID.Hex(), toMillis(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// Unassign removes every role a component item granted to the user.
func (s *RoleAssignStore) Unassign(ctx context.Context, component string, itemID, userID primitive.ObjectID) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM role_assignments WHERE component = ? AND item_id = ? AND user_id = ?`,
		component, itemID.Hex(), userID.Hex())
	if err != nil {
		return 0, fmt.Errorf("unassign role: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByItem removes all role assignments granted through a component item.
func (s *RoleAssignStore) DeleteByItem(ctx context.Context, component string, itemID primitive.ObjectID) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM role_assignments WHERE component = ? AND item_id = ?`,
		component, itemID.Hex())
	if err != nil {
		return 0, fmt.Errorf("delete role assignments: %w", err)
	}
	return res.RowsAffected()
}

// ListForUser returns the user's role assignments in a course.
func (s *RoleAssignStore) ListForUser(ctx context.Context, userID, courseID primitive.ObjectID) ([]models.RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, component, item_id, created_at FROM role_assignments
		 WHERE user_id = ? AND course_id = ? ORDER BY created_at, id`,
		userID.Hex(), courseID.Hex())
	if err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	defer rows.Close()

	var out []models.RoleAssignment
	for rows.Next() {
		var (
			id, itemID string
			createdAt  int64
		)
		a := models.RoleAssignment{UserID: userID, CourseID: courseID}
		if err := rows.Scan(&id, &a.Role, &a.Component, &itemID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan role assignment: %w", err)
		}
		if a.ID, err = oid(id); err != nil {
			return nil, err
		}
		if a.ItemID, err = oid(itemID); err != nil {
			return nil, err
		}
		a.CreatedAt = fromMillis(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}
