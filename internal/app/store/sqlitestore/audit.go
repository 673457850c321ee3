package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditStore persists audit events in the audit_events table.
type AuditStore struct {
	db *sql.DB
}

const auditColumns = `id, timestamp, category, event_type, course_id, instance_id, user_id, actor_id,
	ip, user_agent, request_id, success, failure_reason, details`

// Log records an audit event. Details are stored as a JSON object.
func (s *AuditStore) Log(ctx context.Context, event audit.Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	details := ""
	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = string(raw)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (`+auditColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID.Hex(), toMillis(event.Timestamp), event.Category, event.EventType,
		nullID(event.CourseID), nullID(event.InstanceID), nullID(event.UserID), nullID(event.ActorID),
		event.IP, event.UserAgent, event.RequestID, boolInt(event.Success), event.FailureReason, details,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query retrieves audit events matching the filter, newest first.
func (s *AuditStore) Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.CourseID != nil {
		where = append(where, "course_id = ?")
		args = append(args, filter.CourseID.Hex())
	}
	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID.Hex())
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.StartTime != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, toMillis(*filter.StartTime))
	}
	if filter.EndTime != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, toMillis(*filter.EndTime))
	}

	query := `SELECT ` + auditColumns + ` FROM audit_events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = audit.DefaultLimit
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		ev, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanAuditEvent(row rowScanner) (audit.Event, error) {
	var (
		ev                                  audit.Event
		id, details                         string
		ts                                  int64
		success                             int
		courseID, instanceID, userID, actor sql.NullString
	)
	if err := row.Scan(&id, &ts, &ev.Category, &ev.EventType, &courseID, &instanceID, &userID, &actor,
		&ev.IP, &ev.UserAgent, &ev.RequestID, &success, &ev.FailureReason, &details); err != nil {
		return audit.Event{}, fmt.Errorf("scan audit event: %w", err)
	}
	var err error
	if ev.ID, err = oid(id); err != nil {
		return audit.Event{}, err
	}
	for _, f := range []struct {
		src sql.NullString
		dst **primitive.ObjectID
	}{
		{courseID, &ev.CourseID},
		{instanceID, &ev.InstanceID},
		{userID, &ev.UserID},
		{actor, &ev.ActorID},
	} {
		if *f.dst, err = idPtr(f.src); err != nil {
			return audit.Event{}, err
		}
	}
	ev.Timestamp = fromMillis(ts)
	ev.Success = success != 0
	if details != "" {
		if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
			return audit.Event{}, fmt.Errorf("decode audit details: %w", err)
		}
	}
	return ev, nil
}
