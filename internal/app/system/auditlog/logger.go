// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/autoenrol/internal/app/store/audit"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destination settings for each category.
const (
	All = "all" // store + zap
	DB  = "db"  // store only
	Log = "log" // zap only
	Off = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Admin controls logging for instance, enrolment and settings changes.
	Admin string
	// Enrol controls logging for automatic enrolments on course view.
	Enrol string
}

// Store is where audit events are persisted.
type Store interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It logs to the audit store and to structured logs (via zap).
type Logger struct {
	store  Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request metadata                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// RequestMeta is the request context copied onto every event logged while
// serving that request.
type RequestMeta struct {
	IP        string
	UserAgent string
	RequestID string
}

type metaKey struct{}

// RequestIDHeader is read from the caller and echoed in responses.
const RequestIDHeader = "X-Request-ID"

// Middleware attaches RequestMeta to the request context. A request id is
// generated when the caller did not send one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, reqID)
		meta := RequestMeta{
			IP:        getClientIP(r),
			UserAgent: r.UserAgent(),
			RequestID: reqID,
		}
		next.ServeHTTP(w, r.WithContext(WithMeta(r.Context(), meta)))
	})
}

// WithMeta returns ctx carrying meta.
func WithMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// MetaFrom returns the RequestMeta in ctx, if any.
func MetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(metaKey{}).(RequestMeta)
	return meta
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

/*─────────────────────────────────────────────────────────────────────────────*
| Core                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.CourseID != nil {
		fields = append(fields, zap.String("course_id", event.CourseID.Hex()))
	}
	if event.InstanceID != nil {
		fields = append(fields, zap.String("instance_id", event.InstanceID.Hex()))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAdmin:
		setting = l.config.Admin
	case audit.CategoryEnrol:
		setting = l.config.Enrol
	default:
		setting = All
	}
	if setting == Off {
		return
	}

	meta := MetaFrom(ctx)
	if event.IP == "" {
		event.IP = meta.IP
	}
	if event.UserAgent == "" {
		event.UserAgent = meta.UserAgent
	}
	if event.RequestID == "" {
		event.RequestID = meta.RequestID
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}

	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Enrol Events ---

// UserAutoEnrolled logs an enrolment created by a course view.
func (l *Logger) UserAutoEnrolled(ctx context.Context, userID, courseID, instanceID primitive.ObjectID, role string) {
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryEnrol,
		EventType:  audit.EventUserAutoEnrolled,
		CourseID:   &courseID,
		InstanceID: &instanceID,
		UserID:     &userID,
		Success:    true,
		Details:    map[string]string{"role": role},
	})
}

// --- Admin Events ---

func (l *Logger) instanceEvent(ctx context.Context, eventType string, actorID primitive.ObjectID, courseID, instanceID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryAdmin,
		EventType:  eventType,
		CourseID:   &courseID,
		InstanceID: &instanceID,
		ActorID:    actorPtr(actorID),
		Success:    true,
		Details:    details,
	})
}

// InstanceCreated logs a new enrolment instance.
func (l *Logger) InstanceCreated(ctx context.Context, actorID, courseID, instanceID primitive.ObjectID, status, role string) {
	l.instanceEvent(ctx, audit.EventInstanceCreated, actorID, courseID, instanceID, map[string]string{
		"status": status,
		"role":   role,
	})
}

// InstanceUpdated logs an edit of an instance's role, name or end date.
func (l *Logger) InstanceUpdated(ctx context.Context, actorID, courseID, instanceID primitive.ObjectID, fieldsChanged string) {
	l.instanceEvent(ctx, audit.EventInstanceUpdated, actorID, courseID, instanceID, map[string]string{
		"fields_changed": fieldsChanged,
	})
}

// InstanceStatusChanged logs hide/show of an instance.
func (l *Logger) InstanceStatusChanged(ctx context.Context, actorID, courseID, instanceID primitive.ObjectID, enabled bool) {
	eventType := audit.EventInstanceDisabled
	if enabled {
		eventType = audit.EventInstanceEnabled
	}
	l.instanceEvent(ctx, eventType, actorID, courseID, instanceID, nil)
}

// InstanceDeleted logs deletion of an instance and how many enrolments went with it.
func (l *Logger) InstanceDeleted(ctx context.Context, actorID, courseID, instanceID primitive.ObjectID, enrolmentsRemoved int64) {
	l.instanceEvent(ctx, audit.EventInstanceDeleted, actorID, courseID, instanceID, map[string]string{
		"enrolments_removed": int64ToString(enrolmentsRemoved),
	})
}

// EnrolmentStatusChanged logs an edit of a user's enrolment status.
func (l *Logger) EnrolmentStatusChanged(ctx context.Context, actorID, userID, courseID, instanceID primitive.ObjectID, status string) {
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryAdmin,
		EventType:  audit.EventEnrolmentStatusChanged,
		CourseID:   &courseID,
		InstanceID: &instanceID,
		UserID:     &userID,
		ActorID:    actorPtr(actorID),
		Success:    true,
		Details:    map[string]string{"status": status},
	})
}

// UserUnenrolled logs removal of a user's enrolment.
func (l *Logger) UserUnenrolled(ctx context.Context, actorID, userID, courseID, instanceID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryAdmin,
		EventType:  audit.EventUserUnenrolled,
		CourseID:   &courseID,
		InstanceID: &instanceID,
		UserID:     &userID,
		ActorID:    actorPtr(actorID),
		Success:    true,
	})
}

// SettingsUpdated logs a change of the site-level plugin settings.
func (l *Logger) SettingsUpdated(ctx context.Context, actorID primitive.ObjectID, enabled bool, defaultStatus, defaultRole string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventSettingsUpdated,
		ActorID:   actorPtr(actorID),
		Success:   true,
		Details: map[string]string{
			"enabled":        boolToString(enabled),
			"default_status": defaultStatus,
			"default_role":   defaultRole,
		},
	})
}

// CourseRestored logs a snapshot restore into a course.
func (l *Logger) CourseRestored(ctx context.Context, actorID, courseID, instanceID primitive.ObjectID, target string, merged bool, enrolled int) {
	l.instanceEvent(ctx, audit.EventCourseRestored, actorID, courseID, instanceID, map[string]string{
		"target":   target,
		"merged":   boolToString(merged),
		"enrolled": int64ToString(int64(enrolled)),
	})
}

// --- Helper functions ---

// actorPtr returns nil for system actions, which have no actor id.
func actorPtr(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func int64ToString(i int64) string {
	return strconv.FormatInt(i, 10)
}
