package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"sarvin_back_end/internal/models"
)

// Schema creates the audit table. EnsureSchema applies it at startup.
const Schema = `CREATE TABLE IF NOT EXISTS audit_logs (
	id timeuuid PRIMARY KEY,
	user_id text,
	user_email text,
	action text,
	resource text,
	resource_id text,
	old_value text,
	new_value text,
	success boolean,
	error_msg text,
	timestamp timestamp
)`

const insertAudit = `INSERT INTO audit_logs (
	id, user_id, user_email, action, resource, resource_id,
	old_value, new_value, success, error_msg, timestamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Session is the slice of *gocql.Session the recorder uses.
type Session interface {
	Query(stmt string, values ...interface{}) *gocql.Query
}

// ScyllaRecorder appends admin and checkout actions to the audit_logs table.
type ScyllaRecorder struct {
	exec func(ctx context.Context, stmt string, values ...interface{}) error
}

func NewScyllaRecorder(session Session) *ScyllaRecorder {
	return &ScyllaRecorder{
		exec: func(ctx context.Context, stmt string, values ...interface{}) error {
			return session.Query(stmt, values...).WithContext(ctx).Exec()
		},
	}
}

// EnsureSchema creates audit_logs in the session keyspace when it is missing.
func (r *ScyllaRecorder) EnsureSchema(ctx context.Context) error {
	if err := r.exec(ctx, Schema); err != nil {
		return fmt.Errorf("create audit_logs table: %w", err)
	}
	return nil
}

func (r *ScyllaRecorder) Record(ctx context.Context, entry models.AuditLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	err := r.exec(ctx, insertAudit,
		gocql.UUIDFromTime(entry.Timestamp),
		entry.UserID, entry.UserEmail, entry.Action, entry.Resource, entry.ResourceID,
		entry.OldValue, entry.NewValue, entry.Success, entry.ErrorMsg, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// LogRecorder writes audit entries to the structured log. Used when no
// Scylla cluster is configured.
type LogRecorder struct {
	log *zap.Logger
}

func NewLogRecorder(log *zap.Logger) *LogRecorder {
	return &LogRecorder{log: log}
}

func (r *LogRecorder) Record(_ context.Context, entry models.AuditLog) error {
	r.log.Info("audit",
		zap.String("user_id", entry.UserID),
		zap.String("action", entry.Action),
		zap.String("resource", entry.Resource),
		zap.String("resource_id", entry.ResourceID),
		zap.String("old_value", entry.OldValue),
		zap.String("new_value", entry.NewValue),
		zap.Bool("success", entry.Success),
		zap.Time("timestamp", entry.Timestamp))
	return nil
}
