package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DBLogger persists audit events to the primary database. The schema is
// kept portable so behavior tests can run against in-memory SQLite.
type DBLogger struct {
	db  *sql.DB
	now func() time.Time
}

// NewDBLogger creates a database-backed audit logger and ensures the
// audit_events table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	l := &DBLogger{db: db, now: time.Now}
	if err := l.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}
	return l, nil
}

func (l *DBLogger) ensureTable() error {
	_, err := l.db.Exec(`
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		event_type TEXT NOT NULL,
		status TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_user_id ON audit_events(user_id);
	`)
	return err
}

// Record inserts an audit event. Missing ID and Timestamp are filled in.
func (l *DBLogger) Record(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, timestamp, event_type, status, user_id, email, request_id, ip_address, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, event.ID, event.Timestamp, event.EventType, event.Status,
		event.UserID, event.Email, event.RequestID, event.IPAddress, event.Message)
	if err != nil {
		return fmt.Errorf("audit insert failed: %w", err)
	}
	return nil
}

// List returns events matching the filter, newest first.
func (l *DBLogger) List(ctx context.Context, filter Filter) ([]*Event, error) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, cond+" $"+strconv.Itoa(len(args)))
	}

	if filter.EventType != "" {
		add("event_type =", string(filter.EventType))
	}
	if filter.Status != "" {
		add("status =", string(filter.Status))
	}
	if filter.UserID != "" {
		add("user_id =", filter.UserID)
	}
	if !filter.Since.IsZero() {
		add("timestamp >=", filter.Since.UTC())
	}

	query := `SELECT id, timestamp, event_type, status, user_id, email, request_id, ip_address, message FROM audit_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit query failed: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.Status,
			&e.UserID, &e.Email, &e.RequestID, &e.IPAddress, &e.Message); err != nil {
			return nil, fmt.Errorf("audit scan failed: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than the retention window and returns the
// number removed.
func (l *DBLogger) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := l.db.ExecContext(ctx, `
		DELETE FROM audit_events WHERE timestamp < $1
	`, l.now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("audit prune failed: %w", err)
	}
	return res.RowsAffected()
}
