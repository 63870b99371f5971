package audit

import (
	"context"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	EventTypeRegister         EventType = "auth.register"
	EventTypeRegisterConflict EventType = "auth.register_conflict"
	EventTypeLogin            EventType = "auth.login"
	EventTypeLoginFailed      EventType = "auth.login_failed"
	EventTypeOAuthLogin       EventType = "auth.oauth_login"
	EventTypeOAuthLoginFailed EventType = "auth.oauth_login_failed"
	EventTypeTokenIssued      EventType = "auth.token_issued"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event represents a single audit log entry.
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information. UserID is empty for failed attempts against
	// unknown accounts; Email records what the caller claimed.
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Message string `json:"message,omitempty"`
}

// Filter narrows List queries.
type Filter struct {
	EventType EventType
	Status    EventStatus
	UserID    string
	Since     time.Time
	Limit     int
}

// Logger records audit events.
type Logger interface {
	Record(ctx context.Context, event *Event) error
}

// NopLogger discards all events.
type NopLogger struct{}

// Record implements Logger.
func (NopLogger) Record(context.Context, *Event) error { return nil }
