// Package logging carries request-scoped identity (trace id, user, role)
// through contexts and emits request and security log lines.
package logging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/letsbefriends/platform/pkg/logger"
)

type contextKey string

const (
	// TraceIDKey holds the request trace id.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey holds the authenticated user id.
	UserIDKey contextKey = "user_id"
	// SubjectKey holds the external auth subject from the token.
	SubjectKey contextKey = "subject"
	// RoleKey holds the authenticated role, if any.
	RoleKey contextKey = "role"
)

// Logger decorates entries with the identity found in a context.
type Logger struct {
	base    *logger.Logger
	service string
}

// New creates a request logger for a service.
func New(service, level, format string) *Logger {
	return &Logger{
		base:    logger.New(logger.LoggingConfig{Level: level, Format: format}).Named(service),
		service: service,
	}
}

// Wrap builds a request logger on top of an existing component logger.
func Wrap(base *logger.Logger) *Logger {
	if base == nil {
		base = logger.NewDefault("http")
	}
	return &Logger{base: base, service: base.Name()}
}

// Base exposes the underlying component logger.
func (l *Logger) Base() *logger.Logger {
	return l.base
}

// WithContext returns an entry carrying trace, user and role fields.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{"service": l.service}
	if traceID := GetTraceID(ctx); traceID != "" {
		fields["trace_id"] = traceID
	}
	if userID := GetUserID(ctx); userID != "" {
		fields["user_id"] = userID
	}
	if role := GetRole(ctx); role != "" {
		fields["role"] = role
	}
	return l.base.WithFields(fields)
}

// WithFields returns an entry with the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.base.WithFields(logrus.Fields(fields))
}

// LogRequest writes one line per handled HTTP request. Server errors log at
// error level and client errors at warn.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	switch {
	case status >= 500:
		entry.Error("request failed")
	case status >= 400:
		entry.Warn("request rejected")
	default:
		entry.Info("request handled")
	}
}

// LogSecurityEvent records an authentication or abuse related event.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, details map[string]interface{}) {
	l.WithContext(ctx).WithField("security_event", event).WithFields(logrus.Fields(details)).Warn("security event")
}

// NewTraceID generates a fresh trace id.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores a trace id in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace id or "".
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

// WithUserID stores the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID returns the authenticated user id or "".
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, UserIDKey)
}

// WithSubject stores the external auth subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, SubjectKey, subject)
}

// GetSubject returns the external auth subject or "".
func GetSubject(ctx context.Context) string {
	return stringValue(ctx, SubjectKey)
}

// GetRole returns the authenticated role or "".
func GetRole(ctx context.Context) string {
	return stringValue(ctx, RoleKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
