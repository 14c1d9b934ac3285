package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront.dev/internal/auth"
	"storefront.dev/internal/obs"
)

const (
	EventLoginSucceeded = "login.succeeded"
	EventLoginFailed    = "login.failed"
	EventSignupCreated  = "signup.created"
	EventTokenRejected  = "token.rejected"
	EventLogout         = "logout"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and principal context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	data := logrus.Fields{
		"type":  "audit",
		"event": event,
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		data["request_id"] = rid
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		data["username"] = p.Username
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	data["fields"] = copied

	obs.Logger().WithContext(ctx).WithFields(data).Info(event)
	return nil
}
