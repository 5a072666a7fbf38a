package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Fields flow through context enrichment so request-scoped context
// (request_id, ticket_type, etc.) shows up in every log statement without
// threading it by hand.
type LogFields struct {
	RequestID   *int64  // per-request snowflake id assigned by the HTTP middleware
	TicketType  *string // story / bug / task
	TicketID    *string // TAPD ticket id once known
	WorkspaceID *string // TAPD workspace id
	Component   string  // component name, e.g. "bridge.service.ticket"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking
// precedence. Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, updated LogFields) LogFields {
	result := existing

	if updated.RequestID != nil {
		result.RequestID = updated.RequestID
	}
	if updated.TicketType != nil {
		result.TicketType = updated.TicketType
	}
	if updated.TicketID != nil {
		result.TicketID = updated.TicketID
	}
	if updated.WorkspaceID != nil {
		result.WorkspaceID = updated.WorkspaceID
	}
	if updated.Component != "" {
		result.Component = updated.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{TicketID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like raw webhook bodies.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
