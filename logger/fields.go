package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across jobtrail.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldJobID     = "job_id"
	FieldRequestID = "request_id"

	// Components
	FieldComponent = "component"

	// Capture pipeline
	FieldSourceType = "source_type"
	FieldSourceKey  = "source_key"
	FieldOutcome    = "outcome"
	FieldModel      = "model"
	FieldTextLen    = "text_len"
	FieldMissing    = "missing_fields"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError      = "error"
	FieldErrorClass = "error_class"

	// Counts and sizes
	FieldCount = "count"
	FieldSize  = "size"

	// Status
	FieldStatus     = "status"
	FieldFromStatus = "from_status"

	// Files and network
	FieldFile    = "file"
	FieldAddress = "address"
	FieldHost    = "host"
)

// Context keys for propagating logging context
type contextKey string

const (
	requestIDKey contextKey = "logger_request_id"
	componentKey contextKey = "logger_component"
)

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// FromContext returns base enriched with fields extracted from context.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Extractor struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewExtractor() *Extractor {
//	    return &Extractor{
//	        logger: logger.ComponentLogger("extract"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
