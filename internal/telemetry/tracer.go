package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for capture pipeline spans. Domain keys use the
// "capture." prefix; storage and messaging keys use their own.
const (
	AttrSessionID  = "capture.session_id"
	AttrState      = "capture.state"
	AttrSequence   = "capture.sequence"
	AttrImageCount = "capture.image_count"

	AttrUserID    = "chat.user_id"
	AttrMessageID = "chat.message_id"
	AttrCommand   = "chat.command"

	AttrObjectKey = "storage.key"
	AttrBucket    = "storage.bucket"

	AttrNotificationID = "notify.id"
	AttrBatchSize      = "notify.batch_size"
	AttrDispatcher     = "dispatch.name"
)

// SessionID returns a session id attribute.
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// State returns a session state attribute.
func State(state string) attribute.KeyValue {
	return attribute.String(AttrState, state)
}

// Sequence returns an image sequence attribute.
func Sequence(seq int) attribute.KeyValue {
	return attribute.Int(AttrSequence, seq)
}

// UserID returns a chat user id attribute.
func UserID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrUserID, id)
}

// Command returns a chat command attribute.
func Command(cmd string) attribute.KeyValue {
	return attribute.String(AttrCommand, cmd)
}

// ObjectKey returns a storage key attribute.
func ObjectKey(key string) attribute.KeyValue {
	return attribute.String(AttrObjectKey, key)
}

// NotificationID returns a notification id attribute.
func NotificationID(id string) attribute.KeyValue {
	return attribute.String(AttrNotificationID, id)
}

// Dispatcher returns a dispatcher name attribute.
func Dispatcher(name string) attribute.KeyValue {
	return attribute.String(AttrDispatcher, name)
}

// StartCaptureSpan starts a span for a capture operation (session or image
// level).
func StartCaptureSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "capture."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartDispatchSpan starts a span for one dispatcher cycle.
func StartDispatchSpan(ctx context.Context, dispatcher string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, Dispatcher(dispatcher))
	return StartSpan(ctx, "dispatch."+dispatcher,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartStorageSpan starts a span for a blob store operation.
func StartStorageSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "storage."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}
