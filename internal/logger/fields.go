package logger

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so logs from the
// ingress, the repositories, and the dispatchers can be correlated and
// queried together.
const (
	// Chat ingress
	KeyUpdateID  = "update_id"  // transport update identifier
	KeyUserID    = "user_id"    // chat sender / session owner
	KeyMessageID = "message_id" // transport message identifier
	KeyCommand   = "command"    // parsed bot command (start_session, close, done)

	// Capture sessions
	KeySessionID = "session_id" // capture session UUID
	KeyState     = "state"      // session state (open, closed, processing, done, failed)
	KeySequence  = "sequence"   // per-session image sequence number
	KeyObjectKey = "object_key" // blob store key of a stored screenshot
	KeyImages    = "images"     // image count for a session

	// Dispatchers
	KeyDispatcher     = "dispatcher"      // dispatcher name (sessions, notifications)
	KeyPollInterval   = "poll_interval"   // configured poll interval
	KeyBatchSize      = "batch_size"      // notification batch size
	KeyClaimed        = "claimed"         // rows claimed in a dispatch cycle
	KeySent           = "sent"            // notifications delivered
	KeyFailed         = "failed"          // notifications marked failed
	KeyNotificationID = "notification_id" // outbound notification id

	// Store
	KeyDatabase  = "database" // database name
	KeyError     = "error"    // error detail
	KeyDuration  = "duration_ms"
	KeyComponent = "component"
)
