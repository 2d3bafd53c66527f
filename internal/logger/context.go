package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// updateContextKey is the key for UpdateContext in context.Context
var updateContextKey = contextKey{}

// UpdateContext holds chat-update-scoped logging context
type UpdateContext struct {
	UpdateID  int       // transport update id
	UserID    int64     // sender id
	MessageID int64     // message id, when the update carries a message
	Command   string    // parsed command, when the update is a command
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given UpdateContext
func WithContext(ctx context.Context, uc *UpdateContext) context.Context {
	return context.WithValue(ctx, updateContextKey, uc)
}

// FromContext retrieves the UpdateContext from context, or nil if not present
func FromContext(ctx context.Context) *UpdateContext {
	if ctx == nil {
		return nil
	}
	uc, _ := ctx.Value(updateContextKey).(*UpdateContext)
	return uc
}

// NewUpdateContext creates a new UpdateContext for a chat update
func NewUpdateContext(updateID int, userID int64) *UpdateContext {
	return &UpdateContext{
		UpdateID:  updateID,
		UserID:    userID,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the UpdateContext
func (uc *UpdateContext) Clone() *UpdateContext {
	if uc == nil {
		return nil
	}
	c := *uc
	return &c
}

// WithCommand returns a copy with the command set
func (uc *UpdateContext) WithCommand(command string) *UpdateContext {
	clone := uc.Clone()
	if clone != nil {
		clone.Command = command
	}
	return clone
}

// WithMessageID returns a copy with the message id set
func (uc *UpdateContext) WithMessageID(messageID int64) *UpdateContext {
	clone := uc.Clone()
	if clone != nil {
		clone.MessageID = messageID
	}
	return clone
}
