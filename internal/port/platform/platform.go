// Package platform defines the port to the external conversation platform
// (Chatwoot). All calls may be retried by the caller; the platform itself
// gives no idempotency guarantee, so duplicate-looking acknowledgments must
// be tolerated.
package platform

import "context"

// Conversation status values understood by the platform.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
	StatusPending  = "pending"
)

// SendResult is the acknowledgment for an outbound message.
type SendResult struct {
	MessageID int `json:"message_id"`
}

// ConversationStatus is the platform's current view of a conversation.
type ConversationStatus struct {
	Status   string `json:"status"`
	Assignee string `json:"assignee,omitempty"`
}

// Conversations is the port interface for conversation-platform side effects.
// A failure here must never make the guest's answer disappear; callers decide
// which operations are status-critical and which are best-effort.
type Conversations interface {
	// SendMessage delivers a guest-visible message.
	SendMessage(ctx context.Context, hotelID string, conversationID int, content string) (*SendResult, error)

	// SendPrivateNote attaches an operator-only annotation.
	SendPrivateNote(ctx context.Context, hotelID string, conversationID int, content string) (*SendResult, error)

	// SetStatus requests a conversation status transition.
	SetStatus(ctx context.Context, hotelID string, conversationID int, status string) error

	// GetStatus reads the conversation's current status.
	GetStatus(ctx context.Context, hotelID string, conversationID int) (*ConversationStatus, error)
}
