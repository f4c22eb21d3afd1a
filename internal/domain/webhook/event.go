// Package webhook defines the normalized inbound event from the external
// conversation platform.
package webhook

import (
	"fmt"

	"github.com/mkiradani/daotomata-hotel-agent/internal/domain"
)

// Event types we receive from the platform. Only EventMessageCreated is
// ever processed; everything else is acknowledged and dropped.
const EventMessageCreated = "message_created"

// Message directions and sender types on the platform.
const (
	MessageTypeIncoming = "incoming"
	SenderTypeContact   = "contact" // an end guest, not an agent or the bot itself
)

// Event is a normalized Chatwoot webhook event.
type Event struct {
	Event          string `json:"event"`
	HotelID        string `json:"hotel_id"`
	ConversationID int    `json:"conversation_id"`
	MessageID      int    `json:"message_id"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"`
	SenderType     string `json:"sender_type"`
	SenderName     string `json:"sender_name,omitempty"`
}

// Validate checks the required fields of a processable event.
func (e *Event) Validate() error {
	if e.Event == "" {
		return fmt.Errorf("%w: missing event type", domain.ErrValidation)
	}
	if e.HotelID == "" {
		return fmt.Errorf("%w: missing hotel_id", domain.ErrValidation)
	}
	if e.ConversationID == 0 {
		return fmt.Errorf("%w: missing conversation id", domain.ErrValidation)
	}
	// A zero message id would collapse every id-less message in the
	// conversation onto one dedupe key and drop them as replays.
	if e.MessageID == 0 {
		return fmt.Errorf("%w: missing message id", domain.ErrValidation)
	}
	if e.Content == "" {
		return fmt.Errorf("%w: empty message content", domain.ErrValidation)
	}
	return nil
}

// Processable reports whether this event represents a new guest message.
// Agent and bot messages are dropped to prevent feedback loops.
func (e *Event) Processable() (bool, string) {
	if e.Event != EventMessageCreated {
		return false, fmt.Sprintf("event type %q not processed", e.Event)
	}
	if e.MessageType != MessageTypeIncoming {
		return false, fmt.Sprintf("message type %q not processed", e.MessageType)
	}
	if e.SenderType != SenderTypeContact {
		return false, "sender is not a guest"
	}
	return true, ""
}

// DedupeKey identifies this event for replay detection.
func (e *Event) DedupeKey() string {
	return fmt.Sprintf("evt:%s:%d:%d", e.HotelID, e.ConversationID, e.MessageID)
}
