// Package eventbus defines the operational event feed port. Events are
// best-effort diagnostics for dashboards; the pipeline never depends on
// publish success.
package eventbus

import "context"

// Subjects for pipeline events.
const (
	SubjectTurnProcessed = "turns.processed"
	SubjectEscalated     = "escalations.triggered"
	SubjectHandoff       = "responders.handoff"
)

// TurnProcessedPayload is the schema for turns.processed events.
type TurnProcessedPayload struct {
	HotelID        string  `json:"hotel_id"`
	ConversationID int     `json:"conversation_id"`
	TurnID         string  `json:"turn_id"`
	Variant        string  `json:"variant"`
	Score          float64 `json:"score"`
	Escalated      bool    `json:"escalated"`
}

// EscalatedPayload is the schema for escalations.triggered events.
type EscalatedPayload struct {
	HotelID        string   `json:"hotel_id"`
	ConversationID int      `json:"conversation_id"`
	TurnID         string   `json:"turn_id"`
	Score          float64  `json:"score"`
	Reasons        []string `json:"reasons"`
	Forced         bool     `json:"forced"`
}

// HandoffPayload is the schema for responders.handoff events.
type HandoffPayload struct {
	HotelID string `json:"hotel_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Reason  string `json:"reason"`
}

// Publisher publishes operational events.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Nop is a Publisher that discards everything. Used when no bus is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, []byte) error { return nil }
