// Package escalation defines the external conversation state machine,
// escalation records, and per-tenant statistics.
package escalation

import "time"

// Status is the state of the *external* conversation, not of this process.
// The core only ever requests the transition to StatusEscalatedOpen;
// everything past that is driven by the platform.
type Status string

const (
	StatusAIHandled     Status = "ai_handled" // default/initial
	StatusEscalatedOpen Status = "escalated_open"
	StatusHumanAssigned Status = "human_assigned"
	StatusResolved      Status = "resolved" // terminal
)

// Record is created once per turn whose score fell below the active
// threshold, or per forced escalation. Records live in process memory only
// and are reset on restart.
type Record struct {
	ID             string    `json:"id"`
	HotelID        string    `json:"hotel_id"`
	ConversationID int       `json:"conversation_id"`
	TurnID         string    `json:"turn_id"`
	Score          float64   `json:"score"`
	Reasons        []string  `json:"reasons"`
	At             time.Time `json:"at"`
	TransitionOK   bool      `json:"transition_ok"` // external status change succeeded
	Conflict       bool      `json:"conflict"`      // platform state already past escalated-open
}

// TenantStats aggregates escalations for one hotel.
type TenantStats struct {
	HotelID        string    `json:"hotel_id"`
	TurnsProcessed int64     `json:"turns_processed"`
	Escalated      int64     `json:"escalated"`
	Rate           float64   `json:"rate"`
	AvgConfidence  float64   `json:"avg_confidence"`
	LastEscalation time.Time `json:"last_escalation,omitzero"`
	Recent         []Record  `json:"recent,omitempty"`
}

// GlobalStats aggregates escalations across all hotels for the process lifetime.
type GlobalStats struct {
	TurnsProcessed int64            `json:"turns_processed"`
	Escalated      int64            `json:"escalated"`
	Rate           float64          `json:"rate"`
	PerHotel       map[string]int64 `json:"per_hotel"`
}

// Outcome is the result of a threshold decision for one turn.
type Outcome struct {
	Escalated     bool    `json:"escalated"`
	DeliveredText string  `json:"delivered_text"`
	Score         float64 `json:"score"`
	Threshold     float64 `json:"threshold"`
	TransitionOK  bool    `json:"transition_ok"`
	NoteOK        bool    `json:"note_ok"`
	Conflict      bool    `json:"conflict"`
	Skipped       string  `json:"skipped,omitempty"` // non-empty when escalation was skipped (disabled, missing credentials)
}
