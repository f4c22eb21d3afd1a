// Package conversation defines the per-guest conversation log and its turns.
package conversation

import (
	"time"

	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/confidence"
	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/responder"
)

// Turn is one guest message plus, once produced, the answer that was
// generated for it. A turn is created on arrival and mutated exactly once
// to attach the answer; it is never deleted.
type Turn struct {
	ID           string             `json:"id"`
	GuestMessage string             `json:"guest_message"`
	Answer       string             `json:"answer,omitempty"`
	Variant      responder.Variant  `json:"variant,omitempty"`
	Score        *confidence.Score  `json:"score,omitempty"`
	ReceivedAt   time.Time          `json:"received_at"`
	AnsweredAt   time.Time          `json:"answered_at,omitzero"`
}

// Conversation identifies a tenant, an external conversation handle, and an
// append-only, arrival-ordered log of turns.
type Conversation struct {
	HotelID    string            `json:"hotel_id"`
	PlatformID int               `json:"platform_id,omitempty"` // external conversation handle
	SessionID  string            `json:"session_id"`
	Assigned   responder.Variant `json:"assigned,omitempty"` // variant currently handling the conversation
	Turns      []Turn            `json:"turns"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Append adds a new unanswered turn for the given guest message and returns
// a pointer to it. Turns stay strictly in arrival order.
func (c *Conversation) Append(turnID, guestMessage string, at time.Time) *Turn {
	c.Turns = append(c.Turns, Turn{
		ID:           turnID,
		GuestMessage: guestMessage,
		ReceivedAt:   at,
	})
	return &c.Turns[len(c.Turns)-1]
}

// Attach records the answer for a turn. It is the single permitted mutation.
func (t *Turn) Attach(answer string, v responder.Variant, score *confidence.Score, at time.Time) {
	t.Answer = answer
	t.Variant = v
	t.Score = score
	t.AnsweredAt = at
}

// History returns the conversation as alternating guest/assistant messages,
// oldest first, for prompt assembly.
func (c *Conversation) History() []HistoryEntry {
	out := make([]HistoryEntry, 0, len(c.Turns)*2)
	for i := range c.Turns {
		t := &c.Turns[i]
		out = append(out, HistoryEntry{Role: "user", Content: t.GuestMessage})
		if t.Answer != "" {
			out = append(out, HistoryEntry{Role: "assistant", Content: t.Answer})
		}
	}
	return out
}

// HistoryEntry is one message in prompt-ready form.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
