package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkiradani/daotomata-hotel-agent/internal/config"
	"github.com/mkiradani/daotomata-hotel-agent/internal/domain"
	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/confidence"
	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/escalation"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/platform"
	"github.com/mkiradani/daotomata-hotel-agent/internal/resilience"
)

// handoffNotice is prepended to the original answer when a turn escalates.
// The answer is preserved so the guest keeps any useful content gathered so
// far.
const handoffNotice = "I've asked a member of our team to assist you personally. Someone will be with you shortly. In the meantime:"

// recentRecordLimit bounds the per-tenant record history kept in memory.
const recentRecordLimit = 20

// EscalationManager applies the threshold policy to scored turns and owns
// the process-lifetime escalation statistics.
type EscalationManager struct {
	platform platform.Conversations
	cfg      config.Escalation
	retries  int
	backoff  time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	tenant map[string]*tenantState
}

// tenantState aggregates one hotel's counters. Guarded by EscalationManager.mu.
type tenantState struct {
	turns         int64
	escalated     int64
	sumConfidence float64
	last          time.Time
	recent        []escalation.Record
}

// NewEscalationManager creates the manager. platform may be nil for
// deployments without an external conversation platform (sync chat only).
func NewEscalationManager(p platform.Conversations, cfg config.Escalation, pipe config.Pipeline) *EscalationManager {
	retries := pipe.StatusRetries
	if retries < 1 {
		retries = 3
	}
	backoff := pipe.StatusBackoff
	if backoff == 0 {
		backoff = 500 * time.Millisecond
	}
	timeout := pipe.PlatformTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &EscalationManager{
		platform: p,
		cfg:      cfg,
		retries:  retries,
		backoff:  backoff,
		timeout:  timeout,
		tenant:   make(map[string]*tenantState),
	}
}

// Threshold returns the active confidence threshold.
func (m *EscalationManager) Threshold() float64 { return m.cfg.Threshold }

// DecideAndApply applies the threshold policy for one scored turn and
// performs the outbound side effects. conversationID 0 means there is no
// external conversation (sync chat); platform side effects are skipped but
// statistics are still recorded.
//
// When the turn escalates, guest delivery is attempted first: a failed
// status transition or note must never leave the guest without an answer.
func (m *EscalationManager) DecideAndApply(ctx context.Context, hotelID string, conversationID int, turnID, question, answer string, score confidence.Score) escalation.Outcome {
	outcome := escalation.Outcome{
		Score:         score.Value,
		Threshold:     m.cfg.Threshold,
		DeliveredText: answer,
	}

	escalate := m.cfg.Enabled && score.Value < m.cfg.Threshold
	if !m.cfg.Enabled && score.Value < m.cfg.Threshold {
		outcome.Skipped = "escalation disabled"
	}

	if !escalate {
		if conversationID != 0 {
			if err := m.deliver(ctx, hotelID, conversationID, answer); err != nil {
				slog.Error("guest delivery failed", "hotel_id", hotelID, "conversation_id", conversationID, "error", err)
			}
		}
		m.recordTurn(hotelID, score.Value, false, nil)
		return outcome
	}

	outcome.Escalated = true
	outcome.DeliveredText = handoffNotice + "\n\n" + answer

	if conversationID != 0 {
		if err := m.deliver(ctx, hotelID, conversationID, outcome.DeliveredText); err != nil {
			if errors.Is(err, domain.ErrConfiguration) {
				// Tenant has no platform credentials: fail open to "no
				// escalation" rather than fail closed to "no response".
				slog.Error("escalation skipped, tenant has no platform credentials", "hotel_id", hotelID)
				outcome.Escalated = false
				outcome.Skipped = "missing platform credentials"
				m.recordTurn(hotelID, score.Value, false, nil)
				return outcome
			}
			slog.Error("guest delivery failed during escalation", "hotel_id", hotelID, "conversation_id", conversationID, "error", err)
		}

		outcome.TransitionOK, outcome.Conflict = m.transition(ctx, hotelID, conversationID)
		outcome.NoteOK = m.annotate(ctx, hotelID, conversationID, question, answer, score)
	}

	rec := escalation.Record{
		ID:             uuid.NewString(),
		HotelID:        hotelID,
		ConversationID: conversationID,
		TurnID:         turnID,
		Score:          score.Value,
		Reasons:        score.Reasons,
		At:             time.Now().UTC(),
		TransitionOK:   outcome.TransitionOK,
		Conflict:       outcome.Conflict,
	}
	m.recordTurn(hotelID, score.Value, true, &rec)

	slog.Info("turn escalated",
		"hotel_id", hotelID,
		"conversation_id", conversationID,
		"turn_id", turnID,
		"score", score.Value,
		"threshold", m.cfg.Threshold,
		"transition_ok", outcome.TransitionOK,
		"conflict", outcome.Conflict,
	)
	return outcome
}

// ForceEscalate bypasses scoring and performs the status transition, the
// operator note, and the record unconditionally.
func (m *EscalationManager) ForceEscalate(ctx context.Context, hotelID string, conversationID int, reason string) (*escalation.Record, error) {
	if conversationID == 0 {
		return nil, fmt.Errorf("%w: conversation id required for forced escalation", domain.ErrValidation)
	}

	transitionOK, conflict := m.transition(ctx, hotelID, conversationID)
	score := confidence.Score{Method: confidence.MethodManual, Reasons: []string{"forced: " + reason}}
	m.annotate(ctx, hotelID, conversationID, "", "", score)

	rec := escalation.Record{
		ID:             uuid.NewString(),
		HotelID:        hotelID,
		ConversationID: conversationID,
		TurnID:         "",
		Score:          0,
		Reasons:        score.Reasons,
		At:             time.Now().UTC(),
		TransitionOK:   transitionOK,
		Conflict:       conflict,
	}
	m.recordForced(hotelID, &rec)

	slog.Info("forced escalation",
		"hotel_id", hotelID,
		"conversation_id", conversationID,
		"reason", reason,
		"transition_ok", transitionOK,
	)
	return &rec, nil
}

// Resolve marks the external conversation resolved.
func (m *EscalationManager) Resolve(ctx context.Context, hotelID string, conversationID int) error {
	if m.platform == nil {
		return fmt.Errorf("%w: no conversation platform configured", domain.ErrConfiguration)
	}
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.platform.SetStatus(callCtx, hotelID, conversationID, platform.StatusResolved)
}

func (m *EscalationManager) deliver(ctx context.Context, hotelID string, conversationID int, text string) error {
	if m.platform == nil {
		return fmt.Errorf("%w: no conversation platform configured", domain.ErrConfiguration)
	}
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, err := m.platform.SendMessage(callCtx, hotelID, conversationID, text)
	return err
}

// transition requests the escalated-open status change with bounded
// backoff. Reports (succeeded, conflict): conflict means the platform's own
// state already moved past the point where opening makes sense, which is
// surfaced rather than guessed around.
func (m *EscalationManager) transition(ctx context.Context, hotelID string, conversationID int) (ok, conflict bool) {
	if m.platform == nil {
		return false, false
	}

	statusCtx, cancel := context.WithTimeout(ctx, m.timeout)
	current, err := m.platform.GetStatus(statusCtx, hotelID, conversationID)
	cancel()
	if err == nil {
		if current.Status == platform.StatusResolved || current.Assignee != "" {
			slog.Warn("escalation conflict, platform state already progressed",
				"hotel_id", hotelID,
				"conversation_id", conversationID,
				"status", current.Status,
				"assignee", current.Assignee,
			)
			return false, true
		}
	}

	err = resilience.Retry(ctx, m.retries, m.backoff, func() error {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		return m.platform.SetStatus(callCtx, hotelID, conversationID, platform.StatusOpen)
	})
	if err != nil {
		slog.Error("status transition failed after retries",
			"hotel_id", hotelID,
			"conversation_id", conversationID,
			"attempts", m.retries,
			"error", err,
		)
		return false, false
	}
	return true, false
}

// annotate attaches the operator-only context note. Best effort: failures
// are logged and swallowed.
func (m *EscalationManager) annotate(ctx context.Context, hotelID string, conversationID int, question, answer string, score confidence.Score) bool {
	if m.platform == nil {
		return false
	}

	note := fmt.Sprintf(
		"Escalated to human handling.\n\nConfidence: %.2f (threshold %.2f, method %s)\nReasons: %s",
		score.Value, m.cfg.Threshold, score.Method, joinOr(score.Reasons, "none"),
	)
	if question != "" {
		note += "\n\nGuest question:\n" + question
	}
	if answer != "" {
		note += "\n\nSuppressed answer:\n" + answer
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if _, err := m.platform.SendPrivateNote(callCtx, hotelID, conversationID, note); err != nil {
		slog.Warn("private note failed", "hotel_id", hotelID, "conversation_id", conversationID, "error", err)
		return false
	}
	return true
}

// recordTurn updates the per-tenant counters for one processed turn.
func (m *EscalationManager) recordTurn(hotelID string, score float64, escalated bool, rec *escalation.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.tenantLocked(hotelID)
	ts.turns++
	ts.sumConfidence += score
	if escalated && rec != nil {
		ts.escalated++
		ts.last = rec.At
		ts.recent = appendBounded(ts.recent, *rec)
	}
}

// recordForced counts a forced escalation without counting a processed turn.
func (m *EscalationManager) recordForced(hotelID string, rec *escalation.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.tenantLocked(hotelID)
	ts.escalated++
	ts.last = rec.At
	ts.recent = appendBounded(ts.recent, *rec)
}

func (m *EscalationManager) tenantLocked(hotelID string) *tenantState {
	ts, ok := m.tenant[hotelID]
	if !ok {
		ts = &tenantState{}
		m.tenant[hotelID] = ts
	}
	return ts
}

func appendBounded(recs []escalation.Record, rec escalation.Record) []escalation.Record {
	recs = append(recs, rec)
	if len(recs) > recentRecordLimit {
		recs = recs[len(recs)-recentRecordLimit:]
	}
	return recs
}

// TenantStats returns one hotel's statistics snapshot.
func (m *EscalationManager) TenantStats(hotelID string) escalation.TenantStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, ok := m.tenant[hotelID]
	if !ok {
		return escalation.TenantStats{HotelID: hotelID}
	}

	stats := escalation.TenantStats{
		HotelID:        hotelID,
		TurnsProcessed: ts.turns,
		Escalated:      ts.escalated,
		LastEscalation: ts.last,
		Recent:         append([]escalation.Record(nil), ts.recent...),
	}
	if ts.turns > 0 {
		stats.Rate = float64(ts.escalated) / float64(ts.turns)
		stats.AvgConfidence = ts.sumConfidence / float64(ts.turns)
	}
	return stats
}

// GlobalStats returns the cross-tenant snapshot for the process lifetime.
func (m *EscalationManager) GlobalStats() escalation.GlobalStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := escalation.GlobalStats{PerHotel: make(map[string]int64, len(m.tenant))}
	ids := make([]string, 0, len(m.tenant))
	for id := range m.tenant {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ts := m.tenant[id]
		stats.TurnsProcessed += ts.turns
		stats.Escalated += ts.escalated
		stats.PerHotel[id] = ts.escalated
	}
	if stats.TurnsProcessed > 0 {
		stats.Rate = float64(stats.Escalated) / float64(stats.TurnsProcessed)
	}
	return stats
}

// ResetStats clears all counters. Test hook.
func (m *EscalationManager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenant = make(map[string]*tenantState)
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	out := items[0]
	for _, s := range items[1:] {
		out += "; " + s
	}
	return out
}
