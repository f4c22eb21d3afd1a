package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mkiradani/daotomata-hotel-agent/internal/config"
	"github.com/mkiradani/daotomata-hotel-agent/internal/domain"
	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/confidence"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/platform"
)

func testEscalationConfig() config.Escalation {
	return config.Escalation{Enabled: true, Threshold: 0.7, EvaluationModel: "test-model"}
}

func testPipelineConfig() config.Pipeline {
	return config.Pipeline{
		QueueCapacity:   8,
		EventTTL:        time.Minute,
		PlatformTimeout: time.Second,
		StatusRetries:   2,
		StatusBackoff:   time.Millisecond,
	}
}

func newTestManager(p platform.Conversations) *EscalationManager {
	return NewEscalationManager(p, testEscalationConfig(), testPipelineConfig())
}

func lowScore(v float64) confidence.Score {
	return confidence.Score{Value: v, Method: confidence.MethodHybrid, Reasons: []string{"low self assessment"}}
}

func TestDecideAndApplyBelowThreshold(t *testing.T) {
	pf := &fakePlatform{}
	m := newTestManager(pf)

	answer := "I'm not sure, but you could try the museum"
	outcome := m.DecideAndApply(context.Background(), "h1", 42, "t1", "what should we visit?", answer, lowScore(0.33))

	if !outcome.Escalated {
		t.Fatal("expected escalation below threshold")
	}
	if !strings.Contains(outcome.DeliveredText, answer) {
		t.Error("original answer must be preserved in the delivered text")
	}
	if !strings.HasPrefix(outcome.DeliveredText, handoffNotice) {
		t.Error("delivered text must carry the handoff notice")
	}

	sent := pf.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0] != outcome.DeliveredText {
		t.Error("delivered text mismatch with platform call")
	}

	if got := pf.statusRequests(); len(got) != 1 || got[0] != platform.StatusOpen {
		t.Errorf("status requests = %v, want [open]", got)
	}
	if !outcome.TransitionOK {
		t.Error("transition should have succeeded")
	}

	notes := pf.privateNotes()
	if len(notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(notes))
	}
	if !strings.Contains(notes[0], "what should we visit?") || !strings.Contains(notes[0], answer) {
		t.Error("note must contain the question and the suppressed answer")
	}

	stats := m.TenantStats("h1")
	if stats.Escalated != 1 || stats.TurnsProcessed != 1 {
		t.Errorf("stats = %+v, want 1 escalated of 1 turn", stats)
	}
	if len(stats.Recent) != 1 {
		t.Fatalf("recent records = %d, want 1", len(stats.Recent))
	}
	if stats.Recent[0].TurnID != "t1" {
		t.Errorf("record turn = %q, want t1", stats.Recent[0].TurnID)
	}
}

func TestDecideAndApplyAtThreshold(t *testing.T) {
	pf := &fakePlatform{}
	m := newTestManager(pf)

	answer := "Your reservation is confirmed for room 205, check-in 3 PM"
	outcome := m.DecideAndApply(context.Background(), "h1", 42, "t1", "is my booking ok?", answer, lowScore(0.7))

	if outcome.Escalated {
		t.Fatal("score at threshold must not escalate")
	}
	if outcome.DeliveredText != answer {
		t.Errorf("DeliveredText = %q, want unchanged answer", outcome.DeliveredText)
	}
	if got := pf.statusRequests(); len(got) != 0 {
		t.Errorf("status transition invoked at/above threshold: %v", got)
	}
	if stats := m.TenantStats("h1"); stats.Escalated != 0 || stats.TurnsProcessed != 1 {
		t.Errorf("stats = %+v, want 0 escalated of 1 turn", stats)
	}
}

func TestDecideAndApplyStatusFailureStillDelivers(t *testing.T) {
	pf := &fakePlatform{statusErr: errors.New("chatwoot 500")}
	m := newTestManager(pf)

	outcome := m.DecideAndApply(context.Background(), "h1", 42, "t1", "q", "some mediocre answer", lowScore(0.2))

	if !outcome.Escalated {
		t.Fatal("expected escalation")
	}
	if outcome.TransitionOK {
		t.Error("transition must be reported failed")
	}
	if len(pf.sentMessages()) != 1 {
		t.Error("guest delivery must happen despite the transition failure")
	}
	if stats := m.TenantStats("h1"); stats.Escalated != 1 {
		t.Error("record must be created regardless of transition outcome")
	}
}

func TestDecideAndApplyMissingCredentialsFailsOpen(t *testing.T) {
	pf := &fakePlatform{sendErr: fmt.Errorf("%w: hotel h1 has no chatwoot credentials", domain.ErrConfiguration)}
	m := newTestManager(pf)

	outcome := m.DecideAndApply(context.Background(), "h1", 42, "t1", "q", "some mediocre answer", lowScore(0.2))

	if outcome.Escalated {
		t.Error("missing credentials must fail open to no escalation")
	}
	if outcome.Skipped == "" {
		t.Error("outcome must say why escalation was skipped")
	}
	if stats := m.TenantStats("h1"); stats.Escalated != 0 {
		t.Error("no escalation record when skipped")
	}
}

func TestDecideAndApplyConflict(t *testing.T) {
	pf := &fakePlatform{status: platform.ConversationStatus{Status: platform.StatusResolved}}
	m := newTestManager(pf)

	outcome := m.DecideAndApply(context.Background(), "h1", 42, "t1", "q", "some mediocre answer", lowScore(0.2))

	if !outcome.Conflict {
		t.Error("expected conflict when platform already resolved the conversation")
	}
	if outcome.TransitionOK {
		t.Error("no transition when conflicted")
	}
	if got := pf.statusRequests(); len(got) != 0 {
		t.Errorf("status transition attempted despite conflict: %v", got)
	}
	// The record still exists so operators can see the near-miss.
	if stats := m.TenantStats("h1"); stats.Escalated != 1 {
		t.Error("record must be created on conflict")
	}
}

func TestDecideAndApplyDisabled(t *testing.T) {
	pf := &fakePlatform{}
	m := NewEscalationManager(pf, config.Escalation{Enabled: false, Threshold: 0.7}, testPipelineConfig())

	outcome := m.DecideAndApply(context.Background(), "h1", 42, "t1", "q", "whatever answer this is", lowScore(0.1))

	if outcome.Escalated {
		t.Error("disabled escalation must never escalate")
	}
	if outcome.Skipped == "" {
		t.Error("outcome must be marked skipped")
	}
	if len(pf.sentMessages()) != 1 {
		t.Error("answer must still be delivered")
	}
}

func TestDecideAndApplySyncChatSkipsPlatform(t *testing.T) {
	pf := &fakePlatform{}
	m := newTestManager(pf)

	outcome := m.DecideAndApply(context.Background(), "h1", 0, "t1", "q", "weak answer text here", lowScore(0.2))

	if !outcome.Escalated {
		t.Fatal("expected escalation outcome for low score")
	}
	if len(pf.sentMessages()) != 0 || len(pf.statusRequests()) != 0 {
		t.Error("no platform side effects without an external conversation")
	}
	if stats := m.TenantStats("h1"); stats.Escalated != 1 {
		t.Error("stats must still be recorded")
	}
}

func TestForceEscalate(t *testing.T) {
	pf := &fakePlatform{}
	m := newTestManager(pf)

	rec, err := m.ForceEscalate(context.Background(), "h1", 42, "operator request")
	if err != nil {
		t.Fatalf("ForceEscalate: %v", err)
	}
	if !rec.TransitionOK {
		t.Error("expected successful transition")
	}
	if got := pf.statusRequests(); len(got) != 1 || got[0] != platform.StatusOpen {
		t.Errorf("status requests = %v, want [open]", got)
	}
	if len(pf.privateNotes()) != 1 {
		t.Error("forced escalation must leave an operator note")
	}

	stats := m.TenantStats("h1")
	if stats.Escalated != 1 {
		t.Errorf("Escalated = %d, want 1", stats.Escalated)
	}
	if stats.TurnsProcessed != 0 {
		t.Errorf("forced escalation must not count as a processed turn, got %d", stats.TurnsProcessed)
	}

	if _, err := m.ForceEscalate(context.Background(), "h1", 0, "r"); err == nil {
		t.Error("expected validation error without a conversation id")
	}
}

func TestStatusTransitionRetries(t *testing.T) {
	pf := &fakePlatform{}
	calls := 0
	// First SetStatus attempt fails, second succeeds.
	flaky := &flakyPlatform{fakePlatform: pf, failFirst: 1, calls: &calls}
	m := newTestManager(flaky)

	outcome := m.DecideAndApply(context.Background(), "h1", 42, "t1", "q", "some mediocre answer", lowScore(0.2))
	if !outcome.TransitionOK {
		t.Error("transition should succeed on retry")
	}
	if calls != 2 {
		t.Errorf("SetStatus calls = %d, want 2", calls)
	}
}

// flakyPlatform fails the first n SetStatus calls.
type flakyPlatform struct {
	*fakePlatform
	failFirst int
	calls     *int
}

func (f *flakyPlatform) SetStatus(ctx context.Context, hotelID string, conversationID int, status string) error {
	*f.calls++
	if *f.calls <= f.failFirst {
		return errors.New("transient")
	}
	return f.fakePlatform.SetStatus(ctx, hotelID, conversationID, status)
}

func TestGlobalStats(t *testing.T) {
	m := newTestManager(&fakePlatform{})

	m.DecideAndApply(context.Background(), "h1", 1, "t1", "q", "weak answer text here", lowScore(0.2))
	m.DecideAndApply(context.Background(), "h1", 1, "t2", "q", "Everything is confirmed and ready", lowScore(0.9))
	m.DecideAndApply(context.Background(), "h2", 2, "t3", "q", "weak answer text here", lowScore(0.3))

	g := m.GlobalStats()
	if g.TurnsProcessed != 3 {
		t.Errorf("TurnsProcessed = %d, want 3", g.TurnsProcessed)
	}
	if g.Escalated != 2 {
		t.Errorf("Escalated = %d, want 2", g.Escalated)
	}
	if g.PerHotel["h1"] != 1 || g.PerHotel["h2"] != 1 {
		t.Errorf("PerHotel = %v", g.PerHotel)
	}

	ts := m.TenantStats("h1")
	if !almostEqual(ts.Rate, 0.5) {
		t.Errorf("Rate = %v, want 0.5", ts.Rate)
	}
	if !almostEqual(ts.AvgConfidence, 0.55) {
		t.Errorf("AvgConfidence = %v, want 0.55", ts.AvgConfidence)
	}

	m.ResetStats()
	if g := m.GlobalStats(); g.TurnsProcessed != 0 {
		t.Error("reset must clear counters")
	}
}
