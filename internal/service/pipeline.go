package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	otelad "github.com/mkiradani/daotomata-hotel-agent/internal/adapter/otel"
	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/conversation"
	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/webhook"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/eventbus"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/hotelstore"
)

// ErrDuplicateEvent marks an inbound event whose identifier was already
// processed within the idempotency window.
var ErrDuplicateEvent = errors.New("duplicate event")

// Broadcaster pushes live events to connected operator dashboards.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Pipeline runs the routing, evaluation, and escalation loop for webhook
// turns. Ingest acknowledges before the loop completes; processing is
// detached and serialized per conversation.
type Pipeline struct {
	router     *Router
	evaluator  *Evaluator
	escalation *EscalationManager
	hotels     hotelstore.Store
	bus        eventbus.Publisher
	hub        Broadcaster
	metrics    *otelad.Metrics

	eventTTL time.Duration
	capacity int

	ledgerMu sync.Mutex
	ledger   map[string]time.Time

	convMu sync.Mutex
	convs  map[string]*convState

	inflight sync.WaitGroup
}

// convState is one conversation's serialized work queue plus its in-memory
// turn log. Guarded by Pipeline.convMu except for conv, which only the
// single running worker touches.
type convState struct {
	conv    *conversation.Conversation
	queue   []*webhook.Event
	running bool
}

// NewPipeline wires the turn-processing loop. bus and hub may be nil.
func NewPipeline(router *Router, evaluator *Evaluator, escalation *EscalationManager, hotels hotelstore.Store, bus eventbus.Publisher, hub Broadcaster, metrics *otelad.Metrics, eventTTL time.Duration, capacity int) *Pipeline {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if eventTTL == 0 {
		eventTTL = 15 * time.Minute
	}
	if capacity < 1 {
		capacity = 64
	}
	return &Pipeline{
		router:     router,
		evaluator:  evaluator,
		escalation: escalation,
		hotels:     hotels,
		bus:        bus,
		hub:        hub,
		metrics:    metrics,
		eventTTL:   eventTTL,
		capacity:   capacity,
		ledger:     make(map[string]time.Time),
		convs:      make(map[string]*convState),
	}
}

// Ingest validates and enqueues one inbound event. It returns as soon as
// the event is accepted; the pipeline itself runs detached and is never
// cancelled once started, even if the caller's connection drops.
//
// Returns (false, reason, nil) for events that are acknowledged and
// dropped (wrong type, non-guest sender), ErrDuplicateEvent for replays
// inside the TTL window, and a validation error for malformed payloads.
func (p *Pipeline) Ingest(ctx context.Context, ev *webhook.Event) (bool, string, error) {
	if err := ev.Validate(); err != nil {
		return false, "", err
	}
	if ok, reason := ev.Processable(); !ok {
		return false, reason, nil
	}
	if !p.markSeen(ev.DedupeKey()) {
		if p.metrics != nil {
			p.metrics.EventsDeduplicated.Add(ctx, 1)
		}
		return false, "", fmt.Errorf("%s: %w", ev.DedupeKey(), ErrDuplicateEvent)
	}

	p.enqueue(context.WithoutCancel(ctx), ev)
	return true, "", nil
}

// markSeen records an event identifier in the idempotency ledger. Reports
// false when the identifier was already present within the TTL window.
func (p *Pipeline) markSeen(key string) bool {
	now := time.Now()

	p.ledgerMu.Lock()
	defer p.ledgerMu.Unlock()

	// Opportunistic purge keeps the ledger bounded by the event rate.
	for k, at := range p.ledger {
		if now.Sub(at) > p.eventTTL {
			delete(p.ledger, k)
		}
	}

	if at, ok := p.ledger[key]; ok && now.Sub(at) <= p.eventTTL {
		return false
	}
	p.ledger[key] = now
	return true
}

// conversationKey scopes serialization to the tenant + platform conversation.
func conversationKey(ev *webhook.Event) string {
	return fmt.Sprintf("%s:%d", ev.HotelID, ev.ConversationID)
}

// enqueue appends the event to its conversation's FIFO queue and starts a
// worker when none is running. One worker per conversation at most, so side
// effects apply strictly in arrival order; distinct conversations proceed
// in parallel.
func (p *Pipeline) enqueue(ctx context.Context, ev *webhook.Event) {
	key := conversationKey(ev)

	p.convMu.Lock()
	cs, ok := p.convs[key]
	if !ok {
		cs = &convState{
			conv: &conversation.Conversation{
				HotelID:    ev.HotelID,
				PlatformID: ev.ConversationID,
				SessionID:  uuid.NewString(),
				CreatedAt:  time.Now().UTC(),
			},
		}
		p.convs[key] = cs
	}
	if len(cs.queue) >= p.capacity {
		p.convMu.Unlock()
		slog.Error("conversation queue full, dropping event",
			"hotel_id", ev.HotelID,
			"conversation_id", ev.ConversationID,
			"capacity", p.capacity,
		)
		return
	}
	cs.queue = append(cs.queue, ev)
	p.inflight.Add(1)
	start := !cs.running
	if start {
		cs.running = true
	}
	p.convMu.Unlock()

	if start {
		go p.drain(ctx, key, cs)
	}
}

// drain processes the conversation's queue until it is empty, then parks.
func (p *Pipeline) drain(ctx context.Context, key string, cs *convState) {
	for {
		p.convMu.Lock()
		if len(cs.queue) == 0 {
			cs.running = false
			p.convMu.Unlock()
			return
		}
		ev := cs.queue[0]
		cs.queue = cs.queue[1:]
		p.convMu.Unlock()

		p.process(ctx, cs.conv, ev)
		p.inflight.Done()
	}
}

// process runs routing, evaluation, and the escalation decision for one
// turn. Failures degrade; the guest always gets some answer.
func (p *Pipeline) process(ctx context.Context, conv *conversation.Conversation, ev *webhook.Event) {
	start := time.Now()
	turn := conv.Append(uuid.NewString(), ev.Content, start.UTC())

	hctx, err := p.hotels.GetHotelContext(ctx, ev.HotelID)
	if err != nil {
		slog.Error("hotel context lookup failed", "hotel_id", ev.HotelID, "error", err)
		hctx = nil
	}

	result, err := p.router.Route(ctx, conv, hctx, ev.Content)
	if err != nil {
		slog.Warn("routing failed, using triage fallback",
			"hotel_id", ev.HotelID,
			"conversation_id", ev.ConversationID,
			"error", err,
		)
		result = p.router.Fallback()
		conv.Assigned = result.Variant
	}

	for _, h := range result.Handoffs {
		p.publishHandoff(ctx, ev.HotelID, string(h.From), string(h.To), h.Reason)
	}

	score := p.evaluator.Evaluate(ctx, result.Answer, contextWindow(conv), ev.Content)
	turn.Attach(result.Answer, result.Variant, &score, time.Now().UTC())

	outcome := p.escalation.DecideAndApply(ctx, ev.HotelID, ev.ConversationID, turn.ID, ev.Content, result.Answer, score)

	if p.metrics != nil {
		p.metrics.TurnsProcessed.Add(ctx, 1)
		p.metrics.ConfidenceScore.Record(ctx, score.Value)
		p.metrics.LLMLatency.Record(ctx, time.Since(start).Seconds())
		if outcome.Escalated {
			p.metrics.Escalations.Add(ctx, 1)
		}
	}

	p.publishTurn(ctx, ev, turn.ID, string(result.Variant), score.Value, outcome.Escalated)
	if outcome.Escalated {
		p.publishEscalation(ctx, ev, turn.ID, score.Value, score.Reasons)
	}

	slog.Info("turn processed",
		"hotel_id", ev.HotelID,
		"conversation_id", ev.ConversationID,
		"turn_id", turn.ID,
		"variant", result.Variant,
		"score", score.Value,
		"escalated", outcome.Escalated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// WaitIdle blocks until every accepted event has finished processing.
// Test hook.
func (p *Pipeline) WaitIdle() {
	p.inflight.Wait()
}

// contextWindow renders the most recent completed turns for the
// self-assessment prompt.
func contextWindow(conv *conversation.Conversation) string {
	const window = 3
	var out string
	count := 0
	for i := len(conv.Turns) - 1; i >= 0 && count < window; i-- {
		t := &conv.Turns[i]
		if t.Answer == "" {
			continue
		}
		out = "Guest: " + t.GuestMessage + "\nAssistant: " + t.Answer + "\n" + out
		count++
	}
	return out
}

func (p *Pipeline) publishTurn(ctx context.Context, ev *webhook.Event, turnID, variant string, score float64, escalated bool) {
	payload := eventbus.TurnProcessedPayload{
		HotelID:        ev.HotelID,
		ConversationID: ev.ConversationID,
		TurnID:         turnID,
		Variant:        variant,
		Score:          score,
		Escalated:      escalated,
	}
	p.publish(ctx, eventbus.SubjectTurnProcessed, payload)
	if p.hub != nil {
		p.hub.BroadcastEvent(ctx, "turn.processed", payload)
	}
}

func (p *Pipeline) publishEscalation(ctx context.Context, ev *webhook.Event, turnID string, score float64, reasons []string) {
	payload := eventbus.EscalatedPayload{
		HotelID:        ev.HotelID,
		ConversationID: ev.ConversationID,
		TurnID:         turnID,
		Score:          score,
		Reasons:        reasons,
	}
	p.publish(ctx, eventbus.SubjectEscalated, payload)
	if p.hub != nil {
		p.hub.BroadcastEvent(ctx, "escalation.triggered", payload)
	}
}

func (p *Pipeline) publishHandoff(ctx context.Context, hotelID, from, to, reason string) {
	payload := eventbus.HandoffPayload{HotelID: hotelID, From: from, To: to, Reason: reason}
	p.publish(ctx, eventbus.SubjectHandoff, payload)
	if p.hub != nil {
		p.hub.BroadcastEvent(ctx, "responder.handoff", payload)
	}
	if p.metrics != nil {
		p.metrics.Handoffs.Add(ctx, 1)
	}
}

// publish sends to the operational bus. Best effort: the pipeline never
// depends on publish success.
func (p *Pipeline) publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("event marshal failed", "subject", subject, "error", err)
		return
	}
	if err := p.bus.Publish(ctx, subject, data); err != nil {
		slog.Warn("event publish failed", "subject", subject, "error", err)
	}
}
