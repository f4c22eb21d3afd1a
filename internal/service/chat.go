package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkiradani/daotomata-hotel-agent/internal/domain"
	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/conversation"
)

// ChatRequest is one synchronous chat turn.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	HotelID   string `json:"hotel_id,omitempty"`
}

// ChatResponse mirrors the sync chat contract.
type ChatResponse struct {
	Message         string   `json:"message"`
	SessionID       string   `json:"session_id"`
	ResponderUsed   string   `json:"responder_used"`
	ToolsUsed       []string `json:"tools_used"`
	HandoffOccurred bool     `json:"handoff_occurred"`
}

// ChatService serves the direct chat API. Each session keeps its own
// in-memory conversation; there is no external platform conversation, so
// escalation decisions are recorded but platform side effects are skipped.
type ChatService struct {
	router     *Router
	evaluator  *Evaluator
	escalation *EscalationManager

	mu       sync.Mutex // guards sessions only
	sessions map[string]*chatSession
}

// chatSession pairs a conversation with its own lock. Turns within one
// session are serialized; distinct sessions proceed in parallel.
type chatSession struct {
	mu   sync.Mutex
	conv *conversation.Conversation
}

// NewChatService creates the chat service.
func NewChatService(router *Router, evaluator *Evaluator, escalation *EscalationManager) *ChatService {
	return &ChatService{
		router:     router,
		evaluator:  evaluator,
		escalation: escalation,
		sessions:   make(map[string]*chatSession),
	}
}

// Handle processes one synchronous chat turn. Unlike the webhook path the
// caller waits for the full loop, so the answer and escalation outcome are
// returned directly.
func (s *ChatService) Handle(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}

	sess := s.session(req.SessionID, req.HotelID)
	conv := sess.conv

	hctx, err := s.router.hotels.GetHotelContext(ctx, conv.HotelID)
	if err != nil {
		slog.Warn("hotel context lookup failed for chat session",
			"hotel_id", conv.HotelID,
			"session_id", conv.SessionID,
			"error", err,
		)
		hctx = nil
	}

	// Only this session's lock is held across the LLM call, so other
	// sessions are never blocked behind it.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	turn := conv.Append(uuid.NewString(), req.Message, time.Now().UTC())

	result, err := s.router.Route(ctx, conv, hctx, req.Message)
	if err != nil {
		slog.Warn("routing failed for chat turn, using triage fallback",
			"session_id", conv.SessionID,
			"error", err,
		)
		result = s.router.Fallback()
		conv.Assigned = result.Variant
	}

	score := s.evaluator.Evaluate(ctx, result.Answer, contextWindow(conv), req.Message)
	turn.Attach(result.Answer, result.Variant, &score, time.Now().UTC())

	outcome := s.escalation.DecideAndApply(ctx, conv.HotelID, 0, turn.ID, req.Message, result.Answer, score)

	return &ChatResponse{
		Message:         outcome.DeliveredText,
		SessionID:       conv.SessionID,
		ResponderUsed:   string(result.Variant),
		ToolsUsed:       result.ToolsUsed,
		HandoffOccurred: len(result.Handoffs) > 0,
	}, nil
}

// session returns an existing session or creates a new one.
func (s *ChatService) session(sessionID, hotelID string) *chatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		if sess, ok := s.sessions[sessionID]; ok {
			return sess
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess := &chatSession{
		conv: &conversation.Conversation{
			HotelID:   hotelID,
			SessionID: sessionID,
			CreatedAt: time.Now().UTC(),
		},
	}
	s.sessions[sessionID] = sess
	return sess
}

// SessionCount returns the number of live chat sessions.
func (s *ChatService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
