// Package http exposes the webhook, chat, and diagnostics endpoints.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/webhook"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/hotelstore"
	"github.com/mkiradani/daotomata-hotel-agent/internal/service"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// HealthChecker reports whether an upstream collaborator is reachable.
type HealthChecker interface {
	Health(ctx context.Context) (bool, error)
}

// Handlers holds the dependencies for all HTTP endpoints.
type Handlers struct {
	pipeline   *service.Pipeline
	chat       *service.ChatService
	escalation *service.EscalationManager
	hotels     hotelstore.Store
	llmHealth  HealthChecker
	wsHandler  http.HandlerFunc
}

// NewHandlers creates the handler set. llmHealth and wsHandler may be nil.
func NewHandlers(pipeline *service.Pipeline, chat *service.ChatService, escalation *service.EscalationManager, hotels hotelstore.Store, llmHealth HealthChecker, wsHandler http.HandlerFunc) *Handlers {
	return &Handlers{
		pipeline:   pipeline,
		chat:       chat,
		escalation: escalation,
		hotels:     hotels,
		llmHealth:  llmHealth,
		wsHandler:  wsHandler,
	}
}

// chatwootPayload mirrors the fields of a Chatwoot webhook we consume.
type chatwootPayload struct {
	Event        string `json:"event"`
	ID           int    `json:"id"`
	Content      string `json:"content"`
	MessageType  string `json:"message_type"`
	Conversation struct {
		ID int `json:"id"`
	} `json:"conversation"`
	Sender struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"sender"`
}

// HandleWebhook ingests one Chatwoot event for the hotel in the path.
// Every well-formed request is acknowledged with 200 regardless of whether
// the event is processed, so the platform does not retry dropped events.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	hotelID := urlParam(r, "hotel_id")
	if hotelID == "" {
		writeError(w, http.StatusBadRequest, "hotel_id is required")
		return
	}

	payload, ok := readJSON[chatwootPayload](w, r, maxBodyBytes)
	if !ok {
		return
	}

	ev := &webhook.Event{
		Event:          payload.Event,
		HotelID:        hotelID,
		ConversationID: payload.Conversation.ID,
		MessageID:      payload.ID,
		Content:        payload.Content,
		MessageType:    payload.MessageType,
		SenderType:     payload.Sender.Type,
		SenderName:     payload.Sender.Name,
	}

	accepted, reason, err := h.pipeline.Ingest(r.Context(), ev)
	switch {
	case errors.Is(err, service.ErrDuplicateEvent):
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
	case err != nil:
		// Malformed events are acknowledged and dropped, never retried.
		slog.Warn("webhook event rejected", "hotel_id", hotelID, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": err.Error()})
	case !accepted:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": reason})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	}
}

// HandleWebhookTest verifies that the hotel is resolvable and configured.
func (h *Handlers) HandleWebhookTest(w http.ResponseWriter, r *http.Request) {
	hotelID := urlParam(r, "hotel_id")
	if hotelID == "" {
		writeError(w, http.StatusBadRequest, "hotel_id is required")
		return
	}

	hctx, err := h.hotels.GetHotelContext(r.Context(), hotelID)
	if err != nil {
		writeDomainError(w, err, "hotel not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hotel_id":            hctx.HotelID,
		"hotel_name":          hctx.Name,
		"chatwoot_configured": hctx.Chatwoot != nil,
	})
}

// HandleChat serves one synchronous chat turn.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.ChatRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}

	resp, err := h.chat.Handle(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "chat session not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGlobalStats returns cross-tenant escalation statistics.
func (h *Handlers) HandleGlobalStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.escalation.GlobalStats())
}

// HandleTenantStats returns one hotel's escalation statistics.
func (h *Handlers) HandleTenantStats(w http.ResponseWriter, r *http.Request) {
	hotelID := urlParam(r, "hotel_id")
	if hotelID == "" {
		writeError(w, http.StatusBadRequest, "hotel_id is required")
		return
	}
	writeJSON(w, http.StatusOK, h.escalation.TenantStats(hotelID))
}

type forceEscalateRequest struct {
	HotelID        string `json:"hotel_id"`
	ConversationID int    `json:"conversation_id"`
	Reason         string `json:"reason"`
}

// HandleForceEscalate triggers an operator-requested escalation.
func (h *Handlers) HandleForceEscalate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[forceEscalateRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if req.HotelID == "" {
		writeError(w, http.StatusBadRequest, "hotel_id is required")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	rec, err := h.escalation.ForceEscalate(r.Context(), req.HotelID, req.ConversationID, req.Reason)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type resolveRequest struct {
	HotelID        string `json:"hotel_id"`
	ConversationID int    `json:"conversation_id"`
}

// HandleResolve marks a conversation resolved on the platform.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[resolveRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if req.HotelID == "" || req.ConversationID == 0 {
		writeError(w, http.StatusBadRequest, "hotel_id and conversation_id are required")
		return
	}

	if err := h.escalation.Resolve(r.Context(), req.HotelID, req.ConversationID); err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// HandleHealth reports the service and its collaborators.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
	}
	if h.llmHealth != nil {
		ok, err := h.llmHealth.Health(r.Context())
		resp["llm"] = ok
		if err != nil {
			resp["llm_error"] = err.Error()
		}
	}
	if h.chat != nil {
		resp["chat_sessions"] = h.chat.SessionCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
