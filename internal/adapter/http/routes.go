package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/mkiradani/daotomata-hotel-agent/internal/config"
	"github.com/mkiradani/daotomata-hotel-agent/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, webhookCfg config.Webhook) {
	// Platform webhooks (outside the API group, token-verified)
	r.Route("/webhook/chatwoot", func(r chi.Router) {
		r.With(middleware.WebhookToken(webhookCfg.Token, "X-Webhook-Token")).
			Post("/{hotel_id}", h.HandleWebhook)
		r.Get("/test/{hotel_id}", h.HandleWebhookTest)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)

		r.Get("/escalations/stats", h.HandleGlobalStats)
		r.Get("/escalations/stats/{hotel_id}", h.HandleTenantStats)
		r.Post("/escalations/force", h.HandleForceEscalate)
		r.Post("/escalations/resolve", h.HandleResolve)
	})

	r.Get("/health", h.HandleHealth)

	if h.wsHandler != nil {
		r.Get("/ws", h.wsHandler)
	}
}
