package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mkiradani/daotomata-hotel-agent/internal/adapter/chatwoot"
	"github.com/mkiradani/daotomata-hotel-agent/internal/adapter/directus"
	hahttp "github.com/mkiradani/daotomata-hotel-agent/internal/adapter/http"
	"github.com/mkiradani/daotomata-hotel-agent/internal/adapter/litellm"
	hanats "github.com/mkiradani/daotomata-hotel-agent/internal/adapter/nats"
	haotel "github.com/mkiradani/daotomata-hotel-agent/internal/adapter/otel"
	"github.com/mkiradani/daotomata-hotel-agent/internal/adapter/ristretto"
	"github.com/mkiradani/daotomata-hotel-agent/internal/adapter/ws"
	"github.com/mkiradani/daotomata-hotel-agent/internal/config"
	"github.com/mkiradani/daotomata-hotel-agent/internal/logger"
	"github.com/mkiradani/daotomata-hotel-agent/internal/middleware"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/eventbus"
	"github.com/mkiradani/daotomata-hotel-agent/internal/resilience"
	"github.com/mkiradani/daotomata-hotel-agent/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"escalation_enabled", cfg.Escalation.Enabled,
		"threshold", cfg.Escalation.Threshold,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	hotels := directus.New(cfg.Directus.URL, cfg.Directus.Token, cache, cfg.Directus.CacheTTL)

	llmClient := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LiteLLM.Timeout)
	llmClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	platformClient := chatwoot.NewClient(hotels, cfg.Pipeline.PlatformTimeout)
	platformClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	var bus eventbus.Publisher = eventbus.Nop{}
	if cfg.NATS.URL != "" {
		natsBus, err := hanats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = natsBus.Close() }()
		bus = natsBus
	}

	shutdownMeter, err := haotel.InitMeter(ctx, cfg.Logging.Service, cfg.OTel.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownMeter(flushCtx)
	}()

	metrics, err := haotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	hub := ws.NewHub()

	// --- Services ---

	router := service.NewRouter(llmClient, hotels, cfg.LiteLLM.ResponderModel, cfg.LiteLLM.Timeout)

	var assessor service.SelfAssessor
	if cfg.Escalation.EvaluationModel != "" {
		assessor = service.NewLLMSelfAssessor(llmClient, cfg.Escalation.EvaluationModel)
	}
	evaluator := service.NewEvaluator(assessor, cfg.LiteLLM.Timeout)

	escalationMgr := service.NewEscalationManager(platformClient, cfg.Escalation, cfg.Pipeline)
	pipeline := service.NewPipeline(router, evaluator, escalationMgr, hotels, bus, hub, metrics, cfg.Pipeline.EventTTL, cfg.Pipeline.QueueCapacity)
	chatSvc := service.NewChatService(router, evaluator, escalationMgr)

	// --- HTTP ---

	handlers := hahttp.NewHandlers(pipeline, chatSvc, escalationMgr, hotels, llmClient, hub.HandleWS)

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(hahttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(hahttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(limiter.Handler)
	r.Use(haotel.HTTPMiddleware(cfg.Logging.Service))

	hahttp.MountRoutes(r, handlers, cfg.Webhook)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	// Let detached pipeline work finish before the process exits.
	pipeline.WaitIdle()
	return nil
}
