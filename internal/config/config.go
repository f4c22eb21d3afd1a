// Package config provides hierarchical configuration loading for the hotel agent.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the hotel agent core service.
type Config struct {
	Server     Server     `yaml:"server"`
	Directus   Directus   `yaml:"directus"`
	LiteLLM    LiteLLM    `yaml:"litellm"`
	NATS       NATS       `yaml:"nats"`
	Logging    Logging    `yaml:"logging"`
	Breaker    Breaker    `yaml:"breaker"`
	Rate       Rate       `yaml:"rate"`
	Escalation Escalation `yaml:"escalation"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	Webhook    Webhook    `yaml:"webhook"`
	Cache      Cache      `yaml:"cache"`
	OTel       OTel       `yaml:"otel"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Directus holds the hotel context store configuration.
type Directus struct {
	URL      string        `yaml:"url"`
	Token    string        `yaml:"token"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// LiteLLM holds LiteLLM proxy configuration for responder and evaluator calls.
type LiteLLM struct {
	URL            string        `yaml:"url"`
	MasterKey      string        `yaml:"master_key"`
	ResponderModel string        `yaml:"responder_model"`
	Timeout        time.Duration `yaml:"timeout"`
}

// NATS holds the optional operational event bus configuration.
// An empty URL disables publishing.
type NATS struct {
	URL string `yaml:"url"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Breaker holds circuit breaker configuration for external HTTP calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds rate limiter configuration for the public endpoints.
type Rate struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxIdleTime       time.Duration `yaml:"max_idle_time"`
}

// Escalation holds the human-handoff policy. Threshold must be in [0,1].
type Escalation struct {
	Enabled         bool    `yaml:"enabled"`
	Threshold       float64 `yaml:"threshold"`
	EvaluationModel string  `yaml:"evaluation_model"`
}

// Pipeline holds background turn-processing configuration.
type Pipeline struct {
	QueueCapacity   int           `yaml:"queue_capacity"`    // per-conversation queue depth
	EventTTL        time.Duration `yaml:"event_ttl"`         // idempotency ledger window
	PlatformTimeout time.Duration `yaml:"platform_timeout"`  // per platform API call
	StatusRetries   int           `yaml:"status_retries"`    // attempts for the status transition
	StatusBackoff   time.Duration `yaml:"status_backoff"`    // initial backoff between attempts
}

// Webhook holds inbound webhook verification configuration.
// An empty token disables verification (local development only).
type Webhook struct {
	Token string `yaml:"token"`
}

// Cache holds in-process cache sizing.
type Cache struct {
	MaxSizeMB int64 `yaml:"max_size_mb"`
}

// OTel holds the OTLP metrics exporter configuration.
// An empty endpoint disables the exporter.
type OTel struct {
	Endpoint string `yaml:"endpoint"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8000",
			CORSOrigin: "http://localhost:3000",
		},
		Directus: Directus{
			URL:      "http://localhost:8055",
			CacheTTL: 5 * time.Minute,
		},
		LiteLLM: LiteLLM{
			URL:            "http://localhost:4000",
			ResponderModel: "openai/gpt-4o",
			Timeout:        30 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "hotel-agent",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Rate: Rate{
			RequestsPerSecond: 10,
			Burst:             100,
			CleanupInterval:   time.Minute,
			MaxIdleTime:       10 * time.Minute,
		},
		Escalation: Escalation{
			Enabled:         true,
			Threshold:       0.7,
			EvaluationModel: "openai/gpt-4o-mini",
		},
		Pipeline: Pipeline{
			QueueCapacity:   64,
			EventTTL:        15 * time.Minute,
			PlatformTimeout: 10 * time.Second,
			StatusRetries:   3,
			StatusBackoff:   500 * time.Millisecond,
		},
		Cache: Cache{
			MaxSizeMB: 64,
		},
	}
}
