package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "hotelagent.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "HOTELAGENT_PORT")
	setString(&cfg.Server.CORSOrigin, "HOTELAGENT_CORS_ORIGIN")
	setString(&cfg.Directus.URL, "DIRECTUS_URL")
	setString(&cfg.Directus.Token, "DIRECTUS_TOKEN")
	setDuration(&cfg.Directus.CacheTTL, "HOTELAGENT_DIRECTUS_CACHE_TTL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.ResponderModel, "HOTELAGENT_RESPONDER_MODEL")
	setDuration(&cfg.LiteLLM.Timeout, "HOTELAGENT_LLM_TIMEOUT")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "HOTELAGENT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "HOTELAGENT_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "HOTELAGENT_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "HOTELAGENT_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "HOTELAGENT_RATE_RPS")
	setInt(&cfg.Rate.Burst, "HOTELAGENT_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "HOTELAGENT_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "HOTELAGENT_RATE_MAX_IDLE_TIME")
	setBool(&cfg.Escalation.Enabled, "HITL_ENABLED")
	setFloat64(&cfg.Escalation.Threshold, "HITL_CONFIDENCE_THRESHOLD")
	setString(&cfg.Escalation.EvaluationModel, "HITL_EVALUATION_MODEL")
	setInt(&cfg.Pipeline.QueueCapacity, "HOTELAGENT_QUEUE_CAPACITY")
	setDuration(&cfg.Pipeline.EventTTL, "HOTELAGENT_EVENT_TTL")
	setDuration(&cfg.Pipeline.PlatformTimeout, "HOTELAGENT_PLATFORM_TIMEOUT")
	setInt(&cfg.Pipeline.StatusRetries, "HOTELAGENT_STATUS_RETRIES")
	setDuration(&cfg.Pipeline.StatusBackoff, "HOTELAGENT_STATUS_BACKOFF")
	setString(&cfg.Webhook.Token, "HOTELAGENT_WEBHOOK_TOKEN")
	setInt64(&cfg.Cache.MaxSizeMB, "HOTELAGENT_CACHE_SIZE_MB")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set and within range.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Directus.URL == "" {
		return errors.New("directus.url is required")
	}
	if cfg.LiteLLM.URL == "" {
		return errors.New("litellm.url is required")
	}
	if cfg.Escalation.Threshold < 0 || cfg.Escalation.Threshold > 1 {
		return errors.New("escalation.threshold must be in [0,1]")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Pipeline.QueueCapacity < 1 {
		return errors.New("pipeline.queue_capacity must be >= 1")
	}
	if cfg.Pipeline.StatusRetries < 1 {
		return errors.New("pipeline.status_retries must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
