// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr     string
	BrokerURL      string
	WebhookSecret  string
	AppID          string
	APIBaseURL     string
	DBPath         string
	RedisAddr      string
	HTTPTimeout    time.Duration
	EventRetention time.Duration
}

// HasWebhookSecret returns true when a webhook signing secret is configured.
// Without one every inbound notification fails signature verification, which
// is the intended fail-closed behavior.
func (c *Config) HasWebhookSecret() bool {
	return c.WebhookSecret != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. MPGATEWAY_BROKER_URL is required. Optional variables with defaults:
// MPGATEWAY_LISTEN_ADDR (127.0.0.1:8080), MPGATEWAY_APP_ID ("3"),
// MPGATEWAY_API_BASE_URL (https://api.mercadopago.com), MPGATEWAY_DB_PATH
// (mpgateway.db), MPGATEWAY_HTTP_TIMEOUT (10s), MPGATEWAY_EVENT_RETENTION
// (12h). MPGATEWAY_REDIS_ADDR switches the event ledger to Redis when set.
func Load() (*Config, error) {
	brokerURL := os.Getenv("MPGATEWAY_BROKER_URL")
	if brokerURL == "" {
		return nil, fmt.Errorf("MPGATEWAY_BROKER_URL is required")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("MPGATEWAY_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	appID := "3"
	if v, ok := os.LookupEnv("MPGATEWAY_APP_ID"); ok {
		appID = v
	}

	apiBaseURL := "https://api.mercadopago.com"
	if v, ok := os.LookupEnv("MPGATEWAY_API_BASE_URL"); ok {
		apiBaseURL = v
	}

	dbPath := "mpgateway.db"
	if v, ok := os.LookupEnv("MPGATEWAY_DB_PATH"); ok {
		dbPath = v
	}

	httpTimeout := 10 * time.Second
	if v, ok := os.LookupEnv("MPGATEWAY_HTTP_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("MPGATEWAY_HTTP_TIMEOUT has invalid duration %q: %w", v, err)
		}
		httpTimeout = parsed
	}

	eventRetention := 12 * time.Hour
	if v, ok := os.LookupEnv("MPGATEWAY_EVENT_RETENTION"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("MPGATEWAY_EVENT_RETENTION has invalid duration %q: %w", v, err)
		}
		eventRetention = parsed
	}

	return &Config{
		ListenAddr:     listenAddr,
		BrokerURL:      brokerURL,
		WebhookSecret:  os.Getenv("MPGATEWAY_WEBHOOK_SECRET"),
		AppID:          appID,
		APIBaseURL:     apiBaseURL,
		DBPath:         dbPath,
		RedisAddr:      os.Getenv("MPGATEWAY_REDIS_ADDR"),
		HTTPTimeout:    httpTimeout,
		EventRetention: eventRetention,
	}, nil
}
