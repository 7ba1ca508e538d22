package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allConfigKeys = []string{
	"MPGATEWAY_LISTEN_ADDR",
	"MPGATEWAY_BROKER_URL",
	"MPGATEWAY_WEBHOOK_SECRET",
	"MPGATEWAY_APP_ID",
	"MPGATEWAY_API_BASE_URL",
	"MPGATEWAY_DB_PATH",
	"MPGATEWAY_REDIS_ADDR",
	"MPGATEWAY_HTTP_TIMEOUT",
	"MPGATEWAY_EVENT_RETENTION",
}

// isolateConfigEnv clears every configuration variable for the duration of
// the test. t.Setenv registers the restore; Unsetenv removes the value.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoad_RequiresBrokerURL(t *testing.T) {
	isolateConfigEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MPGATEWAY_BROKER_URL")
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("MPGATEWAY_BROKER_URL", "http://broker.local/token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "http://broker.local/token", cfg.BrokerURL)
	assert.Equal(t, "3", cfg.AppID)
	assert.Equal(t, "https://api.mercadopago.com", cfg.APIBaseURL)
	assert.Equal(t, "mpgateway.db", cfg.DBPath)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 12*time.Hour, cfg.EventRetention)
	assert.False(t, cfg.HasWebhookSecret())
}

func TestLoad_Overrides(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("MPGATEWAY_BROKER_URL", "http://broker.local/token")
	t.Setenv("MPGATEWAY_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("MPGATEWAY_WEBHOOK_SECRET", "whsec-abc")
	t.Setenv("MPGATEWAY_APP_ID", "7")
	t.Setenv("MPGATEWAY_API_BASE_URL", "http://mp.test")
	t.Setenv("MPGATEWAY_DB_PATH", "/tmp/gw.db")
	t.Setenv("MPGATEWAY_REDIS_ADDR", "localhost:6379")
	t.Setenv("MPGATEWAY_HTTP_TIMEOUT", "30s")
	t.Setenv("MPGATEWAY_EVENT_RETENTION", "6h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "whsec-abc", cfg.WebhookSecret)
	assert.Equal(t, "7", cfg.AppID)
	assert.Equal(t, "http://mp.test", cfg.APIBaseURL)
	assert.Equal(t, "/tmp/gw.db", cfg.DBPath)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 6*time.Hour, cfg.EventRetention)
	assert.True(t, cfg.HasWebhookSecret())
}

func TestLoad_InvalidDurations(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"http timeout", "MPGATEWAY_HTTP_TIMEOUT"},
		{"event retention", "MPGATEWAY_EVENT_RETENTION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv("MPGATEWAY_BROKER_URL", "http://broker.local/token")
			t.Setenv(tt.key, "not-a-duration")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
