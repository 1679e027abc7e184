package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/push-dispatcher/internal/apperr"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"HTTP_PORT", "METRICS_PORT", "PROVIDER_TIMEOUT", "KAFKA_BROKERS", "RUN_ONCE",
		"RECIPIENT_TABLE", "RECIPIENT_TOKEN_COLUMN", "DISPATCH_EVENTS_TOPIC"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SSM_PARAMETER_PATH", "/expo-push-api")
	t.Setenv("API_KEY", "secret")

	cfg, err := LoadConfig("pushapi", true)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9080, cfg.MetricsPort)
	assert.Equal(t, "users", cfg.RecipientTable)
	assert.Equal(t, "push_token", cfg.RecipientColumn)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "push.dispatch", cfg.DispatchTopic)
	assert.Equal(t, "pushapi", cfg.ServiceName)
	assert.False(t, cfg.RunOnce)
}

func TestLoadConfigMissingVariables(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		apiKey        string
		requireAPIKey bool
		missing       string
	}{
		{name: "parameter path", apiKey: "k", requireAPIKey: true, missing: "SSM_PARAMETER_PATH"},
		{name: "api key", path: "/p", requireAPIKey: true, missing: "API_KEY"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("SSM_PARAMETER_PATH", tc.path)
			t.Setenv("API_KEY", tc.apiKey)

			_, err := LoadConfig("pushapi", tc.requireAPIKey)
			require.Error(t, err)
			assert.Equal(t, apperr.KindMissingEnvVar, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tc.missing)
		})
	}
}

func TestLoadConfigAPIKeyOptionalForScheduler(t *testing.T) {
	t.Setenv("SSM_PARAMETER_PATH", "/p")
	t.Setenv("API_KEY", "")

	_, err := LoadConfig("scheduler", false)
	require.NoError(t, err)
}

func TestLoadConfigParsesOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SSM_PARAMETER_PATH", "/p")
	t.Setenv("RUN_ONCE", "true")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := LoadConfig("scheduler", false)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, 10000, cfg.MetricsPort)
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.RunOnce)
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SSM_PARAMETER_PATH", "/p")
	t.Setenv("PROVIDER_TIMEOUT", "soon")

	_, err := LoadConfig("scheduler", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVIDER_TIMEOUT")
}
