package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requiredEnv contains the minimal set of variables Load needs to succeed.
var requiredEnv = map[string]string{
	"ORDERS_URL":                "https://orders.test",
	"ORDERS_API_KEY":            "ok_test",
	"ORDERS_API_SECRET":         "os_test",
	"GOSEND_CLIENT_ID":          "gosend-client",
	"GOSEND_PASS_KEY":           "gosend-pass",
	"GRABEXPRESS_CLIENT_ID":     "grab-client",
	"GRABEXPRESS_CLIENT_SECRET": "grab-secret",
	"LALAMOVE_API_KEY":          "lala-key",
	"LALAMOVE_SECRET":           "lala-secret",
	"BORZO_AUTH_TOKEN":          "borzo-token",
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	for k, v := range requiredEnv {
		t.Setenv(k, v)
	}
}

// TestLoad_Defaults verifies that default values are used when env vars are missing.
func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("APP_ENV")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("SERVER_PORT")
	setRequiredEnv(t)

	cfg, err := Load(".")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 0.6, cfg.Ranking.CostWeight)
	assert.Equal(t, 0.4, cfg.Ranking.TimeWeight)
	assert.Equal(t, 5, cfg.Aggregator.ProviderTimeoutSeconds)
	assert.Equal(t, 10, cfg.Aggregator.GlobalTimeoutSeconds)
	assert.Equal(t, "ID", cfg.Couriers.Lalamove.Market)
	assert.Equal(t, 15, cfg.Tracking.PollIntervalMinutes)
	assert.False(t, cfg.Notifications.Enabled)
}

// TestLoad_EnvVars verifies that environment variables override defaults.
func TestLoad_EnvVars(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RANKING_COST_WEIGHT", "0.7")
	t.Setenv("RANKING_TIME_WEIGHT", "0.3")
	t.Setenv("GOSEND_BASE_URL", "https://gosend.test")

	cfg, err := Load(".")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 0.7, cfg.Ranking.CostWeight)
	assert.Equal(t, 0.3, cfg.Ranking.TimeWeight)
	assert.Equal(t, "https://gosend.test", cfg.Couriers.GoSend.BaseURL)
	assert.Equal(t, "grab-client", cfg.Couriers.GrabExpress.ClientID)
	assert.Equal(t, "borzo-token", cfg.Couriers.Borzo.AuthToken)
}

// TestLoad_MissingRequired verifies that a missing required variable fails Load.
func TestLoad_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LALAMOVE_SECRET", "")

	cfg, err := Load(".")
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "LALAMOVE_SECRET")
}

// TestLoad_ProxyConfig verifies proxy settings are read.
func TestLoad_ProxyConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PROXY_ENABLED", "true")
	t.Setenv("PROXY_HOSTNAME", "geo.proxy.test")
	t.Setenv("PROXY_PORT", "12321")

	cfg, err := Load(".")
	require.NoError(t, err)

	assert.True(t, cfg.Proxy.Enabled)
	assert.Equal(t, "geo.proxy.test", cfg.Proxy.Hostname)
	assert.Equal(t, 12321, cfg.Proxy.Port)
}
