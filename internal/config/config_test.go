package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TECHDESK_API_URL", "")
	t.Setenv("TECHDESK_REQUEST_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080", cfg.Client.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Client.RequestTimeout())
	assert.Equal(t, 30*time.Second, cfg.Breaker.OpenTimeout())
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoad_ClientOverrides(t *testing.T) {
	t.Setenv("TECHDESK_API_URL", "https://desk.example.com/")
	t.Setenv("TECHDESK_REQUEST_TIMEOUT_SECONDS", "3")
	t.Setenv("TECHDESK_BREAKER_FAILURES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://desk.example.com", cfg.Client.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Client.RequestTimeout())
	assert.Equal(t, uint32(3), cfg.Breaker.FailureThreshold)
}

func TestLoad_RejectsSchemelessURL(t *testing.T) {
	t.Setenv("TECHDESK_API_URL", "desk.example.com")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("TECHDESK_API_URL", "")
	t.Setenv("REDIS_DB", "x")

	_, err := Load()
	assert.Error(t, err)
}
