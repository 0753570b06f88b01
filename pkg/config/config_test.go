package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("NOTIFICATION_TTL_HOURS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 30*24*time.Hour, cfg.NotificationTTL)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHAT_MAX_UPLOAD_BYTES", "2048")
	t.Setenv("HTTP_RATE_WINDOW_SECONDS", "5")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, ,https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	assert.Equal(t, 5*time.Second, cfg.HTTPRateWindow)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
}
