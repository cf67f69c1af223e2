package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("ROOM_ID", "room1")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIBase)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WSURL)
	assert.Equal(t, "room1", cfg.RoomID)
}

func TestLoadRelay(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("DEV_TOKENS", "false")

	cfg, err := LoadRelay()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.DevTokens)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
}

func TestLoadRelayDefaults(t *testing.T) {
	cfg, err := LoadRelay()
	require.NoError(t, err)
	assert.False(t, cfg.DevTokens)
	assert.Equal(t, DefaultJWTSecret, cfg.JWTSecret)
}

func TestLoadRelayDevTokensNeedSecret(t *testing.T) {
	t.Setenv("DEV_TOKENS", "true")
	_, err := LoadRelay()
	assert.ErrorIs(t, err, ErrInsecureDevTokens)

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := LoadRelay()
	require.NoError(t, err)
	assert.True(t, cfg.DevTokens)
}

func TestLoadRelayBadPort(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := LoadRelay()
	assert.Error(t, err)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Level("debug"))
	assert.Equal(t, slog.LevelWarn, Level("WARN"))
	assert.Equal(t, slog.LevelInfo, Level("loud"))
}
