package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Len(t, cfg.AllowedOrigins, 2)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.False(t, cfg.KeepWaitingOnDisconnect)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", "https://class.example.com")
	t.Setenv("WAITING_ROOM_KEEP_ON_DISCONNECT", "true")
	t.Setenv("TURN_SERVER", "turn:turn.example.com:3478")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"https://class.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.KeepWaitingOnDisconnect)
	assert.Equal(t, []string{"turn:turn.example.com:3478"}, cfg.TURNServers())
}

func TestBoolEnvFallsBackOnGarbage(t *testing.T) {
	t.Setenv("WAITING_ROOM_KEEP_ON_DISCONNECT", "maybe")

	cfg := Load()
	assert.False(t, cfg.KeepWaitingOnDisconnect)
}

func TestTURNServersEmptyWithoutHost(t *testing.T) {
	t.Setenv("TURN_SERVER", "")

	cfg := Load()
	assert.Nil(t, cfg.TURNServers())
	assert.NotEmpty(t, cfg.STUNServers())
}
