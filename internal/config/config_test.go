package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "/api/socket/io", cfg.Relay.Path)
	assert.Equal(t, 850*time.Millisecond, cfg.Collab.SaveDebounce)
	assert.Equal(t, 256, cfg.Relay.SendBuffer)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SAVE_DEBOUNCE", "500ms")
	t.Setenv("RELAY_POLL_TIMEOUT", "3")
	t.Setenv("RELAY_SEND_BUFFER", "not-a-number")
	t.Setenv("LOG_PRETTY", "yes")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Collab.SaveDebounce)
	assert.Equal(t, 3*time.Second, cfg.Relay.PollTimeout)
	assert.Equal(t, 256, cfg.Relay.SendBuffer)
	assert.True(t, cfg.Log.Pretty)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "notes", SSLMode: "disable", TimeZone: "UTC"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=notes sslmode=disable TimeZone=UTC", d.DSN())
}
