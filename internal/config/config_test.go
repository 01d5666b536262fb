package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-arena/internal/auth"
)

var allKeys = []string{
	"HTTP_ADDR", "REDIS_URL", "DATABASE_URL", "AUTH_SERVICE_URL", "AUTH_TOKENS",
	"CHALLENGE_TTL_SEC", "CHALLENGE_SWEEP_SEC", "RATING_WINDOW", "MESSAGES_DIR",
	"SHUTDOWN_TIMEOUT_SEC", "SEND_QUEUE_SIZE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_TOKENS", "t1=alice")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, time.Minute, cfg.ChallengeSweep)
	assert.Equal(t, 200, cfg.RatingWindow)
	assert.Equal(t, 20*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 256, cfg.SendQueueSize)
	assert.Equal(t, auth.Identity{Login: "alice"}, cfg.AuthTokens["t1"])
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_SERVICE_URL", " http://auth:9000 ")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("CHALLENGE_TTL_SEC", "30")
	t.Setenv("RATING_WINDOW", "0")
	t.Setenv("SEND_QUEUE_SIZE", "-4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://auth:9000", cfg.AuthServiceURL)
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.ChallengeTTL)
	assert.Equal(t, 0, cfg.RatingWindow)
	assert.Equal(t, 256, cfg.SendQueueSize)
}

func TestLoad_RequiresIdentitySource(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("AUTH_TOKENS", "broken")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("AUTH_TOKENS")
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("AUTH_TOKENS=t9=zed:Zed\n"), 0o600))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	t.Cleanup(func() { os.Unsetenv("AUTH_TOKENS") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{Login: "zed", DisplayName: "Zed"}, cfg.AuthTokens["t9"])
}
