package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the loaders read so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ARATIRI_CONFIG", "ARATIRI_API_BASE_URL", "ARATIRI_HTTP_TIMEOUT", "ARATIRI_REALTIME_TRANSPORT",
		"ARATIRI_RECONNECT_BACKOFF", "ARATIRI_NOTIFICATION_TTL", "ARATIRI_HISTORY_DAYS", "ARATIRI_STORE",
		"ARATIRI_STORE_PATH", "ARATIRI_STORE_PASSPHRASE", "ARATIRI_DATABASE_URL", "DATABASE_URL",
		"PORT", "JWT_SECRET", "JWT_ISSUER", "JWT_TTL_MINUTES", "CORS_ALLOWED_ORIGINS", "SANDBOX_INITIAL_BALANCE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://aratiri.diegoyegros.com/v1", cfg.APIBaseURL)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, TransportSSE, cfg.RealtimeTransport)
	assert.Equal(t, 5*time.Second, cfg.ReconnectBackoff)
	assert.Equal(t, 5*time.Second, cfg.NotificationTTL)
	assert.Equal(t, 30, cfg.HistoryDays)
	assert.Equal(t, StoreFile, cfg.Store)
	assert.True(t, filepath.IsAbs(cfg.StorePath) || cfg.StorePath == filepath.Join("~", ".aratiri", "state.json"))
	assert.Equal(t, "state.json", filepath.Base(cfg.StorePath))
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARATIRI_API_BASE_URL", "http://localhost:8080/v1/")
	t.Setenv("ARATIRI_REALTIME_TRANSPORT", "WebSocket")
	t.Setenv("ARATIRI_RECONNECT_BACKOFF", "250ms")
	t.Setenv("ARATIRI_STORE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/aratiri")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1", cfg.APIBaseURL)
	assert.Equal(t, TransportWebSocket, cfg.RealtimeTransport)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectBackoff)
	assert.Equal(t, "postgres://localhost/aratiri", cfg.DatabaseURL)
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "aratiri.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: memory\nhistory_days: 7\nnotification_ttl: 2s\n"), 0o600))
	t.Setenv("ARATIRI_CONFIG", path)
	t.Setenv("ARATIRI_HISTORY_DAYS", "14")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 14, cfg.HistoryDays, "env overrides the file")
	assert.Equal(t, 2*time.Second, cfg.NotificationTTL)
}

func TestValidate(t *testing.T) {
	base := Config{
		APIBaseURL:        "http://x",
		HTTPTimeout:       time.Second,
		RealtimeTransport: TransportSSE,
		ReconnectBackoff:  time.Second,
		NotificationTTL:   time.Second,
		HistoryDays:       30,
		Store:             StoreMemory,
	}
	require.NoError(t, base.Validate())

	tests := map[string]func(*Config){
		"transport":       func(c *Config) { c.RealtimeTransport = "grpc" },
		"store":           func(c *Config) { c.Store = "redis" },
		"postgres no url": func(c *Config) { c.Store = StorePostgres },
		"file no path":    func(c *Config) { c.Store = StoreFile },
		"zero backoff":    func(c *Config) { c.ReconnectBackoff = 0 },
		"zero days":       func(c *Config) { c.HistoryDays = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadServer(t *testing.T) {
	clearEnv(t)
	_, err := LoadServer()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL_MINUTES", "nope")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a, ,http://b")
	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, "aratiri-sandbox", cfg.JWTIssuer)
	assert.Equal(t, 15*time.Minute, cfg.JWTTTL)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSOrigins)
	assert.Equal(t, int64(100000), cfg.InitialBalanceSats)

	t.Setenv("SANDBOX_INITIAL_BALANCE", "-5")
	_, err = LoadServer()
	require.Error(t, err)
}
