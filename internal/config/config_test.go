package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// unsetEnv clears the given variables for the test while keeping the
// original values restored afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t,
		"SERVER_HOST", "SERVER_PORT", "ENV", "PUBLIC_URL",
		"SMTP_FAILURE_THRESHOLD", "SMTP_CONNECT_TIMEOUT", "SMTP_DEFAULT_MAX_SEND_RATE",
		"WORKER_CONCURRENCY", "QUEUE_BATCH_SIZE", "JWT_EXPIRY_HOURS", "REDIS_ADDR",
	)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "localhost", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "development", cfg.Server.Env)
	require.Equal(t, "http://localhost:8080", cfg.Server.PublicURL)
	require.Equal(t, 3, cfg.SMTP.FailureThreshold)
	require.Equal(t, 10, cfg.SMTP.ConnectTimeoutSeconds)
	require.Equal(t, 10, cfg.Worker.Concurrency)
	require.Equal(t, 20, cfg.Worker.QueueBatchSize)
	require.Equal(t, 24, cfg.JWT.ExpiryHours)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("PUBLIC_URL", "https://mail.tern.sh")
	t.Setenv("SMTP_FAILURE_THRESHOLD", "5")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "https://mail.tern.sh", cfg.Server.PublicURL)
	require.Equal(t, 5, cfg.SMTP.FailureThreshold)
	require.Equal(t, 2, cfg.Redis.DB)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadRequiresSecretsInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	unsetEnv(t, "JWT_SECRET", "CRYPTO_SECRET")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "prod-jwt-secret")
	_, err = Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "CRYPTO_SECRET")

	t.Setenv("CRYPTO_SECRET", "prod-crypto-secret")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "prod-jwt-secret", cfg.JWT.Secret)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 9000, Env: "staging", PublicURL: "https://mail.tern.sh"},
		SMTP:   SMTPConfig{FailureThreshold: 4, ConnectTimeoutSeconds: 7, DefaultMaxSendRate: 120},
		Worker: WorkerConfig{Concurrency: 3, QueueBatchSize: 50},
	}

	path := filepath.Join(t.TempDir(), "tern.json")
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = LoadFromFile(path)
	require.Error(t, err)
}

func TestGetConfigReturnsLoadedInstance(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Same(t, cfg, GetConfig())
}
