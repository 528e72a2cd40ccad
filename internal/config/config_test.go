package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HOST", "PORT", "CORS_ALLOWED_ORIGINS", "METRICS_PORT", "LOG_LEVEL",
	"READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT",
}

// unsetEnv removes the config variables for the test and restores them afterwards.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		orig, had := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(key, orig)
			} else {
				_ = os.Unsetenv(key)
			}
		})
	}
}

// noEnvFile points Load at a file that does not exist so no stray .env is read.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t)

	cfg, err := Load(nil, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "", cfg.MetricsAddr())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	unsetEnv(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("METRICS_PORT", "9100")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("READ_TIMEOUT", "7s")
	t.Setenv("SHUTDOWN_TIMEOUT", "1m")

	cfg, err := Load(nil, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7*time.Second, cfg.ReadTimeout)
	assert.Equal(t, time.Minute, cfg.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
}

func TestLoadFlagOverridesEnv(t *testing.T) {
	unsetEnv(t)
	t.Setenv("PORT", "9090")

	cfg, err := Load(newFlags(t, "--port", "3000", "--log-level", "warn"), noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadUnchangedFlagKeepsEnv(t *testing.T) {
	unsetEnv(t)
	t.Setenv("PORT", "9090")

	cfg, err := Load(newFlags(t), noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
}

func TestLoadEnvFile(t *testing.T) {
	unsetEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\nMETRICS_PORT=9101\n"), 0o600))

	cfg, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "9101", cfg.MetricsPort)
}

func TestLoadEnvOverridesEnvFile(t *testing.T) {
	unsetEnv(t)
	t.Setenv("PORT", "9090")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\n"), 0o600))

	cfg, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want error
	}{
		{"non numeric port", "PORT", "http", ErrInvalidPort},
		{"port too large", "PORT", "70000", ErrInvalidPort},
		{"negative port", "PORT", "-1", ErrInvalidPort},
		{"bad metrics port", "METRICS_PORT", "x", ErrInvalidPort},
		{"bad log level", "LOG_LEVEL", "loud", ErrInvalidLogLevel},
		{"negative timeout", "IDLE_TIMEOUT", "-5s", ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetEnv(t)
			t.Setenv(tt.key, tt.val)

			cfg, err := Load(nil, noEnvFile(t))
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPortZeroIsValid(t *testing.T) {
	cfg := Default()
	cfg.Port = "0"
	assert.NoError(t, cfg.Validate())
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
	assert.Equal(t, []string{"*"}, splitList("*"))
	assert.Equal(t, []string{"a", "b"}, splitList("a,b"))
}
