// Package config loads the server configuration from an optional .env file,
// the environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// DefaultPort is used when neither PORT nor --port is given.
const DefaultPort = "8080"

// Keys double as lowercase environment variable names and, with "_" replaced by "-", flag names.
const (
	KeyHost              = "host"
	KeyPort              = "port"
	KeyAllowedOrigins    = "cors_allowed_origins"
	KeyMetricsPort       = "metrics_port"
	KeyLogLevel          = "log_level"
	KeyReadTimeout       = "read_timeout"
	KeyReadHeaderTimeout = "read_header_timeout"
	KeyWriteTimeout      = "write_timeout"
	KeyIdleTimeout       = "idle_timeout"
	KeyShutdownTimeout   = "shutdown_timeout"
)

var (
	// ErrInvalidPort reports a port that is not a decimal number in 0-65535.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidLogLevel reports a level zap cannot parse.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidTimeout reports a negative timeout.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

// Config is the process configuration.
type Config struct {
	Host           string
	Port           string
	AllowedOrigins []string
	// MetricsPort enables the Prometheus listener when non-empty.
	MetricsPort string
	LogLevel    string

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:              DefaultPort,
		AllowedOrigins:    []string{"*"},
		LogLevel:          "info",
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxHeaderBytes:    64 << 10,
	}
}

// Addr is the listen address of the public server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// MetricsAddr is the listen address of the metrics server, or "" when disabled.
func (c *Config) MetricsAddr() string {
	if c.MetricsPort == "" {
		return ""
	}
	return net.JoinHostPort(c.Host, c.MetricsPort)
}

// Validate checks ports, log level and timeouts.
func (c *Config) Validate() error {
	if err := validatePort(c.Port); err != nil {
		return err
	}
	if c.MetricsPort != "" {
		if err := validatePort(c.MetricsPort); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	timeouts := map[string]time.Duration{
		KeyReadTimeout:       c.ReadTimeout,
		KeyReadHeaderTimeout: c.ReadHeaderTimeout,
		KeyWriteTimeout:      c.WriteTimeout,
		KeyIdleTimeout:       c.IdleTimeout,
		KeyShutdownTimeout:   c.ShutdownTimeout,
	}
	for name, d := range timeouts {
		if d < 0 {
			return fmt.Errorf("%w: %s=%s", ErrInvalidTimeout, name, d)
		}
	}
	return nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidPort, port)
	}
	return nil
}

// RegisterFlags adds the command-line overrides to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(flagName(KeyHost), "", "interface to listen on (env HOST)")
	flags.String(flagName(KeyPort), DefaultPort, "port to listen on (env PORT)")
	flags.String(flagName(KeyMetricsPort), "", "port for the Prometheus /metrics listener, disabled when empty (env METRICS_PORT)")
	flags.String(flagName(KeyLogLevel), "info", "minimum log level (env LOG_LEVEL)")
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// Load builds a Config. Values come from, highest precedence first: changed
// flags, environment variables, env files (".env" when none are named), then
// Default. A missing env file is not an error. flags may be nil.
func Load(flags *pflag.FlagSet, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	def := Default()
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(KeyHost, def.Host)
	v.SetDefault(KeyPort, def.Port)
	v.SetDefault(KeyAllowedOrigins, strings.Join(def.AllowedOrigins, ","))
	v.SetDefault(KeyMetricsPort, def.MetricsPort)
	v.SetDefault(KeyLogLevel, def.LogLevel)
	v.SetDefault(KeyReadTimeout, def.ReadTimeout)
	v.SetDefault(KeyReadHeaderTimeout, def.ReadHeaderTimeout)
	v.SetDefault(KeyWriteTimeout, def.WriteTimeout)
	v.SetDefault(KeyIdleTimeout, def.IdleTimeout)
	v.SetDefault(KeyShutdownTimeout, def.ShutdownTimeout)

	if flags != nil {
		for _, key := range []string{KeyHost, KeyPort, KeyMetricsPort, KeyLogLevel} {
			if f := flags.Lookup(flagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	cfg := &Config{
		Host:              v.GetString(KeyHost),
		Port:              strings.TrimSpace(v.GetString(KeyPort)),
		AllowedOrigins:    splitList(v.GetString(KeyAllowedOrigins)),
		MetricsPort:       strings.TrimSpace(v.GetString(KeyMetricsPort)),
		LogLevel:          strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		ReadTimeout:       v.GetDuration(KeyReadTimeout),
		ReadHeaderTimeout: v.GetDuration(KeyReadHeaderTimeout),
		WriteTimeout:      v.GetDuration(KeyWriteTimeout),
		IdleTimeout:       v.GetDuration(KeyIdleTimeout),
		ShutdownTimeout:   v.GetDuration(KeyShutdownTimeout),
		MaxHeaderBytes:    def.MaxHeaderBytes,
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = def.AllowedOrigins
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
