// Package config loads the agent settings from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrLogLevel      = errors.New("unknown log level")
	ErrLogFormat     = errors.New("unknown log format")
)

type Config struct {
	AgentName         string        `env:"BFD_AGENT_NAME" envDefault:"bfd-agent"`
	NDKAddress        string        `env:"NDK_SERVER_ADDRESS" envDefault:"localhost:50053"`
	RetryInterval     time.Duration `env:"BFD_AGENT_RETRY_INTERVAL" envDefault:"2s"`
	KeepAliveInterval time.Duration `env:"BFD_AGENT_KEEPALIVE_INTERVAL" envDefault:"10s"`

	GNMI GNMI `envPrefix:"BFD_AGENT_GNMI_"`
	// StrictInterfaces rejects sessions on interfaces the system does not
	// report. It needs a gNMI address.
	StrictInterfaces bool `env:"BFD_AGENT_STRICT_INTERFACES"`

	StartupConfig  string `env:"BFD_AGENT_STARTUP_CONFIG"`
	MetricsAddress string `env:"BFD_AGENT_METRICS_ADDRESS" envDefault:":9102"`
	TelemetryPath  string `env:"BFD_AGENT_TELEMETRY_PATH" envDefault:".bfd_agent"`

	LogLevel  string `env:"BFD_AGENT_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"BFD_AGENT_LOG_FORMAT" envDefault:"text"`
}

type GNMI struct {
	Address  string        `env:"ADDRESS"`
	Username string        `env:"USERNAME" envDefault:"admin"`
	Password string        `env:"PASSWORD"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Load reads the given .env files, or ./.env when none is given, then parses
// the environment. Variables already set win over the files. A missing
// default ./.env is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, err
	}
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("%w: %q", ErrLogFormat, cfg.LogFormat)
	}
	return cfg, nil
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: %q", ErrLogLevel, c.LogLevel)
}
