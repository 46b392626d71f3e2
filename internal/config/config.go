// Package config loads agent configuration from environment variables and
// an optional .env file, with CLI flags taking final priority.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Device model
	DeviceModelPath string `env:"DEVICE_MODEL_PATH" envDefault:"./devices.json"`

	// SHDR adapter sources, "name=host:port" pairs separated by commas
	SHDRSources string `env:"SHDR_SOURCES"`

	// Optional supplemental file/directory-watch SHDR ingest
	SHDRWatchDir string `env:"SHDR_WATCH_DIR"`

	// MQTT adapter
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"mtc-agent"`
	MQTTTopics    string `env:"MQTT_TOPICS" envDefault:"#"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`
	MQTTTLSCert   string `env:"MQTT_TLS_CERT"`
	MQTTTLSKey    string `env:"MQTT_TLS_KEY"`
	MQTTTLSCA     string `env:"MQTT_TLS_CA"`

	// Buffer
	BufferSizeExp      uint `env:"BUFFER_SIZE_EXP" envDefault:"17"` // capacity = 2^17 = 131072
	CheckpointFreq     int  `env:"CHECKPOINT_FREQUENCY" envDefault:"1000"`
	AssetBufferSize    int  `env:"ASSET_BUFFER_SIZE" envDefault:"1024"`
	AutoAvailable      bool `env:"AUTO_AVAILABLE" envDefault:"true"`
	ReconnectInterval  time.Duration `env:"RECONNECT_INTERVAL" envDefault:"500ms"`
	HeartbeatFallback  time.Duration `env:"HEARTBEAT_FALLBACK" envDefault:"10s"`

	// REST/WS serving layer
	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:":5000"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0"` // 0: streaming endpoints manage their own deadlines
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"30s"`
	CORSOrigins       string        `env:"CORS_ORIGINS"`
	RateLimitRPS      float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst    int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	DefaultSampleCount int          `env:"DEFAULT_SAMPLE_COUNT" envDefault:"100"`
	DefaultHeartbeat  time.Duration `env:"DEFAULT_HEARTBEAT" envDefault:"10s"`

	// Mutation allow-listing (spec.md §4.6: PUT/POST/DELETE gated globally + by remote)
	MutationsEnabled bool   `env:"MUTATIONS_ENABLED" envDefault:"false"`
	MutationAllowlist string `env:"MUTATION_ALLOWLIST"` // comma-separated remote addresses/CIDRs

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Optional raw-message archival (ADDED, §17.2)
	ArchiveStore         bool   `env:"ARCHIVE_STORE" envDefault:"false"`
	ArchiveDatabaseURL    string `env:"ARCHIVE_DATABASE_URL"`
	ArchiveIncludeRoutes string `env:"ARCHIVE_INCLUDE_ROUTES"`
	ArchiveExcludeRoutes string `env:"ARCHIVE_EXCLUDE_ROUTES"`
}

// Validate checks that at least one ingest source (SHDR, SHDR file-watch, or
// MQTT) is configured.
func (c *Config) Validate() error {
	if c.SHDRSources == "" && c.SHDRWatchDir == "" && c.MQTTBrokerURL == "" {
		return fmt.Errorf("at least one of SHDR_SOURCES, SHDR_WATCH_DIR, or MQTT_BROKER_URL must be set")
	}
	if c.ArchiveStore && c.ArchiveDatabaseURL == "" {
		return fmt.Errorf("ARCHIVE_DATABASE_URL must be set when ARCHIVE_STORE is enabled")
	}
	if c.BufferSizeExp == 0 || c.BufferSizeExp > 32 {
		return fmt.Errorf("BUFFER_SIZE_EXP must be in (0, 32]")
	}
	if c.CheckpointFreq <= 0 {
		return fmt.Errorf("CHECKPOINT_FREQUENCY must be positive")
	}
	return nil
}

// AllowedOrigins splits CORSOrigins into a slice; empty means allow all.
func (c *Config) AllowedOrigins() []string {
	if c.CORSOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile         string
	HTTPAddr        string
	LogLevel        string
	DeviceModelPath string
	MQTTBrokerURL   string
	SHDRSources     string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DeviceModelPath != "" {
		cfg.DeviceModelPath = overrides.DeviceModelPath
	}
	if overrides.MQTTBrokerURL != "" {
		cfg.MQTTBrokerURL = overrides.MQTTBrokerURL
	}
	if overrides.SHDRSources != "" {
		cfg.SHDRSources = overrides.SHDRSources
	}

	return cfg, nil
}
