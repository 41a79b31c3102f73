package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen          = ":8446"
	defaultDataDir         = "./lendingd-data"
	defaultShutdownTimeout = 10 * time.Second
)

// Config captures the runtime settings for the lending service daemon.
type Config struct {
	ListenAddress   string                     `yaml:"listen"`
	DataDir         string                     `yaml:"data_dir"`
	JournalDSN      string                     `yaml:"journal_dsn"`
	Ledger          string                     `yaml:"ledger"`
	GenesisPath     string                     `yaml:"genesis"`
	ShutdownTimeout time.Duration              `yaml:"shutdown_timeout"`
	TLS             TLSConfig                  `yaml:"tls"`
	Auth            AuthConfig                 `yaml:"auth"`
	RateLimits      map[string]RateLimitConfig `yaml:"rate_limits"`
	CORS            CORSConfig                 `yaml:"cors"`
	Telemetry       TelemetryConfig            `yaml:"telemetry"`
	Logging         LoggingConfig              `yaml:"logging"`
}

// TLSConfig describes the TLS material for the HTTP listener.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	ClientCAPath  string `yaml:"client_ca"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig configures bearer token verification. The secret may be supplied
// inline or through the environment variable named by hmac_secret_env.
type AuthConfig struct {
	Disabled            bool          `yaml:"disabled"`
	HMACSecret          string        `yaml:"hmac_secret"`
	HMACSecretEnv       string        `yaml:"hmac_secret_env"`
	Issuer              string        `yaml:"issuer"`
	Audience            string        `yaml:"audience"`
	AllowAnonymousReads bool          `yaml:"allow_anonymous_reads"`
	ClockSkew           time.Duration `yaml:"clock_skew"`
}

// RateLimitConfig is one limiter bucket ("read", "write" or "admin").
type RateLimitConfig struct {
	RatePerSecond float64        `yaml:"rate_per_second"`
	Burst         int            `yaml:"burst"`
	DefaultTokens int            `yaml:"default_tokens"`
	Tokens        map[string]int `yaml:"tokens"`
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// TelemetryConfig mirrors the OTLP trace exporter knobs.
type TelemetryConfig struct {
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	Traces      bool              `yaml:"traces"`
	SampleRatio float64           `yaml:"sample_ratio"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: defaultListen,
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// JournalPath returns the journal DSN, defaulting to a sqlite file in the
// data directory.
func (cfg Config) JournalPath() string {
	if cfg.JournalDSN != "" {
		return cfg.JournalDSN
	}
	return strings.TrimRight(cfg.DataDir, "/") + "/journal.db"
}

// Secret resolves the HMAC secret, preferring the environment variable when
// one is named and set.
func (cfg AuthConfig) Secret() string {
	if cfg.HMACSecretEnv != "" {
		if value := strings.TrimSpace(os.Getenv(cfg.HMACSecretEnv)); value != "" {
			return value
		}
	}
	return cfg.HMACSecret
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.JournalDSN = strings.TrimSpace(cfg.JournalDSN)
	cfg.Ledger = strings.TrimSpace(cfg.Ledger)
	cfg.GenesisPath = strings.TrimSpace(cfg.GenesisPath)
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	cfg.TLS.normalize()
	cfg.Auth.normalize()
	origins := make([]string, 0, len(cfg.CORS.AllowedOrigins))
	for _, origin := range cfg.CORS.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.CORS.AllowedOrigins = origins
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.Ledger == "" {
		return fmt.Errorf("ledger account is required")
	}
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	for name, limit := range cfg.RateLimits {
		switch name {
		case "read", "write", "admin":
		default:
			return fmt.Errorf("rate_limits: unknown bucket %q", name)
		}
		if limit.RatePerSecond < 0 || limit.Burst < 0 {
			return fmt.Errorf("rate_limits.%s: values must not be negative", name)
		}
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	return nil
}

func (cfg *TLSConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.CertPath = strings.TrimSpace(cfg.CertPath)
	cfg.KeyPath = strings.TrimSpace(cfg.KeyPath)
	cfg.ClientCAPath = strings.TrimSpace(cfg.ClientCAPath)
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	if cfg.ClientCAPath != "" && !hasCert {
		return fmt.Errorf("client_ca requires a server certificate and key")
	}
	return nil
}

// Enabled reports whether the listener serves TLS.
func (cfg TLSConfig) Enabled() bool {
	return cfg.CertPath != "" && cfg.KeyPath != ""
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.HMACSecret = strings.TrimSpace(cfg.HMACSecret)
	cfg.HMACSecretEnv = strings.TrimSpace(cfg.HMACSecretEnv)
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	if cfg.Issuer == "" {
		cfg.Issuer = "lendingd"
	}
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
}

func (cfg AuthConfig) validate() error {
	if cfg.Disabled {
		return nil
	}
	secret := cfg.Secret()
	if secret == "" {
		return fmt.Errorf("hmac_secret or hmac_secret_env must provide a secret")
	}
	if len(secret) < 32 {
		return fmt.Errorf("hmac secret must be at least 32 bytes")
	}
	return nil
}
