// Package config loads catproxy settings from a YAML file and the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/catproxy/pkg/catapi"
	"github.com/Sternrassler/catproxy/pkg/logging"
	"github.com/Sternrassler/catproxy/pkg/pagination"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CATPROXY_"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Batch    BatchConfig    `yaml:"batch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig holds cat API settings.
type UpstreamConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// BatchConfig holds batch fetch settings.
type BatchConfig struct {
	PageTimeout time.Duration `yaml:"page_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
	File   string `yaml:"file"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	api := catapi.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:   api.BaseURL,
			UserAgent: api.UserAgent,
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load reads config from the YAML file at path, when path is set, and
// overrides it with environment variables. A named file that does not
// exist is an error. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	if v := getEnv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", EnvPrefix, err)
		}
		c.Server.Port = port
	}
	if v := getEnv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSHUTDOWN_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Server.ShutdownTimeout = d
	}
	if v := getEnv("UPSTREAM_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := getEnv("API_KEY"); v != "" {
		c.Upstream.APIKey = v
	}
	if v := getEnv("USER_AGENT"); v != "" {
		c.Upstream.UserAgent = v
	}
	if v := getEnv("UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sUPSTREAM_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Upstream.Timeout = d
	}
	if v := getEnv("PAGE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sPAGE_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Batch.PageTimeout = d
	}
	if v := getEnv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getEnv("LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLOG_PRETTY: %w", EnvPrefix, err)
		}
		c.Logging.Pretty = pretty
	}
	if v := getEnv("LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	return nil
}

// Validate checks the settings and reports the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be >= 0")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid upstream base_url %q", c.Upstream.BaseURL)
	}
	if c.Upstream.UserAgent == "" {
		return fmt.Errorf("upstream user_agent is required")
	}
	if c.Upstream.Timeout < 0 || c.Batch.PageTimeout < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	switch logging.LogLevel(c.Logging.Level) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return nil
}

// CatAPI returns the upstream client configuration.
func (c *Config) CatAPI() catapi.Config {
	return catapi.Config{
		BaseURL:   c.Upstream.BaseURL,
		APIKey:    c.Upstream.APIKey,
		UserAgent: c.Upstream.UserAgent,
		Timeout:   c.Upstream.Timeout,
	}
}

// Pagination returns the batch fetcher configuration.
func (c *Config) Pagination() pagination.Config {
	return pagination.Config{PageTimeout: c.Batch.PageTimeout}
}

// LoggingSetup returns the logger configuration.
func (c *Config) LoggingSetup() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	cfg.File = logging.FileConfig{Path: c.Logging.File}
	return cfg
}

func getEnv(key string) string {
	return os.Getenv(EnvPrefix + key)
}
