// Package config loads server configuration from an optional YAML file with
// environment overrides on top. Environment always wins, so deployments can
// keep secrets out of the file entirely.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAddr          = ":8080"
	defaultDBPath        = "kaiwa.db"
	defaultStreamTimeout = 5 * time.Minute
)

type fileConfig struct {
	Addr          string `yaml:"addr"`
	DBPath        string `yaml:"db_path"`
	JWTSecret     string `yaml:"jwt_secret"`
	GeminiAPIKey  string `yaml:"gemini_api_key"`
	GroqAPIKey    string `yaml:"groq_api_key"`
	StreamTimeout string `yaml:"stream_timeout"`
}

// Config is the resolved server configuration.
type Config struct {
	Addr          string
	DBPath        string
	JWTSecret     string
	GeminiAPIKey  string
	GroqAPIKey    string
	StreamTimeout time.Duration
}

// Load resolves configuration from KAIWA_CONFIG_FILE (default "kaiwa.yaml",
// silently skipped when absent) and the environment. JWT secret is the one
// hard requirement — without it no request can be authenticated.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:          defaultAddr,
		DBPath:        defaultDBPath,
		StreamTimeout: defaultStreamTimeout,
	}

	path := os.Getenv("KAIWA_CONFIG_FILE")
	if path == "" {
		path = "kaiwa.yaml"
	}
	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("KAIWA_JWT_SECRET is required")
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.Addr != "" {
		c.Addr = fc.Addr
	}
	if fc.DBPath != "" {
		c.DBPath = fc.DBPath
	}
	if fc.JWTSecret != "" {
		c.JWTSecret = fc.JWTSecret
	}
	if fc.GeminiAPIKey != "" {
		c.GeminiAPIKey = fc.GeminiAPIKey
	}
	if fc.GroqAPIKey != "" {
		c.GroqAPIKey = fc.GroqAPIKey
	}
	if fc.StreamTimeout != "" {
		d, err := time.ParseDuration(fc.StreamTimeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid stream_timeout %q in %s", fc.StreamTimeout, path)
		}
		c.StreamTimeout = d
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("KAIWA_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("KAIWA_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("KAIWA_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.GroqAPIKey = v
	}
	if v := os.Getenv("KAIWA_STREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid KAIWA_STREAM_TIMEOUT %q", v)
		}
		c.StreamTimeout = d
	}
	return nil
}
