// Package config loads croco configuration from an optional YAML file,
// applies environment overrides, and validates required settings before
// any component starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig configures the Gemini backend.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"` // Go duration string, e.g. "2m"
}

// StorageConfig configures durable persistence.
type StorageConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
	JSON    bool `yaml:"json"`
}

// GatewayConfig configures the optional HTTP gateway.
type GatewayConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the top-level croco configuration.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Gateway GatewayConfig `yaml:"gateway"`
}

// Default returns the baseline configuration rooted at dataDir.
func Default(dataDir string) Config {
	return Config{
		LLM: LLMConfig{
			Model:   "gemini-2.5-flash",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Timeout: "2m",
		},
		Storage: StorageConfig{
			Path: filepath.Join(dataDir, "croco.db"),
		},
		Gateway: GatewayConfig{
			Addr: ":8790",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (missing file is fine), then environment overrides, then validation.
func Load(path, dataDir string) (Config, error) {
	cfg := Default(dataDir)

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = key
	}
	if model := os.Getenv("CROCO_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if url := os.Getenv("CROCO_BASE_URL"); url != "" {
		cfg.LLM.BaseURL = url
	}
	if path := os.Getenv("CROCO_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if addr := os.Getenv("CROCO_GATEWAY_ADDR"); addr != "" {
		cfg.Gateway.Addr = addr
	}
}

// Validate rejects configurations the process must not start with.
// A missing API key is fatal: croco never runs in a degraded mode.
func (c Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("Gemini API key not configured (set GEMINI_API_KEY or llm.api_key)")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if _, err := c.LLMTimeout(); err != nil {
		return err
	}
	return nil
}

// LLMTimeout parses the configured request timeout.
func (c Config) LLMTimeout() (time.Duration, error) {
	if c.LLM.Timeout == "" {
		return 2 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
	}
	return d, nil
}
