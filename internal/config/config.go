// Package config holds dcagent configuration: defaults, the YAML file
// under .dcagent/, and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all dcagent configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Gemini model configuration
	LLM LLMConfig `yaml:"llm"`

	// Data Commons API configuration
	DataCommons DataCommonsConfig `yaml:"datacommons"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the Gemini client.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// DataCommonsConfig configures the Data Commons client.
type DataCommonsConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "dcagent",
		Version: "0.1.0",

		LLM: LLMConfig{
			Model:   "gemini-2.0-flash",
			Timeout: "120s",
		},

		DataCommons: DataCommonsConfig{
			BaseURL: "https://api.datacommons.org/v2",
			Timeout: "30s",
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// DefaultPath returns the default path to .dcagent/config.yaml.
func DefaultPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".dcagent", "config.yaml")
	}
	return filepath.Join(cwd, ".dcagent", "config.yaml")
}

// LoadDotEnv loads a .env file from the working directory if present.
// A missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}
}

// Load loads configuration from a YAML file. Missing file returns
// defaults; environment variables override file values either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("DATCOM_API_KEY"); key != "" {
		c.DataCommons.APIKey = key
	}
	if model := os.Getenv("DCAGENT_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if url := os.Getenv("DATCOM_BASE_URL"); url != "" {
		c.DataCommons.BaseURL = url
	}
}

// GetLLMTimeout returns the Gemini timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetDataCommonsTimeout returns the Data Commons timeout as a duration.
func (c *Config) GetDataCommonsTimeout() time.Duration {
	d, err := time.ParseDuration(c.DataCommons.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("Gemini API key not configured (set GEMINI_API_KEY or llm.api_key in %s)", DefaultPath())
	}
	if c.DataCommons.APIKey == "" {
		return fmt.Errorf("Data Commons API key not configured (set DATCOM_API_KEY or datacommons.api_key in %s)", DefaultPath())
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	return nil
}
