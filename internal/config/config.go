package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"querynerd/internal/logging"
	"querynerd/internal/pipeline"
)

// Config holds all querynerd configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM backing the router and planner chains
	LLM LLMConfig `yaml:"llm"`

	// Node behavior
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Run history
	Store StoreConfig `yaml:"store"`

	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// PipelineConfig configures the router and planner nodes.
type PipelineConfig struct {
	// Run the plan validator on generated and fallback plans.
	ValidatePlan bool `yaml:"validate_plan"`
	// Leave retrieval_fields empty when every requested field was invalid.
	KeepEmptyFields bool `yaml:"keep_empty_fields"`
}

// StoreConfig configures the SQLite run store.
type StoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures category file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Dir        string          `yaml:"dir"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultPath is where the CLI looks for the config file, relative to the
// workspace.
const DefaultPath = ".nerd/querynerd.yaml"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "querynerd",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  "60s",
		},

		Pipeline: PipelineConfig{
			ValidatePlan: true,
		},

		Store: StoreConfig{
			Enabled:      true,
			DatabasePath: ".nerd/runs.db",
		},

		Logging: LoggingConfig{
			Level: "info",
			Dir:   ".nerd/logs",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
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
// Later keys win: GEMINI_API_KEY over OPENAI_API_KEY.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if model := os.Getenv("QUERYNERD_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("QUERYNERD_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if v := os.Getenv("QUERYNERD_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = debug
		}
	}
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"gemini", "openai"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY or OPENAI_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.Store.Enabled && c.Store.DatabasePath == "" {
		return fmt.Errorf("store enabled but database_path is empty")
	}

	return nil
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// PlannerOptions maps the pipeline section onto planner node options.
func (c *Config) PlannerOptions() pipeline.PlannerOptions {
	return pipeline.PlannerOptions{
		ValidatePlan: c.Pipeline.ValidatePlan,
		Validator: pipeline.ValidatorOptions{
			KeepEmptyFields: c.Pipeline.KeepEmptyFields,
		},
	}
}

// LoggingOptions resolves the logging section against workspace.
func (c *Config) LoggingOptions(workspace string) logging.Options {
	return logging.Options{
		Dir:        resolve(workspace, c.Logging.Dir),
		DebugMode:  c.Logging.DebugMode,
		Level:      c.Logging.Level,
		JSONFormat: c.Logging.JSONFormat,
		Categories: c.Logging.Categories,
	}
}

// DatabasePath resolves the store path against workspace.
func (c *Config) DatabasePath(workspace string) string {
	return resolve(workspace, c.Store.DatabasePath)
}

func resolve(workspace, path string) string {
	if path == "" || filepath.IsAbs(path) || workspace == "" {
		return path
	}
	return filepath.Join(workspace, path)
}
