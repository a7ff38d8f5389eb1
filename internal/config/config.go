package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrDepthExceeded is returned when a run would nest deeper than MaxDepth.
var ErrDepthExceeded = errors.New("max recursion depth exceeded")

// ErrMissingAPIKey is returned by RequireAPIKey when no key is configured.
var ErrMissingAPIKey = errors.New("RLM_MODEL_API_KEY is missing or empty")

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Config holds all runtime configuration.
// Fields are populated from an optional YAML file, then from environment
// variables, which always win.
type Config struct {
	APIKey         string `yaml:"api_key"`          // RLM_MODEL_API_KEY, falls back to OPENROUTER_API_KEY
	BaseURL        string `yaml:"base_url"`         // RLM_MODEL_BASE_URL (default OpenRouter)
	ModelID        string `yaml:"model"`            // RLM_MODEL_ID
	MaxRetries     int    `yaml:"max_retries"`      // RLM_MAX_RETRIES (default 3)
	InitialDelayMs int    `yaml:"initial_delay_ms"` // RLM_INITIAL_DELAY_MS (default 1000)
	TimeoutMs      int    `yaml:"timeout_ms"`       // RLM_TIMEOUT_MS (default 30000)
	MaxDepth       int    `yaml:"max_depth"`        // RLM_MAX_DEPTH (default 3)
	MaxSteps       int    `yaml:"max_steps"`        // RLM_MAX_STEPS (default 20)
	MaxConcurrent  int    `yaml:"max_concurrent"`   // RLM_MAX_CONCURRENT (default 8)
	LogDir         string `yaml:"log_dir"`          // RLM_LOG_DIR (default "logs")
	LogPrefix      string `yaml:"log_prefix"`       // RLM_LOG_PREFIX (default "run")
}

// Defaults returns a Config with every optional field set.
func Defaults() *Config {
	return &Config{
		BaseURL:        defaultBaseURL,
		MaxRetries:     3,
		InitialDelayMs: 1000,
		TimeoutMs:      30000,
		MaxDepth:       3,
		MaxSteps:       20,
		MaxConcurrent:  8,
		LogDir:         "logs",
		LogPrefix:      "run",
	}
}

// Load reads configuration from environment variables on top of Defaults.
func Load() (*Config, error) {
	c := Defaults()
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// LoadFile reads a YAML file, then applies environment overrides.
// An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	c := Defaults()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("RLM_MODEL_API_KEY"); v != "" {
		c.APIKey = v
	} else if v := os.Getenv("OPENROUTER_API_KEY"); v != "" && c.APIKey == "" {
		c.APIKey = v
	}
	if v := os.Getenv("RLM_MODEL_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("RLM_MODEL_ID"); v != "" {
		c.ModelID = v
	}
	if v := os.Getenv("RLM_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("RLM_LOG_PREFIX"); v != "" {
		c.LogPrefix = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"RLM_MAX_RETRIES", &c.MaxRetries},
		{"RLM_INITIAL_DELAY_MS", &c.InitialDelayMs},
		{"RLM_TIMEOUT_MS", &c.TimeoutMs},
		{"RLM_MAX_DEPTH", &c.MaxDepth},
		{"RLM_MAX_STEPS", &c.MaxSteps},
		{"RLM_MAX_CONCURRENT", &c.MaxConcurrent},
	}
	for _, f := range ints {
		n, err := envInt(f.key, *f.dst)
		if err != nil {
			return err
		}
		*f.dst = n
	}
	return nil
}

// Validate checks that numeric knobs are usable.
func (c *Config) Validate() error {
	switch {
	case c.MaxRetries < 1:
		return fmt.Errorf("max_retries must be >= 1, got %d", c.MaxRetries)
	case c.InitialDelayMs < 0:
		return fmt.Errorf("initial_delay_ms must be >= 0, got %d", c.InitialDelayMs)
	case c.TimeoutMs < 1:
		return fmt.Errorf("timeout_ms must be >= 1, got %d", c.TimeoutMs)
	case c.MaxDepth < 1:
		return fmt.Errorf("max_depth must be >= 1, got %d", c.MaxDepth)
	case c.MaxSteps < 1:
		return fmt.Errorf("max_steps must be >= 1, got %d", c.MaxSteps)
	case c.MaxConcurrent < 1:
		return fmt.Errorf("max_concurrent must be >= 1, got %d", c.MaxConcurrent)
	}
	return nil
}

// RequireAPIKey fails when no key is configured. Only commands that call
// the model need one; log browsing does not.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w; set it to your API key, e.g. export RLM_MODEL_API_KEY='sk-...'", ErrMissingAPIKey)
	}
	return nil
}

// InitialDelay returns InitialDelayMs as a duration.
func (c *Config) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMs) * time.Millisecond
}

// Timeout returns TimeoutMs as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// CheckDepth returns ErrDepthExceeded when depth is not below MaxDepth.
func (c *Config) CheckDepth(depth int) error {
	if depth >= c.MaxDepth {
		return fmt.Errorf("%w (%d/%d)", ErrDepthExceeded, depth, c.MaxDepth)
	}
	return nil
}

// envInt reads an environment variable as int, returning def if unset.
func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q: %w", key, v, err)
	}
	return n, nil
}
