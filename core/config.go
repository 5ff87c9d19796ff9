package core

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide immutable configuration. It is constructed once
// at startup and passed explicitly into constructors; there are no ambient
// mutable globals.
type Config struct {
	// MaxSteps bounds reasoning/tool round trips per user turn. Exceeding it
	// fails the session.
	MaxSteps int

	// ContextBudget is the approximate token budget of the context window
	// snapshot handed to the reasoning engine.
	ContextBudget int

	// KeepRecent is the number of most recent user/agent turns the window
	// never evicts.
	KeepRecent int

	// ToolTimeout bounds each tool invocation.
	ToolTimeout time.Duration

	// ReasoningTimeout bounds each reasoning backend attempt.
	ReasoningTimeout time.Duration

	// RetryCount is the number of reasoning retries after the first failed
	// attempt.
	RetryCount int

	// RetryBackoff is the base delay of the exponential reasoning backoff.
	RetryBackoff time.Duration

	// SendTimeout bounds each outbound fragment delivery to the transport.
	SendTimeout time.Duration

	// IdleTimeout ends sessions with no inbound message for this long.
	// Zero disables the idle sweep.
	IdleTimeout time.Duration

	// FragmentSize is the rune length of streamed response fragments.
	FragmentSize int
}

// DefaultConfig returns the baseline configuration used when no option file
// is provided.
func DefaultConfig() Config {
	return Config{
		MaxSteps:         8,
		ContextBudget:    4096,
		KeepRecent:       6,
		ToolTimeout:      15 * time.Second,
		ReasoningTimeout: 30 * time.Second,
		RetryCount:       2,
		RetryBackoff:     250 * time.Millisecond,
		SendTimeout:      5 * time.Second,
		IdleTimeout:      30 * time.Minute,
		FragmentSize:     64,
	}
}

// Validate reports configuration values that cannot drive the orchestrator.
func (c Config) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	}
	if c.ContextBudget <= 0 {
		return fmt.Errorf("context_budget must be positive, got %d", c.ContextBudget)
	}
	if c.KeepRecent < 0 {
		return fmt.Errorf("keep_recent must be non-negative, got %d", c.KeepRecent)
	}
	if c.FragmentSize <= 0 {
		return fmt.Errorf("fragment_size must be positive, got %d", c.FragmentSize)
	}
	return nil
}

// fileConfig is the YAML shape of the recognized options. Durations are
// plain millisecond integers on the wire; absent fields keep their defaults.
type fileConfig struct {
	MaxSteps           *int `yaml:"max_steps"`
	ContextBudget      *int `yaml:"context_budget"`
	KeepRecent         *int `yaml:"keep_recent"`
	ToolTimeoutMS      *int `yaml:"tool_timeout_ms"`
	ReasoningTimeoutMS *int `yaml:"reasoning_timeout_ms"`
	RetryCount         *int `yaml:"retry_count"`
	RetryBackoffMS     *int `yaml:"retry_backoff_ms"`
	SendTimeoutMS      *int `yaml:"send_timeout_ms"`
	IdleTimeoutMS      *int `yaml:"idle_timeout_ms"`
	FragmentSize       *int `yaml:"fragment_size"`
}

// LoadConfig reads a YAML option file and merges it over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := DefaultConfig()
	if fc.MaxSteps != nil {
		cfg.MaxSteps = *fc.MaxSteps
	}
	if fc.ContextBudget != nil {
		cfg.ContextBudget = *fc.ContextBudget
	}
	if fc.KeepRecent != nil {
		cfg.KeepRecent = *fc.KeepRecent
	}
	if fc.ToolTimeoutMS != nil {
		cfg.ToolTimeout = time.Duration(*fc.ToolTimeoutMS) * time.Millisecond
	}
	if fc.ReasoningTimeoutMS != nil {
		cfg.ReasoningTimeout = time.Duration(*fc.ReasoningTimeoutMS) * time.Millisecond
	}
	if fc.RetryCount != nil {
		cfg.RetryCount = *fc.RetryCount
	}
	if fc.RetryBackoffMS != nil {
		cfg.RetryBackoff = time.Duration(*fc.RetryBackoffMS) * time.Millisecond
	}
	if fc.SendTimeoutMS != nil {
		cfg.SendTimeout = time.Duration(*fc.SendTimeoutMS) * time.Millisecond
	}
	if fc.IdleTimeoutMS != nil {
		cfg.IdleTimeout = time.Duration(*fc.IdleTimeoutMS) * time.Millisecond
	}
	if fc.FragmentSize != nil {
		cfg.FragmentSize = *fc.FragmentSize
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
