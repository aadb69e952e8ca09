package agentcore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/emilhart/coxswain/modelkit"
)

const (
	defaultMaxSteps            = 100
	defaultRepetitionThreshold = 3
	defaultEventBufferSize     = 256
)

// SessionConfig controls a session's model, limits, and safety knobs.
type SessionConfig struct {
	Provider     string `yaml:"provider" json:"provider"`
	Model        string `yaml:"model" json:"model"`
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`

	// MaxSteps caps model calls per turn. Zero means the default of 100.
	MaxSteps int `yaml:"max_steps" json:"max_steps"`

	// CompactionRatio triggers auto-compaction when prompt tokens reach
	// this share of the model's context window. Zero disables it.
	CompactionRatio float64 `yaml:"compaction_ratio" json:"compaction_ratio"`

	// ParallelToolCalls allows concurrent dispatch of an action batch
	// when the model profile also supports it.
	ParallelToolCalls bool `yaml:"parallel_tool_calls" json:"parallel_tool_calls"`

	// RepetitionThreshold is the number of consecutive identical actions
	// that triggers a loop warning. Values below 2 fall back to 3.
	RepetitionThreshold int `yaml:"repetition_threshold" json:"repetition_threshold"`

	// Per-tool observation limits. A missing entry uses the defaults.
	ObservationCharLimits map[string]int `yaml:"observation_char_limits" json:"observation_char_limits,omitempty"`
	ObservationLineLimits map[string]int `yaml:"observation_line_limits" json:"observation_line_limits,omitempty"`

	EventBufferSize int `yaml:"event_buffer_size" json:"event_buffer_size"`

	// ProfileOverrides take precedence over the builtin model catalog.
	// Keys are "provider:model" or bare model names.
	ProfileOverrides map[string]modelkit.Profile `yaml:"profile_overrides" json:"profile_overrides,omitempty"`
}

// DefaultSessionConfig returns a config with all limits at their
// defaults and compaction disabled.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		MaxSteps:            defaultMaxSteps,
		RepetitionThreshold: defaultRepetitionThreshold,
		EventBufferSize:     defaultEventBufferSize,
	}
}

// LoadSessionConfig reads a YAML config file. Fields left unset keep
// their defaults.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultSessionConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LocateSessionConfig returns the first candidate path that exists.
// Callers typically pass a project-local path followed by per-user
// fallbacks.
func LocateSessionConfig(candidates ...string) (string, bool) {
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func (c *SessionConfig) applyDefaults() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = defaultMaxSteps
	}
	if c.RepetitionThreshold < 2 {
		c.RepetitionThreshold = defaultRepetitionThreshold
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = defaultEventBufferSize
	}
}
