package agentcore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSessionConfig(t *testing.T) {
	cfg := DefaultSessionConfig()
	if cfg.MaxSteps != 100 {
		t.Errorf("MaxSteps = %d, want 100", cfg.MaxSteps)
	}
	if cfg.RepetitionThreshold != 3 {
		t.Errorf("RepetitionThreshold = %d, want 3", cfg.RepetitionThreshold)
	}
	if cfg.CompactionRatio != 0 {
		t.Errorf("CompactionRatio = %v, want 0 (disabled)", cfg.CompactionRatio)
	}
}

func TestLoadSessionConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	data := `
provider: anthropic
model: claude-sonnet-4-5
system_prompt: "You are a build assistant."
max_steps: 25
compaction_ratio: 0.85
parallel_tool_calls: true
observation_char_limits:
  run_shell: 8000
profile_overrides:
  "acme:acme-large":
    wire_api: chat
    supports_parallel_tool_calls: true
    context_window: 32000
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadSessionConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "anthropic" || cfg.Model != "claude-sonnet-4-5" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.Model)
	}
	if cfg.MaxSteps != 25 {
		t.Errorf("MaxSteps = %d, want 25", cfg.MaxSteps)
	}
	if cfg.CompactionRatio != 0.85 {
		t.Errorf("CompactionRatio = %v, want 0.85", cfg.CompactionRatio)
	}
	if !cfg.ParallelToolCalls {
		t.Error("ParallelToolCalls not set")
	}
	if cfg.ObservationCharLimits["run_shell"] != 8000 {
		t.Errorf("char limit = %d, want 8000", cfg.ObservationCharLimits["run_shell"])
	}
	p, ok := cfg.ProfileOverrides["acme:acme-large"]
	if !ok {
		t.Fatal("profile override missing")
	}
	if !p.SupportsParallelToolCalls || p.ContextWindow != 32000 {
		t.Errorf("override = %+v", p)
	}
	// Unset fields keep defaults.
	if cfg.RepetitionThreshold != 3 {
		t.Errorf("RepetitionThreshold = %d, want default 3", cfg.RepetitionThreshold)
	}
	if cfg.EventBufferSize != 256 {
		t.Errorf("EventBufferSize = %d, want default 256", cfg.EventBufferSize)
	}
}

func TestLoadSessionConfigMissingFile(t *testing.T) {
	if _, err := LoadSessionConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLocateSessionConfig(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "session.yaml")
	if err := os.WriteFile(existing, []byte("model: m"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, ok := LocateSessionConfig("", filepath.Join(dir, "missing.yaml"), existing)
	if !ok || path != existing {
		t.Errorf("got %q, %v; want %q, true", path, ok, existing)
	}
	if _, ok := LocateSessionConfig(filepath.Join(dir, "missing.yaml")); ok {
		t.Error("found a config that does not exist")
	}
}
