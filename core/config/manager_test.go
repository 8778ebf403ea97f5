package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/inverno-bio/inverno/core/propagate"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := m.Get()
	if cfg.Propagation.Algorithm != "rwr" || cfg.Propagation.Restart != 0.2 {
		t.Fatalf("defaults not applied: %+v", cfg.Propagation)
	}
	if cfg.Fusion.Weights.Propagation != 0.5 {
		t.Fatalf("default weights not applied: %+v", cfg.Fusion.Weights)
	}
}

func TestLoadFileOverridesOnlyPresentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inverno.yaml")
	body := `
propagation:
  algorithm: heat
  time: 1.5
reversal:
  min_overlap: 5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m := NewManager(path, nil)
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := m.Get()
	if cfg.Propagation.Algorithm != "heat" || cfg.Propagation.Time != 1.5 {
		t.Fatalf("file keys not applied: %+v", cfg.Propagation)
	}
	// Untouched keys keep their defaults.
	if cfg.Propagation.Restart != 0.2 || cfg.Propagation.MaxIterations != 100 {
		t.Fatalf("defaults clobbered: %+v", cfg.Propagation)
	}
	if cfg.Reversal.MinOverlap != 5 || cfg.Reversal.GeneSetSize != 150 {
		t.Fatalf("reversal section wrong: %+v", cfg.Reversal)
	}
}

func TestLoadEnvironmentWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inverno.yaml")
	if err := os.WriteFile(path, []byte("batch:\n  workers: 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("INVERNO_BATCH_WORKERS", "9")
	t.Setenv("INVERNO_LOG_LEVEL", "DEBUG")

	m := NewManager(path, nil)
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := m.Get()
	if cfg.Batch.Workers != 9 {
		t.Fatalf("workers = %d, want env override 9", cfg.Batch.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidConfigAndKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inverno.yaml")
	m := NewManager(path, nil)
	if err := m.Load(); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	before := m.Get()

	if err := os.WriteFile(path, []byte("propagation:\n  algorithm: ouija\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := m.Load(); err == nil {
		t.Fatal("expected validation error for unknown algorithm")
	}
	if m.Get() != before {
		t.Fatal("invalid load replaced the live snapshot")
	}
}

func TestOnChangeFires(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	var seen *Config
	m.OnChange(func(c *Config) { seen = c })
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if seen == nil || seen != m.Get() {
		t.Fatal("watcher did not receive the published snapshot")
	}
}

func TestParamsConversion(t *testing.T) {
	cfg := Default()
	p := cfg.Propagation.Params().WithDefaults()
	if p.Restart != 0.2 || p.Dangling != propagate.DanglingRedistribute {
		t.Fatalf("converted params = %+v", p)
	}
	runner := cfg.RunnerConfig()
	if runner.Workers != cfg.Batch.Workers || runner.Propagation.Restart != 0.2 {
		t.Fatalf("runner config = %+v", runner)
	}
	if runner.FailFast {
		t.Fatal("fail-fast must default off")
	}
	builder := cfg.Graph.Builder()
	if builder.MaxEffectiveWeight != 1 {
		t.Fatalf("builder config = %+v", builder)
	}
}
