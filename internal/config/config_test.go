package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.GC.Stress || cfg.GC.Log || cfg.Trace.Exec || cfg.Trace.Disasm {
		t.Errorf("defaults not zero: %+v", cfg)
	}
	if cfg.GC.GrowthFactor != GCGrowthFactor {
		t.Errorf("growth factor: got %d, want %d", cfg.GC.GrowthFactor, GCGrowthFactor)
	}
}

func TestLoadMissingFileIsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "script.fenn"))
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if cfg.GC.GrowthFactor != GCGrowthFactor {
		t.Errorf("growth factor: got %d", cfg.GC.GrowthFactor)
	}
}

func TestLoadFromScriptDirectory(t *testing.T) {
	dir := t.TempDir()
	yaml := "gc:\n  stress: true\n  growth_factor: 4\ntrace:\n  disasm: true\n"
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %s", err)
	}

	cfg, err := Load(filepath.Join(dir, "script.fenn"))
	if err != nil {
		t.Fatalf("load: %s", err)
	}

	if !cfg.GC.Stress {
		t.Errorf("stress not loaded")
	}
	if cfg.GC.GrowthFactor != 4 {
		t.Errorf("growth factor: got %d, want 4", cfg.GC.GrowthFactor)
	}
	if !cfg.Trace.Disasm {
		t.Errorf("disasm not loaded")
	}
	if cfg.Trace.Exec {
		t.Errorf("exec should stay off")
	}
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("gc: ["), 0o644); err != nil {
		t.Fatalf("write config: %s", err)
	}

	if _, err := Load(filepath.Join(dir, "script.fenn")); err == nil {
		t.Errorf("expected error for malformed yaml")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FENN_GC_STRESS", "1")
	t.Setenv("FENN_TRACE_EXEC", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "script.fenn"))
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if !cfg.GC.Stress {
		t.Errorf("FENN_GC_STRESS not honored")
	}
	if !cfg.Trace.Exec {
		t.Errorf("FENN_TRACE_EXEC not honored")
	}
}

func TestEnvConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("gc:\n  log: true\n"), 0o644); err != nil {
		t.Fatalf("write config: %s", err)
	}
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if !cfg.GC.Log {
		t.Errorf("config at $%s not loaded", EnvConfigPath)
	}
}

func TestTrimSourceExt(t *testing.T) {
	if got := TrimSourceExt("dir/prog.fenn"); got != "dir/prog" {
		t.Errorf("got %q", got)
	}
	if got := TrimSourceExt("prog.fnb"); got != "prog.fnb" {
		t.Errorf("got %q", got)
	}
}
