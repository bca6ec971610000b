package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is looked up next to the executed script.
const ConfigFileName = "fenn.yaml"

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "FENN_CONFIG"

// Runtime is the top-level fenn.yaml configuration.
type Runtime struct {
	GC    GCConfig    `yaml:"gc"`
	Trace TraceConfig `yaml:"trace"`
}

// GCConfig tunes the collector.
type GCConfig struct {
	// Stress forces a collection at every allocation. Slow; meant for
	// flushing out missing-root bugs.
	Stress bool `yaml:"stress"`

	// Log emits a log line per collection with byte/object counts.
	Log bool `yaml:"log"`

	// GrowthFactor scales the next collection threshold after a sweep.
	// Zero means the built-in default.
	GrowthFactor int `yaml:"growth_factor"`
}

// TraceConfig controls execution diagnostics.
type TraceConfig struct {
	// Exec logs each executed instruction. Extremely verbose.
	Exec bool `yaml:"exec"`

	// Disasm dumps the disassembly of every compiled function before
	// execution.
	Disasm bool `yaml:"disasm"`
}

// Default returns the zero configuration with defaults applied.
func Default() Runtime {
	return Runtime{GC: GCConfig{GrowthFactor: GCGrowthFactor}}
}

// Load reads the runtime configuration for a script at scriptPath.
// Resolution order: $FENN_CONFIG, then fenn.yaml in the script's
// directory (or the working directory for the REPL). A missing file is
// not an error. Environment variables FENN_GC_STRESS, FENN_GC_LOG and
// FENN_TRACE_EXEC override the file.
func Load(scriptPath string) (Runtime, error) {
	cfg := Default()

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		dir := "."
		if scriptPath != "" {
			dir = filepath.Dir(scriptPath)
		}
		path = filepath.Join(dir, ConfigFileName)
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if cfg.GC.GrowthFactor <= 0 {
		cfg.GC.GrowthFactor = GCGrowthFactor
	}

	if envBool("FENN_GC_STRESS") {
		cfg.GC.Stress = true
	}
	if envBool("FENN_GC_LOG") {
		cfg.GC.Log = true
	}
	if envBool("FENN_TRACE_EXEC") {
		cfg.Trace.Exec = true
	}

	return cfg, nil
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	return v == "1" || strings.EqualFold(v, "true")
}

// TrimSourceExt removes the source extension for display purposes.
func TrimSourceExt(path string) string {
	return strings.TrimSuffix(path, SourceFileExt)
}
