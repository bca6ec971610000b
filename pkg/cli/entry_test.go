package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/funvibe/fenn/internal/config"
)

func writeScript(t *testing.T, name, source string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("write script: %s", err)
	}
	return path
}

func TestRunScriptExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   int
	}{
		{"success", "var a = 1; a = a + 1;", config.ExitOK},
		{"compile-error", "return;", config.ExitCompileError},
		{"parse-error", "var = ;", config.ExitCompileError},
		{"runtime-error", "undefinedGlobal;", config.ExitRuntimeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScript(t, "prog"+config.SourceFileExt, tt.source)
			if got := Run([]string{path}); got != tt.code {
				t.Errorf("exit code: got %d, want %d", got, tt.code)
			}
		})
	}
}

func TestUsageErrors(t *testing.T) {
	if got := Run([]string{"a.fenn", "b.fenn"}); got != config.ExitUsage {
		t.Errorf("extra args: got %d, want %d", got, config.ExitUsage)
	}
	if got := Run([]string{"does-not-exist.fenn"}); got != config.ExitUsage {
		t.Errorf("missing file: got %d, want %d", got, config.ExitUsage)
	}
	if got := Run([]string{"build"}); got != config.ExitUsage {
		t.Errorf("build without source: got %d, want %d", got, config.ExitUsage)
	}
}

func TestBuildAndRunBundle(t *testing.T) {
	src := writeScript(t, "prog"+config.SourceFileExt, "var x = 20 + 22;")
	out := filepath.Join(filepath.Dir(src), "prog"+config.BundleFileExt)

	if got := Run([]string{"build", src, "-o", out}); got != config.ExitOK {
		t.Fatalf("build: got %d, want %d", got, config.ExitOK)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("bundle not written: %s", err)
	}

	if got := Run([]string{out}); got != config.ExitOK {
		t.Errorf("run bundle: got %d, want %d", got, config.ExitOK)
	}
}

func TestBuildDefaultOutputPath(t *testing.T) {
	src := writeScript(t, "tool"+config.SourceFileExt, "var ok = true;")

	if got := Run([]string{"build", src}); got != config.ExitOK {
		t.Fatalf("build: got %d", got)
	}

	want := config.TrimSourceExt(src) + config.BundleFileExt
	if _, err := os.Stat(want); err != nil {
		t.Errorf("default output missing at %s: %s", want, err)
	}
}

func TestBuildOfBrokenSourceFails(t *testing.T) {
	src := writeScript(t, "bad"+config.SourceFileExt, "class C < C {}")
	if got := Run([]string{"build", src}); got != config.ExitCompileError {
		t.Errorf("got %d, want %d", got, config.ExitCompileError)
	}
}
