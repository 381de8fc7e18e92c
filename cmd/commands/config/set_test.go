package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/config"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/providers"
)

// setupTestConfig points the config package at a temp file and returns its path.
func setupTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	config.SetPath(path)
	t.Cleanup(config.ResetPath)
	t.Cleanup(cmdutil.SetInteractive(false))
	return path
}

// registerTestSource registers a stub source in the global registry.
func registerTestSource(t *testing.T, name string) {
	t.Helper()
	providers.Reset()
	t.Cleanup(providers.Reset)
	providers.Register(name, func(providers.Settings) (domain.Source, error) {
		return nil, nil
	})
}

// execConfig creates the config command, wires up output buffers, runs with the
// given args, and returns what was written to stdout and stderr.
func execConfig(t *testing.T, args ...string) (stdout, stderr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	_ = cmd.Execute()
	return outBuf.String(), errBuf.String()
}

func TestSet_Source(t *testing.T) {
	setupTestConfig(t)
	registerTestSource(t, "static")

	stdout, stderr := execConfig(t, "set", "source", "STATIC")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, `"static"`) {
		t.Errorf("expected normalized source name, got: %s", stdout)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Source != "static" {
		t.Errorf("expected Source %q, got %q", "static", cfg.Source)
	}
}

func TestSet_Source_Unknown(t *testing.T) {
	setupTestConfig(t)
	registerTestSource(t, "static")

	_, stderr := execConfig(t, "set", "source", "nonexistent")

	if !strings.Contains(stderr, "unknown source") {
		t.Errorf("expected 'unknown source' error, got: %s", stderr)
	}
}

func TestSet_APIURL_KeepsCase(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "api-url", "https://Perf.Example.com/API")
	if stderr != "" {
		t.Fatalf("unexpected stderr: %s", stderr)
	}

	cfg, _ := config.Load()
	if cfg.APIURL != "https://Perf.Example.com/API" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
}

func TestSet_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"cps-ceiling", "75", "cps-ceiling must be one of"},
		{"api-url", "ftp://x", "URL scheme"},
		{"log-level", "loud", "invalid log level"},
		{"log-format", "xml", "must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setupTestConfig(t)

			stdout, stderr := execConfig(t, "set", tt.key, tt.value)
			if stdout != "" {
				t.Errorf("unexpected stdout: %s", stdout)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("expected %q in stderr, got: %s", tt.want, stderr)
			}
		})
	}
}

func TestSet_UnknownKey(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "bogus-key", "value")

	if !strings.Contains(stderr, "unknown configuration key") {
		t.Errorf("expected 'unknown configuration key' error, got: %s", stderr)
	}
}

func TestUnset(t *testing.T) {
	path := setupTestConfig(t)
	if err := (&config.Config{CPSCeiling: 50}).SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	stdout, _ := execConfig(t, "unset", "cps-ceiling")
	if !strings.Contains(stdout, "cps-ceiling unset") {
		t.Errorf("unexpected output: %s", stdout)
	}

	cfg, _ := config.Load()
	if cfg.CPSCeiling != 0 {
		t.Errorf("CPSCeiling = %d, want 0", cfg.CPSCeiling)
	}
}
