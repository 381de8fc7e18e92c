package cmdutil

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"nathanbeddoewebdev/dialctl/internal/config"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"

	"github.com/spf13/cobra"
)

func newCmd(t *testing.T, setup func(*cobra.Command), args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.PersistentFlags().String("source", "", "")
	cmd.PersistentFlags().String("api-url", "", "")
	if setup != nil {
		setup(cmd)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	return cmd
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{nil, OutputTable, false},
		{[]string{"-o", "json"}, OutputJSON, false},
		{[]string{"--output", "table"}, OutputTable, false},
		{[]string{"-o", "yaml"}, "", true},
	}
	for _, tt := range tests {
		cmd := newCmd(t, AddOutputFlag, tt.args...)
		got, err := OutputFormat(cmd)
		if (err != nil) != tt.wantErr {
			t.Errorf("%v: err = %v, wantErr %v", tt.args, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("%v: got %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestConfirm(t *testing.T) {
	t.Cleanup(SetInteractive(false))

	yes := newCmd(t, AddYesFlag, "--yes")
	ok, err := Confirm(yes)("Proceed?")
	if !ok || err != nil {
		t.Errorf("--yes: got %v, %v", ok, err)
	}

	no := newCmd(t, AddYesFlag)
	ok, err = Confirm(no)("Proceed?")
	if ok || !errors.Is(err, ErrConfirmationRequired) {
		t.Errorf("no terminal: got %v, %v", ok, err)
	}
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	config.SetPath(filepath.Join(t.TempDir(), "config.json"))
	t.Cleanup(config.ResetPath)
	t.Setenv(config.EnvSource, "")
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvStreamURL, "")

	stored := &config.Config{Source: "api", APIURL: "http://old:8000", StreamURL: "ws://old:8000/stream"}
	if err := stored.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cmd := newCmd(t, nil, "--source", "static", "--api-url", "https://new.example.com")
	cfg, err := LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Source != "static" || cfg.APIURL != "https://new.example.com" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.StreamURL != "wss://new.example.com/performance/ws" {
		t.Errorf("stream URL should follow --api-url, got %q", cfg.StreamURL)
	}
}

func TestCancelled(t *testing.T) {
	if !Cancelled(errors.Join(errors.New("stop load test"), domain.ErrCancelled)) {
		t.Error("expected wrapped ErrCancelled to be a cancellation")
	}
	if Cancelled(errors.New("boom")) || Cancelled(nil) {
		t.Error("unexpected cancellation")
	}
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{" 72h ", 72 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"0d", 0, false},
		{"-1d", 0, true},
		{"-5h", 0, true},
		{"xd", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAge(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAge(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAge(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAuditAnnotation(t *testing.T) {
	cmd := &cobra.Command{Use: "x", Annotations: Audited()}
	if !IsAudited(cmd) || IsAudited(&cobra.Command{Use: "y"}) || IsAudited(nil) {
		t.Error("unexpected audit annotation result")
	}
}
