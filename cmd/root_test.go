package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/auditlog"
	"nathanbeddoewebdev/dialctl/internal/config"
	"nathanbeddoewebdev/dialctl/internal/database"
	"nathanbeddoewebdev/dialctl/internal/perf/providers"
	"nathanbeddoewebdev/dialctl/internal/services/auth"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	config.SetPath(filepath.Join(dir, "config.json"))
	t.Cleanup(config.ResetPath)
	dbPath := filepath.Join(dir, "dialctl.db")
	database.SetPath(dbPath)
	t.Cleanup(database.ResetPath)
	t.Setenv(config.EnvSource, "")
	t.Setenv(config.EnvLogLevel, "error")

	t.Cleanup(cmdutil.SetInteractive(false))
	t.Cleanup(cmdutil.SetStore(auth.NewMockStore()))
	t.Cleanup(cmdutil.SetCache(nil))

	providers.Reset()
	t.Cleanup(providers.Reset)
	providers.RegisterDefaults()
	return dbPath
}

func execRoot(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	code = run(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func auditEntries(t *testing.T, dbPath string) []auditlog.AuditEntry {
	t.Helper()
	repo, err := auditlog.OpenAt(dbPath)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	defer repo.Close()
	entries, err := repo.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	return entries
}

func TestRun_AuditsMutations(t *testing.T) {
	dbPath := setup(t)

	stdout, stderr, code := execRoot(t, "--source", "static", "quota", "set", "usa", "1500")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Daily CLI limit for USA set to 1500") {
		t.Errorf("unexpected output: %q", stdout)
	}

	_, stderr, code = execRoot(t, "--source", "static", "quota", "reset", "--country", "mexico")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.HasPrefix(stderr, "Error: ") || !strings.Contains(stderr, "--yes") {
		t.Errorf("unexpected stderr: %q", stderr)
	}

	got := auditEntries(t, dbPath)
	want := []auditlog.AuditEntry{
		{
			Command: "dialctl quota reset",
			Args:    "--source static quota reset --country mexico",
			Source:  "static",
			Op:      "quota.reset",
			Target:  "mexico",
			Outcome: auditlog.OutcomeError,
		},
		{
			Command: "dialctl quota set",
			Args:    "--source static quota set usa 1500",
			Source:  "static",
			Op:      "quota.set",
			Target:  "usa",
			Outcome: auditlog.OutcomeSuccess,
		},
	}
	opts := cmpopts.IgnoreFields(auditlog.AuditEntry{}, "ID", "Timestamp", "Detail", "DurationMs")
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("audit entries mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(got[0].Detail, "confirmation required") {
		t.Errorf("expected error detail, got %q", got[0].Detail)
	}
}

func TestRun_ReadsAreNotAudited(t *testing.T) {
	dbPath := setup(t)

	if _, stderr, code := execRoot(t, "--source", "static", "quota", "list"); code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if got := auditEntries(t, dbPath); len(got) != 0 {
		t.Errorf("expected no audit entries, got %+v", got)
	}
}

func TestRun_UnknownSource(t *testing.T) {
	setup(t)

	_, stderr, code := execRoot(t, "--source", "carrier-pigeon", "quota", "list")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "registered: api, static") {
		t.Errorf("expected registered sources in error, got %q", stderr)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	setup(t)

	_, stderr, code := execRoot(t, "frobnicate")
	if code != 1 || !strings.Contains(stderr, `unknown command "frobnicate"`) {
		t.Errorf("exit %d, stderr %q", code, stderr)
	}
}

func TestRun_InvalidLogLevel(t *testing.T) {
	setup(t)
	t.Setenv(config.EnvLogLevel, "loud")

	_, stderr, code := execRoot(t, "--source", "static", "quota", "list")
	if code != 1 || !strings.Contains(stderr, "invalid level") {
		t.Errorf("exit %d, stderr %q", code, stderr)
	}
}
