package clis

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/config"
	"nathanbeddoewebdev/dialctl/internal/perf/catalog"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/providers"
	"nathanbeddoewebdev/dialctl/internal/services/auth"

	"github.com/google/go-cmp/cmp"
)

func setup(t *testing.T) {
	t.Helper()
	config.SetPath(filepath.Join(t.TempDir(), "config.json"))
	t.Cleanup(config.ResetPath)
	t.Setenv(config.EnvSource, "static")

	t.Cleanup(cmdutil.SetInteractive(false))
	t.Cleanup(cmdutil.SetStore(auth.NewMockStore()))
	t.Cleanup(cmdutil.SetCache(nil))

	src := providers.NewStaticSource()
	providers.Reset()
	t.Cleanup(providers.Reset)
	providers.Register("static", func(providers.Settings) (domain.Source, error) {
		return src, nil
	})
}

func execClis(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func listJSON(t *testing.T, args ...string) catalog.Page {
	t.Helper()
	stdout, _, err := execClis(t, append([]string{"list", "-o", "json"}, args...)...)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var page catalog.Page
	if err := json.Unmarshal([]byte(stdout), &page); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	return page
}

func ids(records []domain.CliRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestList_Table(t *testing.T) {
	setup(t)

	stdout, _, err := execClis(t, "list", "--country", "Canada")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, want := range []string{"ID", "NUMBER", "cli-009", "cli-012", "CANADA", "Page 1 of 1 (4 CLIs)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestList_Queries(t *testing.T) {
	setup(t)

	tests := []struct {
		name  string
		args  []string
		want  []string
		total int
	}{
		{"country filter", []string{"--country", "colombia"}, []string{"cli-018", "cli-019", "cli-020"}, 3},
		{"blocked status", []string{"--status", "blocked"}, []string{"cli-011"}, 1},
		{"second page", []string{"--per-page", "5", "--page", "2"}, []string{"cli-006", "cli-007", "cli-008", "cli-009", "cli-010"}, 20},
		{"id descending", []string{"--desc", "--per-page", "3"}, []string{"cli-020", "cli-019", "cli-018"}, 20},
		{"past last page", []string{"--page", "9"}, []string{}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := listJSON(t, tt.args...)
			if diff := cmp.Diff(tt.want, ids(page.Items)); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
			if page.Total != tt.total {
				t.Errorf("total = %d, want %d", page.Total, tt.total)
			}
		})
	}
}

func TestList_UnknownSortKey(t *testing.T) {
	setup(t)

	_, _, err := execClis(t, "list", "--sort", "colour")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || !ve.Has("sort") {
		t.Errorf("expected sort violation, got %v", err)
	}
}

func TestList_BadFlags(t *testing.T) {
	setup(t)

	for _, args := range [][]string{
		{"list", "--status", "sleepy"},
		{"list", "--page", "0"},
		{"list", "--per-page", "0"},
	} {
		if _, _, err := execClis(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestList_HugePerPage(t *testing.T) {
	setup(t)

	page := listJSON(t, "--page", "2", "--per-page", "9223372036854775807")
	if len(page.Items) != 0 || page.Total != 20 || page.TotalPages != 1 {
		t.Errorf("unexpected page: items=%d total=%d pages=%d", len(page.Items), page.Total, page.TotalPages)
	}

	page = listJSON(t, "--per-page", "9223372036854775807")
	if len(page.Items) != 20 {
		t.Errorf("expected every CLI on the first page, got %d", len(page.Items))
	}
}

func TestList_NoMatches(t *testing.T) {
	setup(t)

	stdout, _, err := execClis(t, "list", "--country", "peru")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(stdout, "No CLIs match") {
		t.Errorf("unexpected output: %q", stdout)
	}
}

func TestStats_JSON(t *testing.T) {
	setup(t)

	stdout, _, err := execClis(t, "stats", "-o", "json")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	var got statsView
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Total != 20 || got.ByStatus["blocked"] != 1 {
		t.Errorf("unexpected stats: %+v", got)
	}
	if diff := cmp.Diff([]string{"canada", "colombia", "mexico", "usa"}, got.Countries); diff != "" {
		t.Errorf("countries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"telnyx", "twilio"}, got.Providers); diff != "" {
		t.Errorf("providers mismatch (-want +got):\n%s", diff)
	}
}
