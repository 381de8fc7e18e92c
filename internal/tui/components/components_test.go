package components

import (
	"strings"
	"testing"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/notify"

	"github.com/charmbracelet/x/ansi"
)

func TestHeader_Brand(t *testing.T) {
	out := ansi.Strip(Header(60, "monitor", "Static data"))
	if !strings.Contains(out, "dialctl > monitor") {
		t.Errorf("header missing breadcrumb: %q", out)
	}
	if !strings.Contains(out, "Static data") {
		t.Errorf("header missing source: %q", out)
	}
	if Header(5, "monitor", "") != "" {
		t.Error("expected empty header for tiny widths")
	}
}

func TestFooter(t *testing.T) {
	out := ansi.Strip(Footer(60, []KeyBinding{{Key: "q", Desc: "quit"}, {Key: "r", Desc: "refresh"}}))
	if !strings.Contains(out, "q quit") || !strings.Contains(out, "r refresh") {
		t.Errorf("unexpected footer: %q", out)
	}
}

func TestNoticeBar(t *testing.T) {
	n := notify.Notice{Op: "set CLI limit", Message: "saved", Level: notify.LevelSuccess, ExpiresAt: time.Now()}
	out := ansi.Strip(NoticeBar(60, n))
	if !strings.Contains(out, "set CLI limit: saved") {
		t.Errorf("unexpected notice bar: %q", out)
	}
	if NoticeBar(60, notify.Notice{}) != "" {
		t.Error("expected empty bar for empty notice")
	}
}

func TestMetricsChart(t *testing.T) {
	if out := MetricsChart("CPS", nil, 40, ""); !strings.Contains(out, "no data") {
		t.Errorf("expected no data placeholder, got %q", out)
	}

	out := ansi.Strip(MetricsChart("CPS", []float64{1, 4, 2, 8}, 40, ""))
	for _, want := range []string{"CPS", "cur: 8.0", "min: 1.0", "max: 8.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("chart missing %q:\n%s", want, out)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{12.34, "12.3%"},
		{1500, "1.5K%"},
		{2_500_000, "2.5M%"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.v, "%"); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
