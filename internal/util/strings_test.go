package util

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeKey(t *testing.T) {
	if got := NormalizeKey("  USA "); got != "usa" {
		t.Errorf("NormalizeKey = %q, want %q", got, "usa")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{" , ,", nil},
		{"usa", []string{"usa"}},
		{" *.sandbox, ,ci-* ", []string{"*.sandbox", "ci-*"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, SplitList(tt.in)); diff != "" {
			t.Errorf("SplitList(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}
