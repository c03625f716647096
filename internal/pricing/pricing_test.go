package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"sorastudio/internal/domain"
)

func TestDefaultCost(t *testing.T) {
	calc := Default()
	cases := []struct {
		name     string
		model    domain.Model
		res      domain.Resolution
		duration int
		want     float64
	}{
		{name: "sora-2 720p 8s", model: "sora-2", res: "1280x720", duration: 8, want: 0.80},
		{name: "sora-2-pro tall 4s", model: "sora-2-pro", res: "1024x1792", duration: 4, want: 2.00},
		{name: "sora-2-pro 720p 12s", model: "sora-2-pro", res: "720x1280", duration: 12, want: 3.60},
		{name: "unsupported pair", model: "sora-2", res: "1792x1024", duration: 8, want: 0},
		{name: "unknown model", model: "sora-9", res: "1280x720", duration: 8, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := calc.Cost(tc.model, tc.res, tc.duration); got != tc.want {
				t.Fatalf("Cost() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSupportsFollowsTable(t *testing.T) {
	calc := Default()
	if !calc.Supports(domain.ModelSora2Pro, domain.Resolution1792x1024) {
		t.Fatal("sora-2-pro should support 1792x1024")
	}
	if calc.Supports(domain.ModelSora2, domain.Resolution1024x1792) {
		t.Fatal("sora-2 should not support 1024x1792")
	}
	got := calc.Resolutions(domain.ModelSora2)
	if len(got) != 2 || got[0] != domain.Resolution1280x720 || got[1] != domain.Resolution720x1280 {
		t.Fatalf("Resolutions(sora-2) = %v", got)
	}
}

func TestLoadOverridesRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.toml")
	data := []byte("currency = \"EUR\"\n[rates.\"sora-2\"]\n\"1280x720\" = 0.25\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write rates: %v", err)
	}
	calc, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := calc.Cost(domain.ModelSora2, domain.Resolution1280x720, 4); got != 1.00 {
		t.Fatalf("Cost() = %v, want 1.00", got)
	}
	if calc.Table().Currency != "EUR" {
		t.Fatalf("Currency = %q, want EUR", calc.Table().Currency)
	}
	if calc.Supports(domain.ModelSora2Pro, domain.Resolution1280x720) {
		t.Fatal("override table should not keep embedded pairs")
	}
}

func TestParseRejectsBadTables(t *testing.T) {
	if _, err := Parse([]byte("currency = \"USD\"\n")); err == nil {
		t.Fatal("expected error for empty table")
	}
	if _, err := Parse([]byte("[rates.\"sora-2\"]\n\"1280x720\" = -1.0\n")); err == nil {
		t.Fatal("expected error for negative rate")
	}
	if _, err := Parse([]byte("not toml")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFormatCost(t *testing.T) {
	if got := FormatCost(0.8); got != "$0.80" {
		t.Fatalf("FormatCost(0.8) = %q", got)
	}
}
