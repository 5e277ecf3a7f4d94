package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create profile file: %v", err)
	}
	return path
}

func TestLoadProfile(t *testing.T) {
	path := writeProfile(t, `
name: akbank
detect: ["AKBANK", "Axess"]
max_amount: "100.000,00"
rules:
  - {keyword: "TAKSIT", role: installment}
  - {keyword: "CHIP-PARA", role: point}
  - {keyword: "Kart Limiti", role: limit, window: 25}
  - {keyword: "Limit", role: limit}
  - {keyword: "XXXX", role: mask}
  - {keyword: "AKBANK T.A.S.", role: bank-suffix}
`)

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if p.Name != "akbank" {
		t.Errorf("name: got %q", p.Name)
	}
	if !p.MaxAmount.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("max amount: got %s, want 100000", p.MaxAmount)
	}
	if !p.MinPointAmount.Equal(decimal.NewFromInt(1)) {
		t.Errorf("min point amount: got %s, want default 1", p.MinPointAmount)
	}
	if got := p.Keywords(RoleLimit); len(got) != 2 || got[0] != "Kart Limiti" {
		t.Errorf("limit keywords: got %q", got)
	}

	e := mustExtractor(t, p)
	if len(e.limits) != 2 || e.limits[0].window != 25 || e.limits[1].window != DefaultLimitWindow {
		t.Errorf("limit windows: got %+v", e.limits)
	}

	r := e.Explain("11/05/2024 MEDIAMARKT 60.000,00 4/9TAKSIT")
	if r.Reason != ReasonInstallment || !r.Transaction.Amount.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("installment: got %+v", r)
	}

	r = e.Explain("11/05/2024 KOLTUK 75.000,00")
	if r.Reason != ReasonParsed {
		t.Errorf("raised ceiling should keep 75.000,00, got %q", r.Reason)
	}
}

func TestLoadProfile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", `rules: [{keyword: "T", role: installment}]`},
		{"unknown role", "name: x\nrules: [{keyword: T, role: installment}, {keyword: Y, role: nope}]"},
		{"no installment marker", "name: x\nrules: [{keyword: P, role: point}]"},
		{"blank keyword", "name: x\nrules: [{keyword: T, role: installment}, {keyword: '', role: point}]"},
		{"negative window", "name: x\nrules: [{keyword: T, role: installment}, {keyword: L, role: limit, window: -1}]"},
		{"bad max amount", "name: x\nmax_amount: lots\nrules: [{keyword: T, role: installment}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProfile(writeProfile(t, tt.content))
			if !errors.Is(err, ErrInvalidProfile) {
				t.Errorf("expected ErrInvalidProfile, got %v", err)
			}
		})
	}
}

func TestLoadProfile_MissingFile(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuiltinProfilesValidate(t *testing.T) {
	for _, p := range Profiles() {
		if err := p.Validate(); err != nil {
			t.Errorf("%s: %v", p.Name, err)
		}
	}
}
