package parser

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/card-statement-parser/internal/models"
)

func TestAutoDetect(t *testing.T) {
	tests := []struct {
		name     string
		pages    []string
		expected models.BankType
		wantErr  bool
	}{
		{
			name:     "detects upper-case issuer name",
			pages:    []string{"TÜRKİYE İŞ BANKASI A.Ş. HESAP ÖZETİ"},
			expected: models.BankIsbank,
		},
		{
			name:     "detects title-case issuer name",
			pages:    []string{"Türkiye İş Bankası A.Ş."},
			expected: models.BankIsbank,
		},
		{
			name:     "detects card name",
			pages:    []string{"Maximum Kart Hesap Özeti"},
			expected: models.BankIsbank,
		},
		{
			name:     "english maximum is not the card name",
			pages:    []string{"ACME CARD STATEMENT\nCustomer Limit 10.000,00\nMaximum interest rate 3%"},
			expected: models.BankGeneric,
		},
		{
			name:     "detects isbank from point marker",
			pages:    []string{"header", "29/03/2024 NU-ER KAZANILANMAXIPUAN: 0,02"},
			expected: models.BankIsbank,
		},
		{
			name:     "detects generic layout",
			pages:    []string{"Card Statement\nCustomer Limit 20.000,00"},
			expected: models.BankGeneric,
		},
		{
			name:    "unknown issuer returns error",
			pages:   []string{"Some Unknown Bank\nStatement"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AutoDetect(tt.pages)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownBank) {
					t.Errorf("expected ErrUnknownBank, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		bankType models.BankType
		wantName string
		wantErr  bool
	}{
		{models.BankIsbank, "isbank", false},
		{models.BankGeneric, "generic", false},
		{"unknown", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.bankType), func(t *testing.T) {
			p, err := New(tt.bankType, log.Default())
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownBank) {
					t.Errorf("expected ErrUnknownBank, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.BankName() != tt.wantName {
				t.Errorf("got %q, want %q", p.BankName(), tt.wantName)
			}
		})
	}
}

func TestStatementParser_Parse(t *testing.T) {
	p, err := New(models.BankIsbank, log.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	pages := []string{
		`TÜRKİYE İŞ BANKASI A.Ş.
MAXIMUM KART HESAP ÖZETİ
Müşteri Limiti 40.000,00
Tarih Açıklama Tutar
01/04/2024 MIGROS TICARET A.S. 125,40
02/04/2024 TEKNOSA ISTANBUL
1.200,00 3/6taksidi
03/04/2024 NU-ER.IZMIRTRKAZANILANMAXIPUAN: 0,02`,
		`Sayfa 2
04/04/2024 SHELL PETROL
850,00 KAZANILANMAXIPUAN: 4,25
05/04/2024 DÖNEM BORÇTOPLAMI 9.876,54
06/04/2024 IADE TRENDYOL -32,00`,
	}

	info, err := p.Parse(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info.Bank != models.BankIsbank {
		t.Errorf("bank: got %q", info.Bank)
	}
	if info.Pages != 2 {
		t.Errorf("pages: got %d, want 2", info.Pages)
	}

	expected := []struct {
		date, description, amount string
	}{
		{"01/04/2024", "MIGROS TICARET A.S.", "125.40"},
		{"02/04/2024", "TEKNOSA ISTANBUL", "1200.00"},
		{"04/04/2024", "SHELL PETROL 850,00", "850.00"},
		{"06/04/2024", "IADE TRENDYOL", "-32.00"},
	}

	if len(info.Transactions) != len(expected) {
		t.Fatalf("transactions: got %d, want %d: %+v", len(info.Transactions), len(expected), info.Transactions)
	}

	datePattern := regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	for i, exp := range expected {
		got := info.Transactions[i]
		if !datePattern.MatchString(got.Date) || got.Date != exp.date {
			t.Errorf("txn[%d].Date: got %q, want %q", i, got.Date, exp.date)
		}
		if got.Description != exp.description {
			t.Errorf("txn[%d].Description: got %q, want %q", i, got.Description, exp.description)
		}
		if !got.Amount.Equal(decimal.RequireFromString(exp.amount)) {
			t.Errorf("txn[%d].Amount: got %s, want %s", i, got.Amount, exp.amount)
		}
	}

	if len(info.DebugLines) != 6 {
		t.Fatalf("debug lines: got %d, want 6", len(info.DebugLines))
	}
	discarded := map[string]string{}
	for _, d := range info.DebugLines {
		if d.Result == "discarded" {
			discarded[d.Text[:10]] = d.Reason
		}
	}
	if discarded["03/04/2024"] != string(ReasonPointOnly) {
		t.Errorf("03/04 reason: got %q", discarded["03/04/2024"])
	}
	if discarded["05/04/2024"] != string(ReasonLimitSuppressed) {
		t.Errorf("05/04 reason: got %q", discarded["05/04/2024"])
	}
	if info.DebugLines[4].Page != 2 || info.DebugLines[4].Block != 2 {
		t.Errorf("debug line position: got page %d block %d", info.DebugLines[4].Page, info.DebugLines[4].Block)
	}
}

func TestStatementParser_ParseEmpty(t *testing.T) {
	p, err := New(models.BankGeneric, log.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	info, err := p.Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Transactions) != 0 {
		t.Errorf("expected no transactions, got %d", len(info.Transactions))
	}
}

func TestStatementParser_ParseManyPagesKeepsOrder(t *testing.T) {
	p, err := New(models.BankGeneric, log.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var pages []string
	for day := 1; day <= 28; day++ {
		pages = append(pages, fmt.Sprintf("Page header\n%02d/04/2024 SHOP %d,00", day, day))
	}

	info, err := p.Parse(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Transactions) != 28 {
		t.Fatalf("transactions: got %d, want 28", len(info.Transactions))
	}
	for i, txn := range info.Transactions {
		if !txn.Amount.Equal(decimal.NewFromInt(int64(i + 1))) {
			t.Errorf("txn[%d]: got amount %s, want %d", i, txn.Amount, i+1)
		}
	}
}

func TestAutoDetect_EnglishStatementKeepsPointRules(t *testing.T) {
	pages := []string{`ACME CARD STATEMENT
Customer Limit 10.000,00
Maximum interest rate 3%
29/03/2024 SHOP POINTS-EARNED: 0,02 250,00
01/04/2024 PURCHASE Total Debt 45,90`}

	bank, err := AutoDetect(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := New(bank, log.New(io.Discard))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	info, err := p.Parse(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(info.Transactions) != 1 {
		t.Fatalf("transactions: got %d, want 1: %+v", len(info.Transactions), info.Transactions)
	}
	got := info.Transactions[0]
	if got.Description != "SHOP" || !got.Amount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("got %q %s, want SHOP 250", got.Description, got.Amount)
	}
	if info.DebugLines[1].Reason != string(ReasonLimitSuppressed) {
		t.Errorf("total debt row: got reason %q", info.DebugLines[1].Reason)
	}
}

// crashingExplainer panics on one block and defers to the real extractor otherwise.
type crashingExplainer struct {
	next  *Extractor
	crash string
}

func (c crashingExplainer) Explain(block string) Result {
	if strings.Contains(block, c.crash) {
		var e *Extractor
		return e.Explain(block)
	}
	return c.next.Explain(block)
}

func TestStatementParser_RecoversFromCrashingBlock(t *testing.T) {
	e, err := NewExtractor(IsbankProfile())
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	p := &StatementParser{
		profile:   IsbankProfile(),
		extractor: crashingExplainer{next: e, crash: "BOZUK"},
		logger:    log.New(io.Discard),
	}

	info, err := p.Parse([]string{"01/04/2024 MIGROS 125,40\n02/04/2024 BOZUK SATIR 10,00\n03/04/2024 BIM 48,75"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(info.Transactions) != 2 {
		t.Fatalf("transactions: got %d, want 2", len(info.Transactions))
	}
	if info.Transactions[0].Date != "01/04/2024" || info.Transactions[1].Date != "03/04/2024" {
		t.Errorf("dates: got %q and %q", info.Transactions[0].Date, info.Transactions[1].Date)
	}
	if len(info.DebugLines) != 3 {
		t.Fatalf("debug lines: got %d, want 3", len(info.DebugLines))
	}
	crashed := info.DebugLines[1]
	if crashed.Result != "discarded" || crashed.Reason != string(ReasonMalformedBlock) {
		t.Errorf("crashed block: got %s/%s", crashed.Result, crashed.Reason)
	}
}
