package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the DD/MM/YYYY layout used by statement dates.
const DateLayout = "02/01/2006"

// Transaction represents a single card statement transaction.
type Transaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"` // filled in by downstream categorization
}

// MarshalJSON renders Amount as a bare JSON number with two decimals.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date        string      `json:"date"`
		Description string      `json:"description"`
		Amount      json.Number `json:"amount"`
		Category    string      `json:"category"`
	}{
		Date:        t.Date,
		Description: t.Description,
		Amount:      json.Number(t.Amount.StringFixed(2)),
		Category:    t.Category,
	})
}

// Time parses the transaction date.
func (t Transaction) Time() (time.Time, error) {
	return time.Parse(DateLayout, t.Date)
}

// Month returns the YYYY-MM bucket of the transaction, or "" when the date
// does not parse.
func (t Transaction) Month() string {
	d, err := t.Time()
	if err != nil {
		return ""
	}
	return d.Format("2006-01")
}

// BankType names a statement issuer profile.
type BankType string

const (
	BankIsbank  BankType = "isbank"
	BankGeneric BankType = "generic"
)

// DebugLine captures what the parser did with each transaction block.
type DebugLine struct {
	Page   int    `json:"page"`
	Block  int    `json:"block"`
	Text   string `json:"text"`
	Result string `json:"result"` // "parsed" or "discarded"
	Reason string `json:"reason,omitempty"`
}

// StatementInfo holds the result of parsing one statement document.
type StatementInfo struct {
	Bank         BankType
	Source       string
	Pages        int
	Transactions []Transaction
	DebugLines   []DebugLine
}

// Total sums the amounts of all transactions.
func (s *StatementInfo) Total() decimal.Decimal {
	total := decimal.Zero
	for _, txn := range s.Transactions {
		total = total.Add(txn.Amount)
	}
	return total
}
