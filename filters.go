package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/card-statement-parser/internal/models"
)

type filters struct {
	startDate string
	endDate   string
	minAmount float64
	maxAmount float64
	payee     string
}

// filterFunc reports whether a transaction is kept.
type filterFunc func(t models.Transaction) bool

func (f *filters) toFilterFunc() (filterFunc, error) {
	var start, end time.Time
	var err error
	if f.startDate != "" {
		if start, err = time.Parse(models.DateLayout, f.startDate); err != nil {
			return nil, fmt.Errorf("invalid --start %q (use DD/MM/YYYY): %w", f.startDate, err)
		}
	}
	if f.endDate != "" {
		if end, err = time.Parse(models.DateLayout, f.endDate); err != nil {
			return nil, fmt.Errorf("invalid --end %q (use DD/MM/YYYY): %w", f.endDate, err)
		}
	}
	minAmount := decimal.NewFromFloat(f.minAmount)
	maxAmount := decimal.NewFromFloat(f.maxAmount)
	payee := strings.ToLower(f.payee)

	return func(t models.Transaction) bool {
		date, dateErr := t.Time()
		if !start.IsZero() && (dateErr != nil || date.Before(start)) {
			return false
		}
		if !end.IsZero() && (dateErr != nil || date.After(end)) {
			return false
		}
		if f.minAmount != 0 && t.Amount.LessThan(minAmount) {
			return false
		}
		if f.maxAmount != 0 && t.Amount.GreaterThan(maxAmount) {
			return false
		}
		if payee != "" && !strings.Contains(strings.ToLower(t.Description), payee) {
			return false
		}
		return true
	}, nil
}

// apply returns the transactions kept by keep, in their original order.
func apply(txns []models.Transaction, keep filterFunc) []models.Transaction {
	out := make([]models.Transaction, 0, len(txns))
	for _, t := range txns {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
