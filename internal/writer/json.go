package writer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/insightdelivered/card-statement-parser/internal/models"
)

// JSONWriter writes the ordered transaction list as a JSON array.
type JSONWriter struct {
	Indent bool
}

// Write writes transactions as JSON. An empty statement is written as [].
func (w *JSONWriter) Write(out io.Writer, info *models.StatementInfo) error {
	txns := []models.Transaction{}
	if info != nil && info.Transactions != nil {
		txns = info.Transactions
	}

	enc := json.NewEncoder(out)
	if w.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(txns); err != nil {
		return fmt.Errorf("failed to encode transactions: %w", err)
	}
	return nil
}
