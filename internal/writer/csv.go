package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/insightdelivered/card-statement-parser/internal/models"
)

// Writer emits a parsed statement.
type Writer interface {
	Write(out io.Writer, info *models.StatementInfo) error
}

// WriteToFile writes a statement to the file at path with the given writer.
func WriteToFile(w Writer, path string, info *models.StatementInfo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	if err := w.Write(f, info); err != nil {
		return err
	}
	return f.Close()
}

// CSVWriter writes transactions to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// Write writes transactions in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, info *models.StatementInfo) error {
	writer := csv.NewWriter(out)

	if w.IncludeHeader {
		meta := [][]string{
			{"# Bank", string(info.Bank)},
			{"# Source", info.Source},
			{"# Pages", strconv.Itoa(info.Pages)},
		}
		for _, row := range meta {
			if row[1] == "" {
				continue
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	if err := writer.Write([]string{"Date", "Description", "Amount", "Category"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, txn := range info.Transactions {
		row := []string{
			txn.Date,
			txn.Description,
			txn.Amount.StringFixed(2),
			txn.Category,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
