// Package ingest reads extracted invoice and supporting-document records
// from disk. Extraction itself (OCR, vision models) happens upstream; the
// adapters there write one JSON record per source file, and this package is
// the boundary that turns those files into raw records for the pipeline.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fathomworks/tally-ho/internal/common"
)

// RawInvoice is an extracted invoice before normalization. Everything is
// stringly typed because extraction output is untrusted.
type RawInvoice struct {
	InvoiceID    string        `json:"invoice_id"`
	VendorName   string        `json:"vendor_name"`
	IssueDate    string        `json:"issue_date"`
	CurrencyCode string        `json:"currency_code"`
	TotalAmount  string        `json:"total_amount"`
	POReference  string        `json:"po_reference,omitempty"`
	LineItems    []RawLineItem `json:"line_items"`
	SourceFile   string        `json:"-"`
}

// RawLineItem is one extracted invoice line.
type RawLineItem struct {
	Description  string `json:"description"`
	Quantity     string `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	TaxRate      string `json:"tax_rate"`
	LineTotal    string `json:"line_total"`
	CurrencyCode string `json:"currency_code,omitempty"`
}

// RawSupportDoc is an extracted supporting document before normalization.
type RawSupportDoc struct {
	DocID        string `json:"doc_id"`
	DocType      string `json:"doc_type"`
	POReference  string `json:"po_reference,omitempty"`
	VendorName   string `json:"vendor_name"`
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
	IssueDate    string `json:"issue_date"`
	SourceFile   string `json:"-"`
}

// ReadInvoiceDir reads every *.json file under dir as a RawInvoice.
// Files that cannot be read or decoded are skipped and counted; one bad
// file never aborts the run. Results are ordered by file name so the
// pipeline's input order is reproducible.
func ReadInvoiceDir(dir string) ([]RawInvoice, int, error) {
	files, err := listJSONFiles(dir)
	if err != nil {
		return nil, 0, err
	}

	invoices := make([]RawInvoice, 0, len(files))
	skipped := 0
	for _, path := range files {
		var raw RawInvoice
		if err := decodeFile(path, &raw); err != nil {
			common.LogError(err, "Skipping invoice file", common.Fields{"file": path})
			skipped++
			continue
		}
		raw.SourceFile = filepath.Base(path)
		invoices = append(invoices, raw)
	}

	slog.Info("Read invoice records", "dir", dir, "count", len(invoices), "skipped", skipped)
	return invoices, skipped, nil
}

// ReadSupportDocDir reads every *.json file under dir as a RawSupportDoc,
// with the same skip-and-continue behavior as ReadInvoiceDir.
func ReadSupportDocDir(dir string) ([]RawSupportDoc, int, error) {
	files, err := listJSONFiles(dir)
	if err != nil {
		return nil, 0, err
	}

	docs := make([]RawSupportDoc, 0, len(files))
	skipped := 0
	for _, path := range files {
		var raw RawSupportDoc
		if err := decodeFile(path, &raw); err != nil {
			common.LogError(err, "Skipping support document file", common.Fields{"file": path})
			skipped++
			continue
		}
		raw.SourceFile = filepath.Base(path)
		docs = append(docs, raw)
	}

	slog.Info("Read support document records", "dir", dir, "count", len(docs), "skipped", skipped)
	return docs, skipped, nil
}

func listJSONFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func decodeFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrExtractionFailed, filepath.Base(path), err)
	}
	return nil
}
