package auditexport

import (
	"encoding/csv"
	"fmt"
	"io"

	"caseguard/internal/domain"
)

// BOM is the UTF-8 byte order mark, written first for Excel on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter wraps csv.Writer for exporting audits as CSV.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes CSV to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteAudits converts a batch of audits to CSV rows and writes them.
func (w *CSVWriter) WriteAudits(audits []domain.RedactionAudit) error {
	for i := range audits {
		cells := auditToRow(&audits[i])
		row := make([]string, len(cells))
		for j, v := range cells {
			row[j] = fmt.Sprint(v)
		}
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}
