// Package auditexport renders a case's redaction audits as an XLSX workbook
// or a CSV file.
package auditexport

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"caseguard/internal/domain"
)

// SheetName is the worksheet holding the audit rows.
const SheetName = "Redaction Audits"

// columns defines the header row. Samples are left out so the export never
// carries raw document text.
var columns = []string{
	"Audit ID",
	"Attachment ID",
	"Case ID",
	"Submission ID",
	"File Name",
	"Status",
	"Error Code",
	"Extraction Method",
	"PII Detected",
	"PII Redacted",
	"Regex Detections",
	"Model Detections",
	"PII Types",
	"Risk Score",
	"Processing Time (ms)",
	"Created At",
}

// Format selects the export encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	return f == FormatXLSX || f == FormatCSV
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Writer accumulates rows in an in-memory workbook.
type Writer struct {
	file *excelize.File
	row  int
}

// NewWriter creates a Writer with an empty audit sheet.
func NewWriter() (*Writer, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("auditexport: naming sheet: %w", err)
	}
	return &Writer{file: f, row: 1}, nil
}

// WriteHeader writes the bold header row.
func (w *Writer) WriteHeader() error {
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := w.writeRow(header); err != nil {
		return err
	}
	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("auditexport: header style: %w", err)
	}
	return w.file.SetRowStyle(SheetName, 1, 1, style)
}

// WriteAudits appends one row per audit.
func (w *Writer) WriteAudits(audits []domain.RedactionAudit) error {
	for i := range audits {
		if err := w.writeRow(auditToRow(&audits[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes the workbook to out and releases it.
func (w *Writer) Flush(out io.Writer) error {
	defer func() { _ = w.file.Close() }()
	if err := w.file.Write(out); err != nil {
		return fmt.Errorf("auditexport: writing workbook: %w", err)
	}
	return nil
}

func (w *Writer) writeRow(values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("auditexport: row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

func auditToRow(a *domain.RedactionAudit) []interface{} {
	return []interface{}{
		a.ID.String(),
		a.AttachmentID.String(),
		a.CaseID,
		a.SubmissionID,
		a.FileName,
		string(a.Status),
		a.ErrorCode,
		string(a.ExtractionMethod),
		a.PIIDetected,
		a.PIIRedacted,
		a.RegexDetections,
		a.ModelDetections,
		strings.Join(a.PIITypes, ", "),
		a.RiskScore,
		a.ProcessingTimeMs,
		formatTime(a.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a case ID for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns the download name for a case export.
// Format: redaction-audits_{sanitized_case_id}_{YYYY-MM-DD}.{ext}
func BuildFilename(caseID string, f Format, now time.Time) string {
	return fmt.Sprintf("redaction-audits_%s_%s.%s", SanitizeFilename(caseID), now.Format("2006-01-02"), f)
}
