package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"caseguard/internal/domain"
)

// DefaultMaxPDFPages bounds how many pages are read from a single PDF.
const DefaultMaxPDFPages = 50

func extractPDF(data []byte, maxPages int) (res *domain.ExtractionResult, err error) {
	// The PDF library panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &domain.ExtractionError{Method: domain.ExtractionPDF, Err: fmt.Errorf("pdf reader panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &domain.ExtractionError{Method: domain.ExtractionPDF, Err: err}
	}

	total := reader.NumPage()
	limit := total
	if limit > maxPages {
		limit = maxPages
	}

	pages := make([]string, 0, limit)
	withText := 0
	for i := 1; i <= limit; i++ {
		text, ok := pageText(reader, i)
		if ok {
			withText++
		}
		pages = append(pages, text)
	}

	confidence := 0.0
	if limit > 0 {
		confidence = float64(withText) / float64(limit)
	}

	return &domain.ExtractionResult{
		Text:       strings.Join(pages, "\n"),
		Method:     domain.ExtractionPDF,
		PageCount:  &total,
		Confidence: confidence,
	}, nil
}

// pageText returns the plain text of page num, or a placeholder when the page
// has no readable text layer.
func pageText(reader *pdf.Reader, num int) (text string, ok bool) {
	placeholder := fmt.Sprintf("[Page %d: no extractable text]", num)
	defer func() {
		if r := recover(); r != nil {
			text, ok = placeholder, false
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return placeholder, false
	}
	s, err := page.GetPlainText(nil)
	if err != nil {
		return placeholder, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return placeholder, false
	}
	return s, true
}
