package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"caseguard/internal/domain"
)

const documentXMLPath = "word/document.xml"

// DefaultMaxWordXMLBytes bounds how much of word/document.xml is inflated.
const DefaultMaxWordXMLBytes int64 = 100 << 20

// ErrWordXMLTooLarge is returned when a Word document body inflates past the cap.
var ErrWordXMLTooLarge = errors.New("word document body exceeds size limit")

var (
	// Matches a text run, a paragraph end, a tab or a line break.
	wordMarkupRe = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>|</w:p>|<w:tab/>|<w:br/>`)
	printableRe  = regexp.MustCompile(`[\x20-\x7E]{4,}`)
)

// extractWord scrapes visible text runs from Word markup. It is lossy by
// nature: tables, headers and fields are not reconstructed.
func extractWord(data []byte, maxXML int64) (*domain.ExtractionResult, error) {
	xml, ok, err := documentXML(data, maxXML)
	if err != nil {
		return nil, &domain.ExtractionError{Method: domain.ExtractionWord, Err: err}
	}
	if ok {
		return &domain.ExtractionResult{
			Text:       scrapeRuns(xml),
			Method:     domain.ExtractionWord,
			Confidence: 0.9,
		}, nil
	}

	// Legacy binary .doc: try markup first, then any printable runs.
	if text := scrapeRuns(data); text != "" {
		return &domain.ExtractionResult{Text: text, Method: domain.ExtractionWord, Confidence: 0.6}, nil
	}
	runs := printableRe.FindAll(data, -1)
	parts := make([]string, 0, len(runs))
	for _, r := range runs {
		parts = append(parts, strings.TrimSpace(string(r)))
	}
	return &domain.ExtractionResult{
		Text:       strings.Join(parts, "\n"),
		Method:     domain.ExtractionWord,
		Confidence: 0.3,
	}, nil
}

// documentXML inflates word/document.xml from a DOCX archive. ok is false when
// data is not a zip or has no document body.
func documentXML(data []byte, maxXML int64) (content []byte, ok bool, err error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, false, nil
	}
	for _, f := range zr.File {
		if f.Name != documentXMLPath {
			continue
		}
		if f.UncompressedSize64 > uint64(maxXML) {
			return nil, false, fmt.Errorf("%w: declared %d bytes, limit %d", ErrWordXMLTooLarge, f.UncompressedSize64, maxXML)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false, nil
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxXML+1))
		rc.Close()
		if err != nil {
			return nil, false, nil
		}
		if int64(len(content)) > maxXML {
			return nil, false, fmt.Errorf("%w: limit %d", ErrWordXMLTooLarge, maxXML)
		}
		return content, true, nil
	}
	return nil, false, nil
}

func scrapeRuns(markup []byte) string {
	var b strings.Builder
	for _, m := range wordMarkupRe.FindAllSubmatchIndex(markup, -1) {
		token := markup[m[0]:m[1]]
		switch {
		case m[2] >= 0:
			b.WriteString(html.UnescapeString(string(markup[m[2]:m[3]])))
		case bytes.Equal(token, []byte("<w:tab/>")):
			b.WriteByte('\t')
		default:
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String())
}
