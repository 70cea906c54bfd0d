package extract

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"caseguard/internal/domain"
)

// extractText decodes data as UTF-8, honouring a UTF-8 or UTF-16 byte order
// mark. Invalid sequences become U+FFFD.
func extractText(data []byte) *domain.ExtractionResult {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		decoded = data
	}
	return &domain.ExtractionResult{
		Text:       strings.ToValidUTF8(string(decoded), "\uFFFD"),
		Method:     domain.ExtractionText,
		Confidence: 1.0,
	}
}

// stripControl removes C0 control characters other than tab, newline and
// carriage return, plus DEL. Postgres TEXT columns reject NUL.
func stripControl(text string) string {
	if strings.IndexFunc(text, isStrippedControl) < 0 {
		return text
	}
	return strings.Map(func(r rune) rune {
		if isStrippedControl(r) {
			return -1
		}
		return r
	}, text)
}

func isStrippedControl(r rune) bool {
	switch r {
	case '\t', '\n', '\r':
		return false
	}
	return r < 0x20 || r == 0x7F
}
