// Package redact replaces detected PII spans with type tokens.
package redact

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"caseguard/internal/domain"
)

var tokens = map[domain.PIIType]string{
	domain.PIITypeSSN:            "[SSN]",
	domain.PIITypePhone:          "[PHONE]",
	domain.PIITypeEmail:          "[EMAIL]",
	domain.PIITypeCreditCard:     "[CREDIT_CARD]",
	domain.PIITypeDriversLicense: "[DRIVERS_LICENSE]",
	domain.PIITypePassport:       "[PASSPORT]",
	domain.PIITypeBankAccount:    "[BANK_ACCOUNT]",
	domain.PIITypeIPAddress:      "[IP_ADDRESS]",
	domain.PIITypeDateOfBirth:    "[DOB]",
	domain.PIITypeMedicalRecord:  "[MRN]",
	domain.PIITypeCaseNumber:     "[CASE_NUMBER]",
	domain.PIITypeName:           "[NAME]",
	domain.PIITypeAddress:        "[ADDRESS]",
}

// Token returns the replacement for a PII type, "[<TYPE>]" for unknown types.
func Token(t domain.PIIType) string {
	if tok, ok := tokens[t]; ok {
		return tok
	}
	return "[" + string(t) + "]"
}

// Apply replaces every entity span in text with its token. Entities must be
// pairwise non-overlapping with offsets inside text, as produced by
// merge.Entities; spans are spliced in start-descending order so earlier
// offsets stay valid.
func Apply(text string, entities []domain.PIIEntity) domain.RedactionResult {
	ordered := make([]domain.PIIEntity, len(entities))
	copy(ordered, entities)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start > ordered[j].Start
	})

	redacted := text
	covered := 0
	limit := len(text)
	for _, e := range ordered {
		if e.Start < 0 || e.End > limit || e.Start >= e.End {
			continue
		}
		covered += utf8.RuneCountInString(text[e.Start:e.End])
		redacted = redacted[:e.Start] + Token(e.Type) + redacted[e.End:]
		limit = e.Start
	}

	return domain.RedactionResult{
		OriginalText:        text,
		RedactedText:        redacted,
		Entities:            entities,
		RedactionCount:      len(entities),
		RedactionPercentage: Percentage(covered, utf8.RuneCountInString(text)),
	}
}

// Percentage returns round(100 * covered / total), 0 when total is 0.
func Percentage(covered, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(covered) / float64(total)))
}

// Sample returns at most limit runes of s, for bounded audit samples.
func Sample(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
