// Package detect finds PII spans in extracted document text.
package detect

import (
	"regexp"

	"caseguard/internal/domain"
)

// Rule is a named pattern for one PII category. When Group is non-zero only
// that capture group is reported, so labels such as "DOB:" stay unredacted.
// Valid, when set, must accept the matched value.
type Rule struct {
	ID      string
	Type    domain.PIIType
	Pattern *regexp.Regexp
	Group   int
	Valid   func(value string) bool
}

const idSuffix = `(?:\s+(?i:no\.?|number|#))?[\s:#]*`

// DefaultRules is the fixed rule table, in reporting order.
var DefaultRules = []Rule{
	{ID: "ssn", Type: domain.PIITypeSSN,
		Pattern: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{ID: "phone", Type: domain.PIITypePhone,
		Pattern: regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\b\d{3}\)?[-.\s]?\d{3}[-.\s]\d{4}\b`)},
	{ID: "email", Type: domain.PIITypeEmail,
		Pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{ID: "credit_card", Type: domain.PIITypeCreditCard,
		Pattern: regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`), Valid: luhnValid},
	{ID: "drivers_license", Type: domain.PIITypeDriversLicense,
		Pattern: regexp.MustCompile(`(?i:driver'?s?\s+licen[cs]e|\bDL)` + idSuffix + `([A-Z]{1,2}\d{5,8})\b`), Group: 1},
	{ID: "passport", Type: domain.PIITypePassport,
		Pattern: regexp.MustCompile(`(?i:passport)` + idSuffix + `([A-Z]{0,2}\d{6,9})\b`), Group: 1},
	{ID: "bank_account", Type: domain.PIITypeBankAccount,
		Pattern: regexp.MustCompile(`(?i:\b(?:bank\s+)?(?:account|acct))` + idSuffix + `(\d{8,17})\b`), Group: 1},
	{ID: "ip_address", Type: domain.PIITypeIPAddress,
		Pattern: regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)},
	{ID: "date_of_birth", Type: domain.PIITypeDateOfBirth,
		Pattern: regexp.MustCompile(`(?i:\bDOB|date\s+of\s+birth|\bborn(?:\s+on)?)[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`), Group: 1},
	{ID: "medical_record", Type: domain.PIITypeMedicalRecord,
		Pattern: regexp.MustCompile(`(?i:\bMRN|medical\s+record)` + idSuffix + `([A-Z]{0,3}-?\d{5,10})\b`), Group: 1},
	{ID: "case_number_federal", Type: domain.PIITypeCaseNumber,
		Pattern: regexp.MustCompile(`\b\d{1,2}:\d{2}-[A-Za-z]{2,4}-\d{3,6}(?:-[A-Za-z]{2,4})*\b`)},
	{ID: "case_number_labeled", Type: domain.PIITypeCaseNumber,
		Pattern: regexp.MustCompile(`(?i:\bcase)` + idSuffix + `([A-Z0-9]{2,}(?:-[A-Z0-9]+)+)\b`), Group: 1},
}

// PatternDetector scans text with a fixed rule table. It is stateless and safe
// for concurrent use.
type PatternDetector struct {
	rules []Rule
}

// NewPatternDetector creates a detector over DefaultRules.
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{rules: DefaultRules}
}

// Detect returns every rule match in text, ordered by rule then position.
// Matches from different rules may overlap.
func (d *PatternDetector) Detect(text string) []domain.PIIEntity {
	var entities []domain.PIIEntity
	for _, r := range d.rules {
		for _, m := range r.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*r.Group], m[2*r.Group+1]
			if start < 0 || end <= start {
				continue
			}
			if r.Valid != nil && !r.Valid(text[start:end]) {
				continue
			}
			entities = append(entities, domain.PIIEntity{
				Type:       r.Type,
				Value:      text[start:end],
				Start:      start,
				End:        end,
				Confidence: domain.PatternConfidence,
				Origin:     domain.RegexOrigin{RuleID: r.ID},
			})
		}
	}
	return entities
}

// luhnValid reports whether the digits of value pass the Luhn checksum.
// Separators are ignored.
func luhnValid(value string) bool {
	sum, n := 0, 0
	for i := len(value) - 1; i >= 0; i-- {
		c := value[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if n%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		n++
	}
	return n > 0 && sum%10 == 0
}
