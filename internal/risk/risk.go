// Package risk scores the residual sensitivity of a document's detections.
package risk

import (
	"math"

	"caseguard/internal/domain"
)

// Manual review thresholds.
const (
	ReviewScoreThreshold = 70
	ReviewCountThreshold = 10
)

const unknownWeight = 5

// Weights is the fixed severity of each PII type. Government identifiers and
// financial data weigh the most, contact details the least.
var Weights = map[domain.PIIType]int{
	domain.PIITypeSSN:            50,
	domain.PIITypeCreditCard:     45,
	domain.PIITypeBankAccount:    45,
	domain.PIITypePassport:       40,
	domain.PIITypeDriversLicense: 35,
	domain.PIITypeMedicalRecord:  35,
	domain.PIITypeDateOfBirth:    25,
	domain.PIITypeAddress:        20,
	domain.PIITypeName:           15,
	domain.PIITypeCaseNumber:     10,
	domain.PIITypeIPAddress:      10,
	domain.PIITypePhone:          10,
	domain.PIITypeEmail:          10,
}

// Weight returns the severity weight of t.
func Weight(t domain.PIIType) int {
	if w, ok := Weights[t]; ok {
		return w
	}
	return unknownWeight
}

// Score returns min(100, round(sum(weight*confidence) / n * 2)), 0 for no
// entities.
func Score(entities []domain.PIIEntity) int {
	if len(entities) == 0 {
		return 0
	}
	var sum float64
	for _, e := range entities {
		sum += float64(Weight(e.Type)) * e.Confidence
	}
	score := int(math.Round(sum / float64(len(entities)) * 2))
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// RequiresManualReview applies the fixed review gate.
func RequiresManualReview(score, detected int) bool {
	return score > ReviewScoreThreshold || detected > ReviewCountThreshold
}
