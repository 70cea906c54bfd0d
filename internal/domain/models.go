package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PatternConfidence is the fixed confidence assigned to every pattern-rule match.
const PatternConfidence = 0.95

// ExtractionResult is the text obtained from a document plus its provenance.
type ExtractionResult struct {
	Text       string
	Method     ExtractionMethod
	PageCount  *int
	Confidence float64
	Language   string
}

// Origin records which detector produced an entity. It is a closed set:
// RegexOrigin and ModelOrigin are the only implementations.
type Origin interface {
	Source() EntitySource
	isOrigin()
}

// RegexOrigin marks an entity found by the named pattern rule.
type RegexOrigin struct {
	RuleID string
}

func (RegexOrigin) Source() EntitySource { return SourceRegex }
func (RegexOrigin) isOrigin()            {}

// ModelOrigin marks an entity reported by the language model. RawConfidence is
// the value exactly as the model returned it.
type ModelOrigin struct {
	RawConfidence float64
	Model         string
}

func (ModelOrigin) Source() EntitySource { return SourceModel }
func (ModelOrigin) isOrigin()            {}

// PIIEntity is a detected span. Start and End are half-open byte offsets into
// the UTF-8 text the entity was detected in.
type PIIEntity struct {
	Type       PIIType
	Value      string
	Start      int
	End        int
	Confidence float64
	Origin     Origin
}

// Source returns the detector family that produced the entity.
func (e PIIEntity) Source() EntitySource {
	if e.Origin == nil {
		return ""
	}
	return e.Origin.Source()
}

// Len returns the span length in bytes.
func (e PIIEntity) Len() int {
	return e.End - e.Start
}

// Overlaps reports whether the two half-open spans intersect.
func (e PIIEntity) Overlaps(o PIIEntity) bool {
	return !(e.End <= o.Start || o.End <= e.Start)
}

// RedactionResult is the output of the redactor.
type RedactionResult struct {
	OriginalText        string
	RedactedText        string
	Entities            []PIIEntity
	RedactionCount      int
	RedactionPercentage int
}

// RedactionAudit is the durable record of one pipeline invocation.
type RedactionAudit struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	AttachmentID     uuid.UUID        `db:"attachment_id" json:"attachment_id"`
	CaseID           string           `db:"case_id" json:"case_id"`
	SubmissionID     string           `db:"submission_id" json:"submission_id"`
	FileName         string           `db:"file_name" json:"file_name"`
	PIIDetected      int              `db:"pii_detected" json:"pii_detected"`
	PIIRedacted      int              `db:"pii_redacted" json:"pii_redacted"`
	RegexDetections  int              `db:"regex_detections" json:"regex_detections"`
	ModelDetections  int              `db:"model_detections" json:"model_detections"`
	PIITypes         pq.StringArray   `db:"pii_types" json:"pii_types"`
	OriginalSample   string           `db:"original_sample" json:"original_sample"`
	RedactedSample   string           `db:"redacted_sample" json:"redacted_sample"`
	ExtractionMethod ExtractionMethod `db:"extraction_method" json:"extraction_method"`
	RiskScore        int              `db:"risk_score" json:"risk_score"`
	ProcessingTimeMs int64            `db:"processing_time_ms" json:"processing_time_ms"`
	Status           AuditStatus      `db:"status" json:"status"`
	ErrorCode        string           `db:"error_code" json:"error_code,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// RedactionServiceResult is returned to the caller of the pipeline.
type RedactionServiceResult struct {
	Success              bool      `json:"success"`
	AttachmentID         uuid.UUID `json:"attachment_id"`
	FileName             string    `json:"file_name"`
	StorageKey           string    `json:"storage_key"`
	StorageURL           string    `json:"storage_url"`
	PIIDetected          int       `json:"pii_detected"`
	PIIRedacted          int       `json:"pii_redacted"`
	RiskScore            int       `json:"risk_score"`
	PIITypes             []string  `json:"pii_types"`
	ProcessingTimeMs     int64     `json:"processing_time_ms"`
	RequiresManualReview bool      `json:"requires_manual_review"`
}

// CaseRedactionStatus aggregates every audit recorded for a case.
type CaseRedactionStatus struct {
	DocumentsProcessed int              `json:"documents_processed"`
	TotalPIIDetected   int              `json:"total_pii_detected"`
	TotalPIIRedacted   int              `json:"total_pii_redacted"`
	AverageRiskScore   int              `json:"average_risk_score"`
	RequiresReview     bool             `json:"requires_review"`
	Audits             []RedactionAudit `json:"audits"`
}
