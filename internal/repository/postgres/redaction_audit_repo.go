package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"caseguard/internal/domain"
	"caseguard/internal/port"
)

type redactionAuditRepo struct {
	db *sqlx.DB
}

// NewRedactionAuditRepo creates a new PostgreSQL-backed RedactionAuditRepository.
func NewRedactionAuditRepo(db *sqlx.DB) port.RedactionAuditRepository {
	return &redactionAuditRepo{db: db}
}

func (r *redactionAuditRepo) Create(ctx context.Context, audit *domain.RedactionAudit) error {
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO redaction_audits (
			id, attachment_id, case_id, submission_id, file_name,
			pii_detected, pii_redacted, regex_detections, model_detections, pii_types,
			original_sample, redacted_sample, extraction_method, risk_score,
			processing_time_ms, status, error_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING created_at`,
		audit.ID, audit.AttachmentID, audit.CaseID, audit.SubmissionID, audit.FileName,
		audit.PIIDetected, audit.PIIRedacted, audit.RegexDetections, audit.ModelDetections, audit.PIITypes,
		audit.OriginalSample, audit.RedactedSample, string(audit.ExtractionMethod), audit.RiskScore,
		audit.ProcessingTimeMs, string(audit.Status), audit.ErrorCode,
	).Scan(&audit.CreatedAt)
	if err != nil {
		return fmt.Errorf("redactionAuditRepo.Create: %w", err)
	}
	return nil
}

func (r *redactionAuditRepo) ListByCaseID(ctx context.Context, caseID string) ([]domain.RedactionAudit, error) {
	var audits []domain.RedactionAudit
	err := r.db.SelectContext(ctx, &audits,
		`SELECT id, attachment_id, case_id, submission_id, file_name,
			pii_detected, pii_redacted, regex_detections, model_detections, pii_types,
			original_sample, redacted_sample, extraction_method, risk_score,
			processing_time_ms, status, error_code, created_at
		 FROM redaction_audits
		 WHERE case_id = $1
		 ORDER BY created_at DESC`,
		caseID)
	if err != nil {
		return nil, fmt.Errorf("redactionAuditRepo.ListByCaseID: %w", err)
	}
	return audits, nil
}
