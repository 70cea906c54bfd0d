package port

import (
	"context"

	"caseguard/internal/domain"
)

// RedactionAuditRepository defines the contract for the case-record store's audit rows.
// Audits are append-only.
type RedactionAuditRepository interface {
	Create(ctx context.Context, audit *domain.RedactionAudit) error
	ListByCaseID(ctx context.Context, caseID string) ([]domain.RedactionAudit, error)
}
