package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"caseguard/internal/domain"
)

// MockRedactionAuditRepo is a mock implementation of port.RedactionAuditRepository.
type MockRedactionAuditRepo struct {
	mock.Mock
}

func (m *MockRedactionAuditRepo) Create(ctx context.Context, audit *domain.RedactionAudit) error {
	args := m.Called(ctx, audit)
	return args.Error(0)
}

func (m *MockRedactionAuditRepo) ListByCaseID(ctx context.Context, caseID string) ([]domain.RedactionAudit, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RedactionAudit), args.Error(1)
}
