package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"caseguard/internal/auditexport"
	"caseguard/internal/domain"
	"caseguard/internal/service"
)

// MockRedactionService is a mock implementation of service.RedactionService.
type MockRedactionService struct {
	mock.Mock
}

func (m *MockRedactionService) ProcessDocumentForPII(ctx context.Context, input *service.ProcessDocumentInput) (*domain.RedactionServiceResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RedactionServiceResult), args.Error(1)
}

func (m *MockRedactionService) GetCaseRedactionStatus(ctx context.Context, caseID string) (*domain.CaseRedactionStatus, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CaseRedactionStatus), args.Error(1)
}

func (m *MockRedactionService) ExportCaseAudits(ctx context.Context, caseID string, format auditexport.Format) ([]byte, error) {
	args := m.Called(ctx, caseID, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
