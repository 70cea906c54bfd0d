package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"caseguard/internal/auditexport"
	"caseguard/internal/detect"
	"caseguard/internal/domain"
	"caseguard/internal/extract"
	"caseguard/internal/observability/metrics"
	"caseguard/internal/port"
	"caseguard/internal/service"
	"caseguard/mocks"
)

type pipelineMocks struct {
	gen      *mocks.MockTextGenerator
	storage  *mocks.MockObjectStorage
	audits   *mocks.MockRedactionAuditRepo
	notifier *mocks.MockReviewNotifier
}

func setupRedactionService(t *testing.T) (service.RedactionService, *pipelineMocks) {
	t.Helper()
	m := &pipelineMocks{
		gen:      new(mocks.MockTextGenerator),
		storage:  new(mocks.MockObjectStorage),
		audits:   new(mocks.MockRedactionAuditRepo),
		notifier: new(mocks.MockReviewNotifier),
	}
	svc := service.NewRedactionService(
		extract.NewExtractor(nil),
		detect.NewPatternDetector(),
		detect.NewModelDetector(m.gen, nil, detect.ModelDetectorConfig{Model: "test-model"}),
		m.storage,
		m.audits,
		m.notifier,
		metrics.NewPipelineMetrics(prometheus.NewRegistry()),
		service.RedactionConfig{Bucket: "redacted", PresignExpiry: 900, MaxFileBytes: 1024},
	)
	return svc, m
}

func noModelEntities(m *pipelineMocks) {
	m.gen.On("Generate", mock.Anything, mock.Anything).
		Return(&port.GenerateResponse{Content: []byte(`{"entities":[]}`), Model: "test-model"}, nil)
}

// expectUpload captures the uploaded body into *body.
func expectUpload(m *pipelineMocks, body *string) {
	m.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "redacted" && in.ContentType == "text/plain"
	})).Run(func(args mock.Arguments) {
		data, _ := io.ReadAll(args.Get(1).(port.UploadInput).Body)
		*body = string(data)
	}).Return(&port.UploadOutput{ETag: "etag"}, nil)
	m.storage.On("GetPresignedURL", mock.Anything, "redacted", mock.AnythingOfType("string"), int64(900)).
		Return("https://signed.example/artifact", nil)
}

func textInput(text string) *service.ProcessDocumentInput {
	return &service.ProcessDocumentInput{
		Data:         []byte(text),
		FileName:     "notes/intake.txt",
		MIMEType:     "text/plain",
		CaseID:       "C-100",
		SubmissionID: "S-7",
	}
}

func TestRedactionService_EmailAndPhone(t *testing.T) {
	svc, m := setupRedactionService(t)
	noModelEntities(m)
	var uploaded string
	expectUpload(m, &uploaded)

	var audit *domain.RedactionAudit
	m.audits.On("Create", mock.Anything, mock.AnythingOfType("*domain.RedactionAudit")).
		Run(func(args mock.Arguments) { audit = args.Get(1).(*domain.RedactionAudit) }).
		Return(nil)

	result, err := svc.ProcessDocumentForPII(context.Background(), textInput("Contact me at jane@example.com or 406-555-1212"))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Contact me at [EMAIL] or [PHONE]", uploaded)
	assert.Equal(t, 2, result.PIIDetected)
	assert.Equal(t, 2, result.PIIRedacted)
	assert.Equal(t, 19, result.RiskScore)
	assert.False(t, result.RequiresManualReview)
	assert.Equal(t, []string{"EMAIL", "PHONE"}, result.PIITypes)
	assert.Equal(t, "https://signed.example/artifact", result.StorageURL)
	assert.Equal(t,
		fmt.Sprintf("cases/C-100/submissions/S-7/redacted/%s/intake.redacted.txt", result.AttachmentID),
		result.StorageKey)

	require.NotNil(t, audit)
	assert.Equal(t, domain.AuditStatusCompleted, audit.Status)
	assert.Equal(t, result.AttachmentID, audit.AttachmentID)
	assert.Equal(t, 2, audit.RegexDetections)
	assert.Equal(t, 0, audit.ModelDetections)
	assert.Equal(t, domain.ExtractionText, audit.ExtractionMethod)
	assert.Equal(t, "Contact me at [EMAIL] or [PHONE]", audit.RedactedSample)
	assert.Empty(t, audit.ErrorCode)
	m.notifier.AssertNotCalled(t, "NotifyManualReview", mock.Anything, mock.Anything)
}

func TestRedactionService_SSNAndCardRequireReview(t *testing.T) {
	svc, m := setupRedactionService(t)
	noModelEntities(m)
	var uploaded string
	expectUpload(m, &uploaded)
	m.audits.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.RedactionAudit) bool {
		return a.Status == domain.AuditStatusManualReview && a.RiskScore == 90
	})).Return(nil)
	m.notifier.On("NotifyManualReview", mock.Anything, mock.MatchedBy(func(n port.ReviewNotice) bool {
		return n.CaseID == "C-100" && n.RiskScore == 90 && n.PIIDetected == 2
	})).Return(nil)

	result, err := svc.ProcessDocumentForPII(context.Background(), textInput("SSN 123-45-6789, card 4111 1111 1111 1111."))

	require.NoError(t, err)
	assert.Equal(t, 2, result.PIIRedacted)
	assert.True(t, result.RequiresManualReview)
	assert.Equal(t, "SSN [SSN], card [CREDIT_CARD].", uploaded)
	m.audits.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestRedactionService_OverlapKeepsHigherConfidence(t *testing.T) {
	svc, m := setupRedactionService(t)
	m.gen.On("Generate", mock.Anything, mock.Anything).Return(&port.GenerateResponse{
		Content: []byte(`{"entities":[{"type":"BANK_ACCOUNT","value":"123-45-6789","start":4,"end":15,"confidence":0.6}]}`),
	}, nil)
	var uploaded string
	expectUpload(m, &uploaded)
	var audit *domain.RedactionAudit
	m.audits.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { audit = args.Get(1).(*domain.RedactionAudit) }).
		Return(nil)
	m.notifier.On("NotifyManualReview", mock.Anything, mock.Anything).Return(nil).Maybe()

	result, err := svc.ProcessDocumentForPII(context.Background(), textInput("SSN 123-45-6789"))

	require.NoError(t, err)
	assert.Equal(t, 1, result.PIIDetected)
	assert.Equal(t, []string{"SSN"}, result.PIITypes)
	assert.Equal(t, "SSN [SSN]", uploaded)
	assert.Equal(t, 1, audit.RegexDetections)
	assert.Equal(t, 0, audit.ModelDetections)
}

func TestRedactionService_ManyLowWeightEntitiesRequireReview(t *testing.T) {
	svc, m := setupRedactionService(t)
	noModelEntities(m)
	var uploaded string
	expectUpload(m, &uploaded)
	m.audits.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("NotifyManualReview", mock.Anything, mock.Anything).Return(nil)

	emails := make([]string, 12)
	for i := range emails {
		emails[i] = fmt.Sprintf("user%02d@example.com", i)
	}
	result, err := svc.ProcessDocumentForPII(context.Background(), textInput(strings.Join(emails, " ")))

	require.NoError(t, err)
	assert.Equal(t, 12, result.PIIDetected)
	assert.LessOrEqual(t, result.RiskScore, 70)
	assert.True(t, result.RequiresManualReview)
	m.notifier.AssertNumberOfCalls(t, "NotifyManualReview", 1)
}

func TestRedactionService_ModelFailureFallsBackToPatterns(t *testing.T) {
	svc, m := setupRedactionService(t)
	m.gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	var uploaded string
	expectUpload(m, &uploaded)
	var audit *domain.RedactionAudit
	m.audits.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { audit = args.Get(1).(*domain.RedactionAudit) }).
		Return(nil)

	result, err := svc.ProcessDocumentForPII(context.Background(), textInput("Contact me at jane@example.com or 406-555-1212"))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.PIIDetected)
	assert.NotEqual(t, domain.AuditStatusFailed, audit.Status)
}

func TestRedactionService_WithoutModelDetector(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	audits := new(mocks.MockRedactionAuditRepo)
	svc := service.NewRedactionService(
		extract.NewExtractor(nil), detect.NewPatternDetector(), nil,
		storage, audits, nil, nil,
		service.RedactionConfig{Bucket: "b"},
	)
	storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	storage.On("GetPresignedURL", mock.Anything, "b", mock.Anything, int64(3600)).Return("u", nil)
	audits.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.ProcessDocumentForPII(context.Background(), textInput("No identifiers here."))

	require.NoError(t, err)
	assert.Equal(t, 0, result.PIIDetected)
	assert.Equal(t, 0, result.RiskScore)
	assert.Equal(t, []string{}, result.PIITypes)
}

func TestRedactionService_ValidationErrorsAreNotAudited(t *testing.T) {
	tests := []struct {
		name  string
		input *service.ProcessDocumentInput
		field string
	}{
		{"empty buffer", &service.ProcessDocumentInput{MIMEType: "text/plain", CaseID: "C-1"}, "file"},
		{"blank mime", &service.ProcessDocumentInput{Data: []byte("x"), CaseID: "C-1"}, "mime_type"},
		{"blank case", &service.ProcessDocumentInput{Data: []byte("x"), MIMEType: "text/plain", CaseID: " "}, "case_id"},
		{"too large", &service.ProcessDocumentInput{Data: make([]byte, 2048), MIMEType: "text/plain", CaseID: "C-1"}, "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := setupRedactionService(t)

			result, err := svc.ProcessDocumentForPII(context.Background(), tt.input)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, domain.ErrValidation)
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			m.audits.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			m.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
		})
	}
}

func TestRedactionService_ExtractionFailureWritesFailedAudit(t *testing.T) {
	svc, m := setupRedactionService(t)
	m.audits.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.RedactionAudit) bool {
		return a.Status == domain.AuditStatusFailed &&
			a.ErrorCode == "EXTRACTION_ERROR" &&
			a.PIIDetected == 0 && a.RiskScore == 0 &&
			a.CaseID == "C-100"
	})).Return(nil)

	input := textInput("")
	input.Data = []byte("not really a pdf")
	input.MIMEType = "application/pdf"
	input.FileName = "scan.pdf"
	result, err := svc.ProcessDocumentForPII(context.Background(), input)

	assert.Nil(t, result)
	assert.Equal(t, domain.ErrProcessingFailed, err)
	m.audits.AssertExpectations(t)
	m.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestRedactionService_UploadFailureWritesFailedAudit(t *testing.T) {
	svc, m := setupRedactionService(t)
	noModelEntities(m)
	m.storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("s3 unavailable"))
	m.audits.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.RedactionAudit) bool {
		return a.Status == domain.AuditStatusFailed &&
			a.ErrorCode == "PERSISTENCE_ERROR" &&
			a.ExtractionMethod == domain.ExtractionText
	})).Return(nil)

	_, err := svc.ProcessDocumentForPII(context.Background(), textInput("jane@example.com"))

	assert.Equal(t, domain.ErrProcessingFailed, err)
	m.audits.AssertExpectations(t)
}

func TestRedactionService_AuditFailureRemovesArtifact(t *testing.T) {
	svc, m := setupRedactionService(t)
	noModelEntities(m)
	var uploaded string
	expectUpload(m, &uploaded)
	m.storage.On("Delete", mock.Anything, "redacted", mock.AnythingOfType("string")).Return(nil)
	m.audits.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.RedactionAudit) bool {
		return a.Status == domain.AuditStatusCompleted
	})).Return(errors.New("db down")).Once()
	m.audits.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.RedactionAudit) bool {
		return a.Status == domain.AuditStatusFailed
	})).Return(errors.New("db down")).Once()

	_, err := svc.ProcessDocumentForPII(context.Background(), textInput("jane@example.com"))

	assert.Equal(t, domain.ErrProcessingFailed, err)
	m.storage.AssertCalled(t, "Delete", mock.Anything, "redacted", mock.AnythingOfType("string"))
	m.audits.AssertExpectations(t)
}

func TestRedactionService_FailedAuditSurvivesCancelledRequest(t *testing.T) {
	svc, m := setupRedactionService(t)
	noModelEntities(m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.storage.On("Upload", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	var writeErr error
	var audit *domain.RedactionAudit
	m.audits.On("Create", mock.Anything, mock.AnythingOfType("*domain.RedactionAudit")).
		Run(func(args mock.Arguments) {
			writeErr = args.Get(0).(context.Context).Err()
			audit = args.Get(1).(*domain.RedactionAudit)
		}).
		Return(nil)

	_, err := svc.ProcessDocumentForPII(ctx, textInput("jane@example.com"))

	assert.Equal(t, domain.ErrProcessingFailed, err)
	require.NotNil(t, audit)
	assert.Equal(t, domain.AuditStatusFailed, audit.Status)
	assert.Equal(t, "PERSISTENCE_ERROR", audit.ErrorCode)
	assert.NoError(t, writeErr)
}

func TestRedactionService_ArtifactCleanupSurvivesCancelledRequest(t *testing.T) {
	svc, m := setupRedactionService(t)
	noModelEntities(m)
	var uploaded string
	expectUpload(m, &uploaded)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var deleteErr error
	m.storage.On("Delete", mock.Anything, "redacted", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { deleteErr = args.Get(0).(context.Context).Err() }).
		Return(nil)
	m.audits.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.RedactionAudit) bool {
		return a.Status == domain.AuditStatusCompleted
	})).Run(func(mock.Arguments) { cancel() }).Return(context.Canceled).Once()
	m.audits.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.RedactionAudit) bool {
		return a.Status == domain.AuditStatusFailed
	})).Return(nil).Once()

	_, err := svc.ProcessDocumentForPII(ctx, textInput("jane@example.com"))

	assert.Equal(t, domain.ErrProcessingFailed, err)
	m.storage.AssertCalled(t, "Delete", mock.Anything, "redacted", mock.AnythingOfType("string"))
	assert.NoError(t, deleteErr)
	m.audits.AssertExpectations(t)
}

func TestRedactionService_BinaryUploadAuditSamplesHaveNoNUL(t *testing.T) {
	svc, m := setupRedactionService(t)
	noModelEntities(m)
	var uploaded string
	expectUpload(m, &uploaded)
	var audit *domain.RedactionAudit
	m.audits.On("Create", mock.Anything, mock.AnythingOfType("*domain.RedactionAudit")).
		Run(func(args mock.Arguments) { audit = args.Get(1).(*domain.RedactionAudit) }).
		Return(nil)
	in := textInput("PK\x03\x04\x00\x00binary\x00blob jane@example.com")
	in.MIMEType = "application/x-unknown"

	result, err := svc.ProcessDocumentForPII(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, 1, result.PIIDetected)
	require.NotNil(t, audit)
	assert.Equal(t, domain.AuditStatusCompleted, audit.Status)
	assert.Equal(t, "PKbinaryblob jane@example.com", audit.OriginalSample)
	assert.Equal(t, "PKbinaryblob [EMAIL]", audit.RedactedSample)
	assert.NotContains(t, uploaded, "\x00")
}

func TestRedactionService_NotificationFailureIsNotFatal(t *testing.T) {
	svc, m := setupRedactionService(t)
	noModelEntities(m)
	var uploaded string
	expectUpload(m, &uploaded)
	m.audits.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("NotifyManualReview", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	result, err := svc.ProcessDocumentForPII(context.Background(), textInput("SSN 123-45-6789"))

	require.NoError(t, err)
	assert.True(t, result.RequiresManualReview)
}

func TestRedactionService_GetCaseRedactionStatus(t *testing.T) {
	svc, m := setupRedactionService(t)
	m.audits.On("ListByCaseID", mock.Anything, "C-100").Return([]domain.RedactionAudit{
		{ID: uuid.New(), PIIDetected: 2, PIIRedacted: 2, RiskScore: 19, Status: domain.AuditStatusCompleted},
		{ID: uuid.New(), PIIDetected: 2, PIIRedacted: 2, RiskScore: 90, Status: domain.AuditStatusManualReview},
		{ID: uuid.New(), Status: domain.AuditStatusFailed, ErrorCode: "EXTRACTION_ERROR"},
	}, nil)

	status, err := svc.GetCaseRedactionStatus(context.Background(), "C-100")

	require.NoError(t, err)
	assert.Equal(t, 3, status.DocumentsProcessed)
	assert.Equal(t, 4, status.TotalPIIDetected)
	assert.Equal(t, 4, status.TotalPIIRedacted)
	assert.Equal(t, 55, status.AverageRiskScore)
	assert.True(t, status.RequiresReview)
	assert.Len(t, status.Audits, 3)
}

func TestRedactionService_GetCaseRedactionStatus_Empty(t *testing.T) {
	svc, m := setupRedactionService(t)
	m.audits.On("ListByCaseID", mock.Anything, "C-new").Return(nil, nil)

	status, err := svc.GetCaseRedactionStatus(context.Background(), "C-new")

	require.NoError(t, err)
	assert.Zero(t, status.DocumentsProcessed)
	assert.Zero(t, status.AverageRiskScore)
	assert.False(t, status.RequiresReview)
	assert.NotNil(t, status.Audits)
}

func TestRedactionService_GetCaseRedactionStatus_Errors(t *testing.T) {
	svc, m := setupRedactionService(t)
	m.audits.On("ListByCaseID", mock.Anything, "C-1").Return(nil, errors.New("timeout"))

	_, err := svc.GetCaseRedactionStatus(context.Background(), "C-1")
	assert.ErrorIs(t, err, domain.ErrPersistence)

	_, err = svc.GetCaseRedactionStatus(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRedactionService_ExportCaseAudits(t *testing.T) {
	svc, m := setupRedactionService(t)
	m.audits.On("ListByCaseID", mock.Anything, "C-100").Return([]domain.RedactionAudit{
		{ID: uuid.New(), CaseID: "C-100", FileName: "a.txt", Status: domain.AuditStatusCompleted},
		{ID: uuid.New(), CaseID: "C-100", FileName: "b.pdf", Status: domain.AuditStatusFailed},
	}, nil)

	data, err := svc.ExportCaseAudits(context.Background(), "C-100", auditexport.FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(strings.NewReader(string(data)))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(auditexport.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, "b.pdf", rows[2][4])
}

func TestRedactionService_ExportCaseAudits_CSV(t *testing.T) {
	svc, m := setupRedactionService(t)
	m.audits.On("ListByCaseID", mock.Anything, "C-100").Return([]domain.RedactionAudit{
		{ID: uuid.New(), CaseID: "C-100", FileName: "a.txt", Status: domain.AuditStatusCompleted},
	}, nil)

	data, err := svc.ExportCaseAudits(context.Background(), "C-100", auditexport.FormatCSV)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\xEF\xBB\xBFAudit ID,"))
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestRedactionService_ExportCaseAudits_RejectsUnknownFormat(t *testing.T) {
	svc, m := setupRedactionService(t)

	_, err := svc.ExportCaseAudits(context.Background(), "C-100", auditexport.Format("pdf"))

	assert.ErrorIs(t, err, domain.ErrValidation)
	m.audits.AssertNotCalled(t, "ListByCaseID", mock.Anything, mock.Anything)
}
