package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"caseguard/internal/auditexport"
	"caseguard/internal/detect"
	"caseguard/internal/domain"
	"caseguard/internal/extract"
	"caseguard/internal/merge"
	"caseguard/internal/observability/metrics"
	"caseguard/internal/port"
	"caseguard/internal/redact"
	"caseguard/internal/risk"
)

var tracer = otel.Tracer("caseguard.internal.service.redaction")

const (
	defaultSampleChars   = 500
	defaultPresignExpiry = 3600

	// cleanupTimeout bounds writes that must outlive the caller's context.
	cleanupTimeout = 10 * time.Second
)

// ProcessDocumentInput is the DTO for one redaction pipeline invocation.
type ProcessDocumentInput struct {
	Data         []byte
	FileName     string
	MIMEType     string
	CaseID       string
	SubmissionID string
}

// RedactionConfig holds the service's storage target and per-invocation limits.
type RedactionConfig struct {
	Bucket        string
	PresignExpiry int64 // seconds
	MaxFileBytes  int64 // 0 disables the check
	SampleChars   int
}

// RedactionService defines the PII redaction pipeline contract.
type RedactionService interface {
	ProcessDocumentForPII(ctx context.Context, input *ProcessDocumentInput) (*domain.RedactionServiceResult, error)
	GetCaseRedactionStatus(ctx context.Context, caseID string) (*domain.CaseRedactionStatus, error)
	ExportCaseAudits(ctx context.Context, caseID string, format auditexport.Format) ([]byte, error)
}

type redactionService struct {
	extractor *extract.Extractor
	patterns  *detect.PatternDetector
	model     *detect.ModelDetector
	storage   port.ObjectStorage
	auditRepo port.RedactionAuditRepository
	notifier  port.ReviewNotifier
	metrics   *metrics.PipelineMetrics
	cfg       RedactionConfig
	now       func() time.Time
}

// NewRedactionService creates a new RedactionService implementation. model,
// notifier and pipelineMetrics may be nil.
func NewRedactionService(
	extractor *extract.Extractor,
	patterns *detect.PatternDetector,
	model *detect.ModelDetector,
	storage port.ObjectStorage,
	auditRepo port.RedactionAuditRepository,
	notifier port.ReviewNotifier,
	pipelineMetrics *metrics.PipelineMetrics,
	cfg RedactionConfig,
) RedactionService {
	if cfg.SampleChars <= 0 {
		cfg.SampleChars = defaultSampleChars
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = defaultPresignExpiry
	}
	return &redactionService{
		extractor: extractor,
		patterns:  patterns,
		model:     model,
		storage:   storage,
		auditRepo: auditRepo,
		notifier:  notifier,
		metrics:   pipelineMetrics,
		cfg:       cfg,
		now:       time.Now,
	}
}

// invocation carries the state of one pipeline run so a failure at any stage
// can still be audited.
type invocation struct {
	input        *ProcessDocumentInput
	attachmentID uuid.UUID
	started      time.Time
	method       domain.ExtractionMethod
}

func (s *redactionService) ProcessDocumentForPII(ctx context.Context, input *ProcessDocumentInput) (*domain.RedactionServiceResult, error) {
	if err := s.validate(input); err != nil {
		log.Warn().Err(err).Msg("redactionService.ProcessDocumentForPII: rejected input")
		return nil, err
	}

	inv := &invocation{input: input, attachmentID: uuid.New(), started: s.now()}

	ctx, span := tracer.Start(ctx, "redaction.process_document")
	defer span.End()
	span.SetAttributes(
		attribute.String("case_id", input.CaseID),
		attribute.String("submission_id", input.SubmissionID),
		attribute.String("attachment_id", inv.attachmentID.String()),
		attribute.Int("file_bytes", len(input.Data)),
	)

	result, err := s.run(ctx, inv)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.ErrorCode(err))
		s.recordFailure(ctx, inv, err)
		return nil, domain.ErrProcessingFailed
	}
	span.SetAttributes(
		attribute.Int("pii_detected", result.PIIDetected),
		attribute.Int("risk_score", result.RiskScore),
	)
	return result, nil
}

func (s *redactionService) validate(input *ProcessDocumentInput) error {
	switch {
	case input == nil:
		return &domain.ValidationError{Field: "input", Reason: "is required"}
	case len(input.Data) == 0:
		return &domain.ValidationError{Field: "file", Reason: "is empty"}
	case strings.TrimSpace(input.MIMEType) == "":
		return &domain.ValidationError{Field: "mime_type", Reason: "is required"}
	case strings.TrimSpace(input.CaseID) == "":
		return &domain.ValidationError{Field: "case_id", Reason: "is required"}
	case s.cfg.MaxFileBytes > 0 && int64(len(input.Data)) > s.cfg.MaxFileBytes:
		return &domain.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("%d bytes exceeds limit of %d", len(input.Data), s.cfg.MaxFileBytes),
			Err:    domain.ErrFileTooLarge,
		}
	}
	return nil
}

func (s *redactionService) run(ctx context.Context, inv *invocation) (*domain.RedactionServiceResult, error) {
	in := inv.input

	extracted, err := s.extract(ctx, in)
	if err != nil {
		return nil, err
	}
	inv.method = extracted.Method

	entities := s.detect(ctx, extracted.Text)

	stageStart := s.now()
	merged := merge.Entities(entities)
	redaction := redact.Apply(extracted.Text, merged)
	score := risk.Score(merged)
	reviewRequired := risk.RequiresManualReview(score, len(merged))
	s.metrics.ObserveStage("redact", s.now().Sub(stageStart).Seconds())

	key := storageKey(in.CaseID, in.SubmissionID, inv.attachmentID, in.FileName)
	url, err := s.persistArtifact(ctx, key, redaction.RedactedText)
	if err != nil {
		return nil, err
	}

	regexCount, modelCount := countBySource(merged)
	piiTypes := typeSet(merged)
	status := domain.AuditStatusCompleted
	if reviewRequired {
		status = domain.AuditStatusManualReview
	}
	elapsed := s.now().Sub(inv.started).Milliseconds()

	audit := &domain.RedactionAudit{
		ID:               uuid.New(),
		AttachmentID:     inv.attachmentID,
		CaseID:           in.CaseID,
		SubmissionID:     in.SubmissionID,
		FileName:         in.FileName,
		PIIDetected:      len(merged),
		PIIRedacted:      redaction.RedactionCount,
		RegexDetections:  regexCount,
		ModelDetections:  modelCount,
		PIITypes:         pq.StringArray(piiTypes),
		OriginalSample:   redact.Sample(extracted.Text, s.cfg.SampleChars),
		RedactedSample:   redact.Sample(redaction.RedactedText, s.cfg.SampleChars),
		ExtractionMethod: extracted.Method,
		RiskScore:        score,
		ProcessingTimeMs: elapsed,
		Status:           status,
	}
	if err := s.auditRepo.Create(ctx, audit); err != nil {
		s.removeArtifact(ctx, key)
		return nil, &domain.PersistenceError{Op: "audit.create", Err: err}
	}

	s.metrics.ObserveDocument(string(status), string(extracted.Method))
	s.metrics.ObserveRiskScore(score)
	for _, e := range merged {
		s.metrics.ObserveEntity(string(e.Type), string(e.Source()))
	}

	if reviewRequired {
		s.notifyReview(ctx, audit)
	}

	log.Info().
		Str("case_id", in.CaseID).
		Str("attachment_id", inv.attachmentID.String()).
		Str("method", string(extracted.Method)).
		Int("pii_detected", len(merged)).
		Int("risk_score", score).
		Bool("manual_review", reviewRequired).
		Int64("elapsed_ms", elapsed).
		Msg("redactionService.ProcessDocumentForPII: document redacted")

	return &domain.RedactionServiceResult{
		Success:              true,
		AttachmentID:         inv.attachmentID,
		FileName:             in.FileName,
		StorageKey:           key,
		StorageURL:           url,
		PIIDetected:          len(merged),
		PIIRedacted:          redaction.RedactionCount,
		RiskScore:            score,
		PIITypes:             piiTypes,
		ProcessingTimeMs:     elapsed,
		RequiresManualReview: reviewRequired,
	}, nil
}

func (s *redactionService) extract(ctx context.Context, in *ProcessDocumentInput) (*domain.ExtractionResult, error) {
	ctx, span := tracer.Start(ctx, "redaction.extract")
	defer span.End()
	start := s.now()

	extracted, err := s.extractor.Extract(ctx, extract.Input{
		Data:     in.Data,
		MIMEType: in.MIMEType,
		FileName: in.FileName,
	})
	s.metrics.ObserveStage("extract", s.now().Sub(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("method", string(extracted.Method)),
		attribute.Int("text_bytes", len(extracted.Text)),
	)
	return extracted, nil
}

// detect runs the pattern and model detectors side by side and joins their
// output. The model detector never fails the pipeline.
func (s *redactionService) detect(ctx context.Context, text string) []domain.PIIEntity {
	ctx, span := tracer.Start(ctx, "redaction.detect")
	defer span.End()
	start := s.now()

	var (
		g        errgroup.Group
		patterns []domain.PIIEntity
		outcome  detect.ModelOutcome
	)
	g.Go(func() error {
		patterns = s.patterns.Detect(text)
		return nil
	})
	g.Go(func() error {
		if s.model == nil {
			outcome = detect.ModelOutcome{Err: detect.ErrModelDisabled}
			return nil
		}
		outcome = s.model.Detect(ctx, text)
		return nil
	})
	_ = g.Wait()

	s.metrics.ObserveStage("detect", s.now().Sub(start).Seconds())
	if !outcome.OK() {
		reason := detect.FailureReason(outcome.Err)
		span.SetAttributes(attribute.String("model_failure", reason))
		if !errors.Is(outcome.Err, detect.ErrModelDisabled) {
			s.metrics.ObserveModelFailure(reason)
		}
	}
	span.SetAttributes(
		attribute.Int("regex_entities", len(patterns)),
		attribute.Int("model_entities", len(outcome.Entities)),
	)

	entities := make([]domain.PIIEntity, 0, len(patterns)+len(outcome.Entities))
	entities = append(entities, patterns...)
	return append(entities, outcome.Entities...)
}

func (s *redactionService) persistArtifact(ctx context.Context, key, redacted string) (string, error) {
	ctx, span := tracer.Start(ctx, "redaction.persist_artifact", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()
	start := s.now()
	defer func() { s.metrics.ObserveStage("store", s.now().Sub(start).Seconds()) }()

	body := []byte(redacted)
	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Body:        bytes.NewReader(body),
		ContentType: domain.MIMETypePlain,
		Size:        int64(len(body)),
	}); err != nil {
		span.RecordError(err)
		return "", &domain.PersistenceError{Op: "storage.upload", Err: err}
	}

	url, err := s.storage.GetPresignedURL(ctx, s.cfg.Bucket, key, s.cfg.PresignExpiry)
	if err != nil {
		span.RecordError(err)
		return "", &domain.PersistenceError{Op: "storage.presign", Err: err}
	}
	return url, nil
}

// recordFailure writes a FAILED audit with zeroed counters. A failure here is
// logged only; the caller already gets a generic error.
func (s *redactionService) recordFailure(ctx context.Context, inv *invocation, cause error) {
	code := domain.ErrorCode(cause)
	log.Error().
		Err(cause).
		Str("case_id", inv.input.CaseID).
		Str("attachment_id", inv.attachmentID.String()).
		Str("error_code", code).
		Msg("redactionService.ProcessDocumentForPII: processing failed")

	audit := &domain.RedactionAudit{
		ID:               uuid.New(),
		AttachmentID:     inv.attachmentID,
		CaseID:           inv.input.CaseID,
		SubmissionID:     inv.input.SubmissionID,
		FileName:         inv.input.FileName,
		PIITypes:         pq.StringArray{},
		ExtractionMethod: inv.method,
		ProcessingTimeMs: s.now().Sub(inv.started).Milliseconds(),
		Status:           domain.AuditStatusFailed,
		ErrorCode:        code,
	}
	writeCtx, cancel := detachedContext(ctx)
	defer cancel()
	if err := s.auditRepo.Create(writeCtx, audit); err != nil {
		log.Error().Err(err).Str("attachment_id", inv.attachmentID.String()).
			Msg("redactionService.recordFailure: failed to write FAILED audit")
	}
	s.metrics.ObserveDocument(string(domain.AuditStatusFailed), string(inv.method))
}

// removeArtifact deletes an uploaded artifact whose audit row could not be
// written.
func (s *redactionService) removeArtifact(ctx context.Context, key string) {
	delCtx, cancel := detachedContext(ctx)
	defer cancel()
	if err := s.storage.Delete(delCtx, s.cfg.Bucket, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redactionService.removeArtifact: failed to remove orphaned artifact")
	}
}

// detachedContext keeps the values and span of ctx but not its cancellation.
func detachedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

func (s *redactionService) notifyReview(ctx context.Context, audit *domain.RedactionAudit) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyManualReview(ctx, port.ReviewNotice{
		CaseID:       audit.CaseID,
		SubmissionID: audit.SubmissionID,
		AttachmentID: audit.AttachmentID.String(),
		FileName:     audit.FileName,
		RiskScore:    audit.RiskScore,
		PIIDetected:  audit.PIIDetected,
		PIITypes:     audit.PIITypes,
	})
	if err != nil {
		log.Warn().Err(err).Str("case_id", audit.CaseID).Msg("redactionService.notifyReview: notification failed")
	}
}

func (s *redactionService) GetCaseRedactionStatus(ctx context.Context, caseID string) (*domain.CaseRedactionStatus, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, &domain.ValidationError{Field: "case_id", Reason: "is required"}
	}
	audits, err := s.auditRepo.ListByCaseID(ctx, caseID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "audit.list", Err: err}
	}
	return Summarize(audits), nil
}

// Summarize aggregates a case's audits. The average risk score covers only
// audits that did not fail.
func Summarize(audits []domain.RedactionAudit) *domain.CaseRedactionStatus {
	status := &domain.CaseRedactionStatus{
		DocumentsProcessed: len(audits),
		Audits:             audits,
	}
	if status.Audits == nil {
		status.Audits = []domain.RedactionAudit{}
	}

	var riskSum, scored int
	for i := range audits {
		a := &audits[i]
		status.TotalPIIDetected += a.PIIDetected
		status.TotalPIIRedacted += a.PIIRedacted
		if a.Status == domain.AuditStatusManualReview {
			status.RequiresReview = true
		}
		if a.Status != domain.AuditStatusFailed {
			riskSum += a.RiskScore
			scored++
		}
	}
	if scored > 0 {
		status.AverageRiskScore = int(math.Round(float64(riskSum) / float64(scored)))
	}
	return status
}

func (s *redactionService) ExportCaseAudits(ctx context.Context, caseID string, format auditexport.Format) ([]byte, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, &domain.ValidationError{Field: "case_id", Reason: "is required"}
	}
	if !format.Valid() {
		return nil, &domain.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported export format %q", format)}
	}
	audits, err := s.auditRepo.ListByCaseID(ctx, caseID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "audit.list", Err: err}
	}

	var buf bytes.Buffer
	if format == auditexport.FormatCSV {
		buf.Write(auditexport.BOM)
		w := auditexport.NewCSVWriter(&buf)
		if err := w.WriteHeader(); err != nil {
			return nil, err
		}
		if err := w.WriteAudits(audits); err != nil {
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	w, err := auditexport.NewWriter()
	if err != nil {
		return nil, err
	}
	if err := w.WriteHeader(); err != nil {
		return nil, err
	}
	if err := w.WriteAudits(audits); err != nil {
		return nil, err
	}
	if err := w.Flush(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// storageKey builds cases/{case}/submissions/{submission}/redacted/{attachment}/{base}.redacted.txt.
func storageKey(caseID, submissionID string, attachmentID uuid.UUID, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	if submissionID == "" {
		submissionID = "unassigned"
	}
	return fmt.Sprintf("cases/%s/submissions/%s/redacted/%s/%s.redacted.txt",
		caseID, submissionID, attachmentID, base)
}

func countBySource(entities []domain.PIIEntity) (regex, model int) {
	for _, e := range entities {
		switch e.Source() {
		case domain.SourceRegex:
			regex++
		case domain.SourceModel:
			model++
		}
	}
	return regex, model
}

func typeSet(entities []domain.PIIEntity) []string {
	seen := make(map[string]struct{}, len(entities))
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		t := string(e.Type)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
