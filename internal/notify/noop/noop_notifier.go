package noop

import (
	"context"

	"github.com/rs/zerolog/log"

	"caseguard/internal/port"
)

type noopNotifier struct{}

// NewNoopNotifier creates a ReviewNotifier that only logs the notice.
func NewNoopNotifier() port.ReviewNotifier {
	return noopNotifier{}
}

func (noopNotifier) NotifyManualReview(_ context.Context, notice port.ReviewNotice) error {
	log.Info().
		Str("case_id", notice.CaseID).
		Str("submission_id", notice.SubmissionID).
		Str("attachment_id", notice.AttachmentID).
		Int("risk_score", notice.RiskScore).
		Int("pii_detected", notice.PIIDetected).
		Msg("noop.Notifier: manual review required")
	return nil
}
