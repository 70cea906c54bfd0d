package port

import "context"

// ReviewNotice describes a document that tripped the manual-review gate.
type ReviewNotice struct {
	CaseID       string
	SubmissionID string
	AttachmentID string
	FileName     string
	RiskScore    int
	PIIDetected  int
	PIITypes     []string
}

// ReviewNotifier tells human reviewers that a document needs attention.
type ReviewNotifier interface {
	NotifyManualReview(ctx context.Context, notice ReviewNotice) error
}
