// Package ses delivers manual-review notices through Amazon SES v2.
package ses

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"caseguard/internal/config"
	"caseguard/internal/port"
)

// SendEmailAPI is the slice of the SES v2 client the notifier uses.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesNotifier struct {
	client       SendEmailAPI
	fromAddress  string
	fromName     string
	reviewers    []string
	dashboardURL string
}

// NewSESNotifier creates an SES-backed ReviewNotifier.
func NewSESNotifier(ctx context.Context, cfg *config.NotifyConfig) (port.ReviewNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return NewSESNotifierWithClient(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewSESNotifierWithClient wires an existing client. Used by tests.
func NewSESNotifierWithClient(client SendEmailAPI, cfg *config.NotifyConfig) (port.ReviewNotifier, error) {
	reviewers := cfg.Reviewers()
	if len(reviewers) == 0 {
		return nil, errors.New("ses notifier: no reviewers configured")
	}
	if cfg.FromAddress == "" {
		return nil, errors.New("ses notifier: from address is required")
	}
	return &sesNotifier{
		client:       client,
		fromAddress:  cfg.FromAddress,
		fromName:     cfg.FromName,
		reviewers:    reviewers,
		dashboardURL: strings.TrimRight(cfg.DashboardURL, "/"),
	}, nil
}

func (s *sesNotifier) NotifyManualReview(ctx context.Context, notice port.ReviewNotice) error {
	caseURL := fmt.Sprintf("%s/cases/%s", s.dashboardURL, url.PathEscape(notice.CaseID))

	subject := fmt.Sprintf("[CaseGuard] Manual review required: case %s", notice.CaseID)
	htmlBody := buildReviewHTML(notice, caseURL)
	textBody := fmt.Sprintf(
		"A document needs manual PII review.\n\nCase: %s\nSubmission: %s\nAttachment: %s\nFile: %s\nRisk score: %d\nEntities detected: %d\nTypes: %s\n\n%s\n",
		notice.CaseID, notice.SubmissionID, notice.AttachmentID, notice.FileName,
		notice.RiskScore, notice.PIIDetected, strings.Join(notice.PIITypes, ", "), caseURL,
	)

	from := s.fromAddress
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	}

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: s.reviewers,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func buildReviewHTML(n port.ReviewNotice, caseURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Manual PII review required</h2>
  <table style="border-collapse: collapse;">
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Case</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Submission</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">File</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Risk score</td><td>%d</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Entities detected</td><td>%d</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Types</td><td>%s</td></tr>
  </table>
  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Open case</a>
  </p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">CaseGuard - PII Redaction</p>
</body>
</html>`,
		html.EscapeString(n.CaseID), html.EscapeString(n.SubmissionID), html.EscapeString(n.FileName),
		n.RiskScore, n.PIIDetected, html.EscapeString(strings.Join(n.PIITypes, ", ")), html.EscapeString(caseURL))
}
