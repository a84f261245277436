// Package email delivers transactional email over SMTP.
package email

import "context"

// Sender delivers the platform's transactional emails.
type Sender interface {
	SendWelcomeEmail(ctx context.Context, toEmail string) error
	SendVerificationReviewedEmail(ctx context.Context, toEmail, status, notes string) error
	SendPaymentConfirmationEmail(ctx context.Context, toEmail, tierLabel, accessExpiry string) error
	SendRequestAssignedEmail(ctx context.Context, toEmail, parish, requestType string) error
}

// NoopSender is used when email delivery is disabled. All sends succeed
// without doing anything.
type NoopSender struct{}

var _ Sender = NoopSender{}

func (NoopSender) SendWelcomeEmail(ctx context.Context, toEmail string) error {
	return nil
}

func (NoopSender) SendVerificationReviewedEmail(ctx context.Context, toEmail, status, notes string) error {
	return nil
}

func (NoopSender) SendPaymentConfirmationEmail(ctx context.Context, toEmail, tierLabel, accessExpiry string) error {
	return nil
}

func (NoopSender) SendRequestAssignedEmail(ctx context.Context, toEmail, parish, requestType string) error {
	return nil
}
