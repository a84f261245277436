package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"yaadmarket_backend/platform/config"
)

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates an SMTPSender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendWelcomeEmail(ctx context.Context, toEmail string) error {
	content, err := renderEmailTemplate("welcome.html", welcomeEmailData{
		baseEmailData: baseEmailData{
			Title:   subjectWelcome,
			Heading: "Welcome to YaadMarket",
		},
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectWelcome, content)
}

func (s *SMTPSender) SendVerificationReviewedEmail(ctx context.Context, toEmail, status, notes string) error {
	approved := status == "approved"
	subject := subjectVerificationRejected
	heading := "Verification not approved"
	if approved {
		subject = subjectVerificationApproved
		heading = "You're verified"
	}

	content, err := renderEmailTemplate("verification_reviewed.html", verificationReviewedEmailData{
		baseEmailData: baseEmailData{
			Title:   subject,
			Heading: heading,
		},
		Approved: approved,
		Notes:    notes,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendPaymentConfirmationEmail(ctx context.Context, toEmail, tierLabel, accessExpiry string) error {
	content, err := renderEmailTemplate("payment_confirmed.html", paymentConfirmedEmailData{
		baseEmailData: baseEmailData{
			Title:   subjectPaymentConfirmed,
			Heading: "Your access is active",
		},
		TierLabel:    tierLabel,
		AccessExpiry: accessExpiry,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectPaymentConfirmed, content)
}

func (s *SMTPSender) SendRequestAssignedEmail(ctx context.Context, toEmail, parish, requestType string) error {
	subject := fmt.Sprintf(subjectRequestAssignedFmt, parish)
	content, err := renderEmailTemplate("request_assigned.html", requestAssignedEmailData{
		baseEmailData: baseEmailData{
			Title:   subject,
			Heading: "New client request",
		},
		Parish:      parish,
		RequestType: requestType,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}
