package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
)

// MailSender is satisfied by *sendgrid.Client.
type MailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type sendGridAlertService struct {
	client     MailSender
	fromEmail  string
	fromName   string
	recipients []string
}

// NewAlertService emails operators through SendGrid. Without an API key or
// recipients, alerts are only logged.
func NewAlertService(apiKey, fromEmail, fromName string, recipients []string) AlertService {
	if apiKey == "" || len(recipients) == 0 {
		return &logAlertService{}
	}
	return NewAlertServiceWithSender(sendgrid.NewSendClient(apiKey), fromEmail, fromName, recipients)
}

func NewAlertServiceWithSender(client MailSender, fromEmail, fromName string, recipients []string) AlertService {
	return &sendGridAlertService{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		recipients: recipients,
	}
}

func (s *sendGridAlertService) CompensationFailed(ctx context.Context, c domain.Compensation) error {
	subject := fmt.Sprintf("Ledger rollback failed: %s", c.Operation)
	return s.send(ctx, subject, describeCompensation(c, "A rollback step failed and has been queued for retry."))
}

func (s *sendGridAlertService) CompensationAbandoned(ctx context.Context, c domain.Compensation) error {
	subject := fmt.Sprintf("Ledger rollback abandoned after %d attempts", c.Attempts)
	return s.send(ctx, subject, describeCompensation(c, "A queued rollback could not be applied and needs manual correction."))
}

func (s *sendGridAlertService) BalanceDrift(ctx context.Context, drifts []BalanceDrift) error {
	subject := fmt.Sprintf("Balance audit: %d reseller(s) drifted", len(drifts))
	var b strings.Builder
	b.WriteString("The nightly audit found due balances that do not match outstanding sales.\n\n")
	for _, d := range drifts {
		fmt.Fprintf(&b, "- %s (#%d): recorded %s, expected %s", d.ResellerName, d.ResellerID, d.Recorded.StringFixed(2), d.Expected.StringFixed(2))
		if d.Repaired {
			b.WriteString(" [repaired]")
		}
		b.WriteString("\n")
	}
	return s.send(ctx, subject, b.String())
}

func (s *sendGridAlertService) send(_ context.Context, subject, body string) error {
	logger.ExternalServiceCall("SendGrid", "Send", "subject", subject, "recipients", len(s.recipients))

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	message.Subject = subject

	personalization := mail.NewPersonalization()
	for _, r := range s.recipients {
		personalization.AddTos(mail.NewEmail("", strings.TrimSpace(r)))
	}
	message.AddPersonalizations(personalization)
	message.AddContent(mail.NewContent("text/plain", body))

	response, err := s.client.Send(message)
	if err != nil {
		err = fmt.Errorf("failed to send alert: %w", err)
		logger.ExternalServiceResult("SendGrid", "Send", err)
		return err
	}
	if response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("SendGrid", "Send", err)
		return err
	}

	logger.ExternalServiceResult("SendGrid", "Send", nil, "status", response.StatusCode)
	return nil
}

func describeCompensation(c domain.Compensation, lead string) string {
	var b strings.Builder
	b.WriteString(lead)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Compensation: %s\nOperation: %s\nKind: %s\nReseller: %d\n", c.ID, c.Operation, c.Kind, c.ResellerID)
	if c.Kind == domain.CompensationBalanceAdjust {
		fmt.Fprintf(&b, "Balance adjustment: %s\n", c.Amount.StringFixed(2))
	}
	if c.Sale != nil {
		fmt.Fprintf(&b, "Sale %d: paid %s, outstanding %s, status %s\n", c.Sale.SaleID, c.Sale.NewPaid.StringFixed(2), c.Sale.NewOutstanding.StringFixed(2), c.Sale.NewStatus)
	}
	if c.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\n", c.LastError)
	}
	return b.String()
}

// logAlertService is used when no mail provider is configured.
type logAlertService struct{}

func (logAlertService) CompensationFailed(_ context.Context, c domain.Compensation) error {
	logger.Warn("ALERT compensation failed", "id", c.ID, "operation", c.Operation, "kind", c.Kind, "reseller_id", c.ResellerID)
	return nil
}

func (logAlertService) CompensationAbandoned(_ context.Context, c domain.Compensation) error {
	logger.Error("ALERT compensation abandoned", "id", c.ID, "operation", c.Operation, "attempts", c.Attempts)
	return nil
}

func (logAlertService) BalanceDrift(_ context.Context, drifts []BalanceDrift) error {
	for _, d := range drifts {
		logger.Warn("ALERT balance drift", "reseller_id", d.ResellerID, "recorded", d.Recorded.String(), "expected", d.Expected.String(), "repaired", d.Repaired)
	}
	return nil
}
