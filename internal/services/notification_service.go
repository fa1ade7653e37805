// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/javajoker/vendor-settlement/internal/config"
	"github.com/javajoker/vendor-settlement/internal/models"
)

// Mailer is satisfied by *gomail.Dialer.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type NotificationService struct {
	config *config.EmailConfig
	mailer Mailer
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(cfg *config.EmailConfig) *NotificationService {
	s := &NotificationService{config: cfg}
	if cfg.SMTPHost != "" {
		s.mailer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return s
}

// WithMailer replaces the SMTP dialer.
func (s *NotificationService) WithMailer(m Mailer) *NotificationService {
	s.mailer = m
	return s
}

// Payout notifications
func (s *NotificationService) SendPayoutCompletedNotification(vendor *models.Vendor, payout *models.PayoutRecord) error {
	if vendor == nil || vendor.Email == "" {
		return nil
	}

	data := map[string]interface{}{
		"VendorName":       vendor.Name,
		"Amount":           payout.PayoutAmount.StringFixed(2),
		"Currency":         payout.Currency,
		"PaymentReference": payout.PaymentReference,
		"CommissionCount":  payout.CommissionCount,
	}

	tmpl := s.getEmailTemplate("payout_completed")
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(vendor.Email, tmpl.Subject, body)
}

func (s *NotificationService) SendPayoutFailedAlert(payout *models.PayoutRecord) error {
	data := map[string]interface{}{
		"PayoutID":      payout.ID,
		"VendorID":      payout.VendorID,
		"Amount":        payout.PayoutAmount.StringFixed(2),
		"Currency":      payout.Currency,
		"PaymentMethod": payout.PaymentMethod,
		"FailureReason": payout.FailureReason,
		"Attempts":      payout.Attempts,
	}

	tmpl := s.getEmailTemplate("payout_failed")
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(s.config.FinanceEmail, tmpl.Subject+" - "+payout.VendorID, body)
}

// Reconciliation notifications
func (s *NotificationService) SendDiscrepancyAlert(records []models.ReconciliationRecord) error {
	if len(records) == 0 {
		return nil
	}

	data := map[string]interface{}{
		"Count":       len(records),
		"PeriodStart": records[0].PeriodStart.Format("2006-01-02"),
		"PeriodEnd":   records[0].PeriodEnd.Format("2006-01-02"),
		"Records":     records,
	}

	tmpl := s.getEmailTemplate("reconciliation_discrepancy")
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(s.config.FinanceEmail, fmt.Sprintf("%s (%d vendors)", tmpl.Subject, len(records)), body)
}

// Helper methods
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.mailer == nil || to == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("Email not sent: SMTP not configured")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.mailer.DialAndSend(m); err != nil {
		logrus.WithError(err).WithField("subject", subject).Error("Failed to send notification email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	logrus.WithField("subject", subject).Debug("Notification email sent")
	return nil
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"payout_completed": {
			Subject: "Your payout has been sent",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Payout sent</h2>
	<p>Hello {{.VendorName}},</p>
	<p>We have sent {{.Amount}} {{.Currency}} covering {{.CommissionCount}} orders.</p>
	<p>Payment reference: <strong>{{.PaymentReference}}</strong></p>
</body>
</html>`,
		},
		"payout_failed": {
			Subject: "Payout failed",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Payout {{.PayoutID}} failed</h2>
	<p>Vendor: {{.VendorID}}<br>Amount: {{.Amount}} {{.Currency}}<br>Method: {{.PaymentMethod}}<br>Attempts: {{.Attempts}}</p>
	<p>Reason: {{.FailureReason}}</p>
	<p>Linked commissions remain claimed until the payout is retried or released.</p>
</body>
</html>`,
		},
		"reconciliation_discrepancy": {
			Subject: "Commission reconciliation discrepancies",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>{{.Count}} vendors out of balance</h2>
	<p>Period {{.PeriodStart}} to {{.PeriodEnd}}</p>
	<table>
		<tr><th>Vendor</th><th>Calculated</th><th>Paid</th><th>Pending</th><th>Variance</th></tr>
		{{range .Records}}<tr><td>{{.VendorID}}</td><td>{{.CalculatedCommission.StringFixed 2}}</td><td>{{.PaidCommission.StringFixed 2}}</td><td>{{.PendingCommission.StringFixed 2}}</td><td>{{.Variance.StringFixed 2}}</td></tr>
		{{end}}
	</table>
</body>
</html>`,
		},
	}

	if tmpl, exists := templates[templateType]; exists {
		return tmpl
	}

	// Default template
	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
