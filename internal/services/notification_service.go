// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/sirupsen/logrus"

	"github.com/refurbly/consign-backend/internal/config"
	"github.com/refurbly/consign-backend/internal/models"
)

// NotificationService delivers transactional email. Delivery is
// fire-and-forget: callers invoke it from goroutines after their transaction
// has committed, and failures are logged, never surfaced.
type NotificationService struct {
	config *config.Config
}

func NewNotificationService(config *config.Config) *NotificationService {
	return &NotificationService{config: config}
}

func (s *NotificationService) SendResellerWelcome(reseller *models.Reseller, tempPassword string) {
	data := map[string]interface{}{
		"Name":         reseller.Name,
		"Email":        reseller.Email,
		"TempPassword": tempPassword,
		"PortalURL":    s.config.Frontend.BaseURL,
	}

	body, err := s.renderTemplate(welcomeTemplate, data)
	if err != nil {
		logrus.WithError(err).Error("Failed to render welcome email")
		return
	}

	s.send(reseller.Email, "Your consignment portal account", body)
}

func (s *NotificationService) SendPasswordReset(email, name, token string) {
	data := map[string]interface{}{
		"Name":     name,
		"ResetURL": fmt.Sprintf("%s/reset-password?token=%s", s.config.Frontend.BaseURL, token),
	}

	body, err := s.renderTemplate(passwordResetTemplate, data)
	if err != nil {
		logrus.WithError(err).Error("Failed to render password reset email")
		return
	}

	s.send(email, "Password reset request", body)
}

func (s *NotificationService) SendAssignmentCreated(reseller *models.Reseller, assignment *models.DeviceAssignment) {
	data := map[string]interface{}{
		"Name":         reseller.Name,
		"DeviceLabel":  assignment.Device.Label,
		"MinimumPrice": assignment.MinimumPrice,
		"PortalURL":    s.config.Frontend.BaseURL,
	}

	body, err := s.renderTemplate(assignmentCreatedTemplate, data)
	if err != nil {
		logrus.WithError(err).Error("Failed to render assignment email")
		return
	}

	s.send(reseller.Email, "New device assigned to you", body)
}

func (s *NotificationService) SendSaleConfirmed(reseller *models.Reseller, assignment *models.DeviceAssignment) {
	var salePrice float64
	if assignment.ActualSalePrice != nil {
		salePrice = *assignment.ActualSalePrice
	}

	data := map[string]interface{}{
		"Name":        reseller.Name,
		"DeviceLabel": assignment.Device.Label,
		"SalePrice":   salePrice,
		"Margin":      assignment.ResellerProfit(),
	}

	body, err := s.renderTemplate(saleConfirmedTemplate, data)
	if err != nil {
		logrus.WithError(err).Error("Failed to render sale confirmation email")
		return
	}

	s.send(reseller.Email, "Sale recorded", body)
}

func (s *NotificationService) send(to, subject, body string) {
	if s.config.Email.SMTPUsername == "" {
		logrus.WithField("to", to).Debug("SMTP not configured, skipping email")
		return
	}

	from := fmt.Sprintf("%s <%s>", s.config.Email.FromName, s.config.Email.FromEmail)
	msg := []byte("From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" + body)

	addr := s.config.Email.SMTPHost + ":" + s.config.Email.SMTPPort
	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	if err := smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg); err != nil {
		logrus.WithError(err).WithField("to", to).Error("Failed to send email")
	}
}

func (s *NotificationService) renderTemplate(tmpl string, data map[string]interface{}) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse email template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}

	return buf.String(), nil
}

const welcomeTemplate = `
<h2>Welcome, {{.Name}}</h2>
<p>An account has been created for you on the consignment portal.</p>
<p>Email: <strong>{{.Email}}</strong><br>
Temporary password: <strong>{{.TempPassword}}</strong></p>
<p>Please sign in at <a href="{{.PortalURL}}">{{.PortalURL}}</a> and change your password.</p>
`

const passwordResetTemplate = `
<h2>Hello, {{.Name}}</h2>
<p>A password reset was requested for your account. The link below is valid for two hours.</p>
<p><a href="{{.ResetURL}}">Reset your password</a></p>
<p>If you did not request this, you can ignore this message.</p>
`

const assignmentCreatedTemplate = `
<h2>Hello, {{.Name}}</h2>
<p>The device <strong>{{.DeviceLabel}}</strong> has been assigned to you on consignment.</p>
<p>Floor price: <strong>{{printf "%.2f" .MinimumPrice}}</strong>. Anything you sell above the floor is your margin.</p>
<p>Confirm receipt once the device arrives: <a href="{{.PortalURL}}">{{.PortalURL}}</a></p>
`

const saleConfirmedTemplate = `
<h2>Hello, {{.Name}}</h2>
<p>Your sale of <strong>{{.DeviceLabel}}</strong> was recorded.</p>
<p>Sale price: {{printf "%.2f" .SalePrice}}<br>
Your margin: <strong>{{printf "%.2f" .Margin}}</strong></p>
`
