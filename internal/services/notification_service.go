// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/eshop-backend/internal/config"
	"github.com/javajoker/eshop-backend/internal/metrics"
	"github.com/javajoker/eshop-backend/internal/models"
)

// Mailer delivers transactional email.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, user *models.User, resetURL string) error
}

type NotificationService struct {
	config *config.Config
	send   func(to, subject, body string) error
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(config *config.Config) *NotificationService {
	s := &NotificationService{config: config}
	s.send = s.sendEmail
	return s
}

func (s *NotificationService) SendPasswordResetEmail(ctx context.Context, user *models.User, resetURL string) error {
	tmpl := s.getEmailTemplate("password_reset")

	data := map[string]interface{}{
		"FirstName":    user.FirstName,
		"ResetURL":     resetURL,
		"ExpiresIn":    "30 minutes",
		"PlatformName": s.config.Email.FromName,
	}

	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	err = s.send(user.Email, tmpl.Subject, body)
	metrics.EmailsSent.WithLabelValues("password_reset", metrics.Outcome(err)).Inc()
	return err
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("SMTP not configured, email not sent")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	from := s.config.Email.FromEmail
	msg := []byte(fmt.Sprintf(
		"From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		s.config.Email.FromName, from, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, from, []string{to}, msg)
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
		"password_reset": {
			Subject: "Password reset for eshop",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hello {{.FirstName}},</p>
	<p>Your password reset link is: <a href="{{.ResetURL}}">{{.ResetURL}}</a></p>
	<p>The link expires in {{.ExpiresIn}}.</p>
	<p>{{.PlatformName}}</p>
</body>
</html>`,
		},
	}

	if tmpl, exists := templates[templateType]; exists {
		return tmpl
	}

	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
