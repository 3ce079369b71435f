package services

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"booking-search-platform/internal/config"
)

type EmailSender interface {
	SendStaleIndexAlert(unitID string, cause error) error
}

type SMTPEmailSender struct {
	config *config.Config
}

func NewSMTPEmailSender(cfg *config.Config) *SMTPEmailSender {
	return &SMTPEmailSender{config: cfg}
}

type staleAlertData struct {
	UnitID    string
	Cause     string
	Timestamp string
}

var staleAlertTemplate = template.Must(template.New("stale").Parse(
	`Search index write failed for unit {{.UnitID}} after all retries.

The unit's search documents are now STALE and will remain so until the
unit is reindexed. A delayed re-attempt has been queued; if it keeps
failing, trigger a manual rebuild:

    POST /admin/index/units/{{.UnitID}}/reindex

Last error: {{.Cause}}
Time: {{.Timestamp}}
`))

func (s *SMTPEmailSender) SendStaleIndexAlert(unitID string, cause error) error {
	recipients := []string{}
	for _, adminEmail := range s.config.AdminEmails {
		if strings.TrimSpace(adminEmail) != "" {
			recipients = append(recipients, strings.TrimSpace(adminEmail))
		}
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no admin recipients configured")
	}

	causeText := "unknown"
	if cause != nil {
		causeText = cause.Error()
	}

	var body bytes.Buffer
	err := staleAlertTemplate.Execute(&body, staleAlertData{
		UnitID:    unitID,
		Cause:     causeText,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to render alert body: %w", err)
	}

	subject := fmt.Sprintf("[search-index] Stale index for unit %s - manual rebuild may be required", unitID)
	return s.sendEmail(recipients, subject, body.String())
}

func (s *SMTPEmailSender) sendEmail(recipients []string, subject, textBody string) error {
	if s.config.SMTPHost == "" {
		return fmt.Errorf("SMTP not configured")
	}

	msg := bytes.Buffer{}
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.config.SMTPFrom))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(recipients, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(textBody)

	addr := s.config.SMTPHost + ":" + s.config.SMTPPort
	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPass, s.config.SMTPHost)
	return smtp.SendMail(addr, auth, s.config.SMTPFrom, recipients, msg.Bytes())
}
