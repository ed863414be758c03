package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/wneessen/go-mail"

	"onboarding-api/internal/log"
	"onboarding-api/internal/models"
)

//go:embed templates/invitation.html
var templateFS embed.FS

var invitationTemplate = template.Must(template.ParseFS(templateFS, "templates/invitation.html"))

const invitationSubject = "You're invited to start onboarding"

// SMTPConfig is the mail relay an EmailService sends through.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// InvitationData parameterises the invitation template.
type InvitationData struct {
	AdminName          string
	Role               string
	InvitationLink     string
	CustomInstructions string
}

// EmailService renders invitations and relays them over SMTP.
type EmailService struct {
	smtp     SMTPConfig
	sanitize *bluemonday.Policy
}

// NewEmailService creates an EmailService.
func NewEmailService(cfg SMTPConfig) *EmailService {
	return &EmailService{
		smtp:     cfg,
		sanitize: bluemonday.UGCPolicy(),
	}
}

// RenderInvitation produces the subject and HTML body of an invitation.
// Custom instructions are admin-authored, so they are sanitised and line
// breaks are kept.
func (s *EmailService) RenderInvitation(data InvitationData) (string, string, error) {
	view := struct {
		AdminName          string
		Role               string
		InvitationLink     string
		CustomInstructions template.HTML
	}{
		AdminName:      data.AdminName,
		Role:           data.Role,
		InvitationLink: data.InvitationLink,
	}

	if instructions := strings.TrimSpace(data.CustomInstructions); instructions != "" {
		clean := s.sanitize.Sanitize(instructions)
		clean = strings.ReplaceAll(strings.ReplaceAll(clean, "\r\n", "\n"), "\n", "<br>")
		view.CustomInstructions = template.HTML(clean) //nolint:gosec // sanitised by bluemonday above
	}

	var body bytes.Buffer
	if err := invitationTemplate.Execute(&body, view); err != nil {
		return "", "", fmt.Errorf("failed to render invitation: %w", err)
	}
	return invitationSubject, body.String(), nil
}

// SendInvitation renders and sends one invitation. Failures are logged and
// reported as false.
func (s *EmailService) SendInvitation(ctx context.Context, job *models.InvitationEmailJob) bool {
	ctx = log.WithFields(ctx, log.LogFields{
		"email_job_id": job.ID,
		"session_id":   job.SessionID,
	})

	subject, body, err := s.RenderInvitation(InvitationData{
		AdminName:          job.AdminName,
		Role:               job.Role,
		InvitationLink:     job.InvitationLink,
		CustomInstructions: job.CustomInstructions,
	})
	if err != nil {
		log.Error(ctx, "Failed to render invitation email", "error", err, "operation", "render_invitation")
		return false
	}

	msg := mail.NewMsg()
	if err := msg.From(s.smtp.From); err != nil {
		log.Error(ctx, "Invalid sender address", "error", err, "sender", s.smtp.From, "operation", "build_invitation")
		return false
	}
	if err := msg.To(job.To); err != nil {
		log.Error(ctx, "Invalid recipient address", "error", err, "operation", "build_invitation")
		return false
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	client, err := mail.NewClient(s.smtp.Host, s.clientOptions()...)
	if err != nil {
		log.Error(ctx, "Failed to create SMTP client",
			"error", err,
			"smtp_host", s.smtp.Host,
			"operation", "create_smtp_client",
		)
		return false
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		log.Error(ctx, "Failed to send invitation email",
			"error", err,
			"smtp_host", s.smtp.Host,
			"smtp_port", s.smtp.Port,
			"operation", "send_invitation",
		)
		return false
	}

	log.Info(ctx, "Invitation email sent")
	return true
}

func (s *EmailService) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.smtp.Port),
		mail.WithTimeout(s.smtp.Timeout),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if s.smtp.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.smtp.Username),
			mail.WithPassword(s.smtp.Password),
		)
	}
	return opts
}

// Dispatch sends the invitation immediately.
func (s *EmailService) Dispatch(ctx context.Context, job *models.InvitationEmailJob) models.InvitationEmailStatus {
	if s.SendInvitation(ctx, job) {
		return models.InvitationEmailSent
	}
	return models.InvitationEmailFailed
}
