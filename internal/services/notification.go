package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/logger"
)

// NotificationService turns domain events into outbound mail. Delivery goes
// through the task queue so request handlers never block on SMTP.
type NotificationService struct {
	email *EmailService
	queue TaskQueue
}

func NewNotificationService(email *EmailService, queue TaskQueue) *NotificationService {
	return &NotificationService{email: email, queue: queue}
}

// ProcessMailTask is the queue worker entrypoint.
func (s *NotificationService) ProcessMailTask(ctx context.Context, task *MailTask) error {
	if task.To == "" {
		return nil
	}
	return s.email.Send([]string{task.To}, task.Subject, task.Body)
}

// NotifyInvitation enqueues the invitation mail for the invitee.
func (s *NotificationService) NotifyInvitation(inv *models.Invitation, project *models.Project, inviter *models.User) {
	task := &MailTask{
		Kind:         "invitation",
		To:           inv.Email,
		Subject:      fmt.Sprintf("[TestFlow] You have been invited to %s", project.Name),
		Body:         s.buildInvitationBody(inv, project, inviter),
		ProjectID:    project.ID,
		InvitationID: inv.ID,
	}
	if err := s.queue.Enqueue(task); err != nil {
		logger.Error().Err(err).Uint("invitation_id", inv.ID).Msg("Failed to enqueue invitation mail")
	}
}

// NotifyDigest enqueues a daily digest mail for a project owner.
func (s *NotificationService) NotifyDigest(to string, project *models.Project, body string) {
	task := &MailTask{
		Kind:      "digest",
		To:        to,
		Subject:   fmt.Sprintf("[TestFlow] Daily digest for %s", project.Name),
		Body:      body,
		ProjectID: project.ID,
	}
	if err := s.queue.Enqueue(task); err != nil {
		logger.Error().Err(err).Uint("project_id", project.ID).Msg("Failed to enqueue digest mail")
	}
}

func (s *NotificationService) buildInvitationBody(inv *models.Invitation, project *models.Project, inviter *models.User) string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString("<h2>Project Invitation</h2>")
	sb.WriteString("<table style=\"border-collapse: collapse; margin-bottom: 20px;\">")

	rows := []struct{ label, value string }{
		{"Project", project.Name},
		{"Invited by", inviter.DisplayName()},
		{"Role", inv.Role},
		{"Expires", inv.ExpiresAt.Format("2006-01-02 15:04")},
	}

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("<tr><td style=\"padding: 8px; border: 1px solid #ddd; font-weight: bold;\">%s</td><td style=\"padding: 8px; border: 1px solid #ddd;\">%s</td></tr>", r.label, html.EscapeString(r.value)))
	}
	sb.WriteString("</table>")

	if project.Description != "" {
		sb.WriteString(fmt.Sprintf("<pre style=\"background: #f5f5f5; padding: 12px; border-radius: 4px;\">%s</pre>", html.EscapeString(project.Description)))
	}

	sb.WriteString(fmt.Sprintf("<p>Use invitation token <code>%s</code> to accept or decline.</p>", inv.Token))
	sb.WriteString("<hr><p style=\"color: #888; font-size: 12px;\">Powered by TestFlow</p>")
	sb.WriteString("</body></html>")

	return sb.String()
}
