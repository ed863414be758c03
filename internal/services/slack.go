package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"onboarding-api/internal/log"
	"onboarding-api/internal/models"
)

// mrkdwnEscaper escapes the characters Slack reserves for links and mentions.
var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// SlackNotifier posts admin notifications to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewSlackNotifier creates a SlackNotifier. An empty webhookURL disables it.
func NewSlackNotifier(webhookURL string, httpClient *http.Client) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

// InvitationClaimed reports that an employee accepted an invitation.
func (n *SlackNotifier) InvitationClaimed(ctx context.Context, session *models.OnboardingSession, employeeName string) {
	who := mrkdwnEscaper.Replace(session.Email)
	if employeeName != "" {
		who = fmt.Sprintf("%s (%s)", mrkdwnEscaper.Replace(employeeName), who)
	}
	text := fmt.Sprintf(":wave: %s accepted the invitation for *%s* and started onboarding.",
		who, mrkdwnEscaper.Replace(session.Role))
	n.post(ctx, "invitation_claimed", session, text)
}

// OnboardingCompleted reports that a session reached full progress.
func (n *SlackNotifier) OnboardingCompleted(ctx context.Context, session *models.OnboardingSession) {
	text := fmt.Sprintf(":tada: %s completed onboarding for *%s*.",
		mrkdwnEscaper.Replace(session.Email), mrkdwnEscaper.Replace(session.Role))
	n.post(ctx, "onboarding_completed", session, text)
}

func (n *SlackNotifier) post(ctx context.Context, event string, session *models.OnboardingSession, text string) {
	if n.webhookURL == "" {
		return
	}

	msg := &slack.WebhookMessage{
		Text: text,
		Blocks: &slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
			slack.NewContextBlock("",
				slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("Session `%s`", session.ID), false, false),
			),
		}},
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.httpClient, msg); err != nil {
		// Notifications are advisory; the onboarding action already succeeded.
		log.Warn(ctx, "Failed to post Slack notification",
			"error", err,
			"event", event,
			"session_id", session.ID,
			"operation", "post_slack_webhook",
		)
	}
}
