package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/akrambak/aegis-planner/internal/approval"
)

const (
	approvalColor = "#ffae42"
	failureColor  = "#ff4d4f"
)

// SlackNotifier posts approval requests and failure alerts to Slack
// incoming webhooks. Either webhook may be empty; the corresponding
// delivery becomes a no-op.
type SlackNotifier struct {
	approvalWebhook string
	failureWebhook  string
	post            func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewSlackNotifier creates a notifier over the given webhook URLs.
func NewSlackNotifier(approvalWebhook, failureWebhook string) *SlackNotifier {
	return &SlackNotifier{
		approvalWebhook: strings.TrimSpace(approvalWebhook),
		failureWebhook:  strings.TrimSpace(failureWebhook),
		post:            slack.PostWebhookContext,
	}
}

// NotifyApproval posts the ticket to the reviewer webhook.
func (n *SlackNotifier) NotifyApproval(ctx context.Context, ticket approval.Ticket) error {
	if n.approvalWebhook == "" {
		return nil
	}

	msg := &slack.WebhookMessage{
		Text: "Task approval required",
		Attachments: []slack.Attachment{{
			Color: approvalColor,
			Fields: []slack.AttachmentField{
				{Title: "Ticket", Value: ticket.ID, Short: true},
				{Title: "Risk Tier", Value: string(ticket.RiskTier), Short: true},
				{Title: "Task", Value: ticket.TaskText},
				{Title: "Reason", Value: ticket.Reason},
				{Title: "Requested By", Value: ticket.Requester, Short: true},
			},
		}},
	}
	if err := n.post(ctx, n.approvalWebhook, msg); err != nil {
		return fmt.Errorf("post approval webhook: %w", err)
	}
	return nil
}

// NotifyFailure posts a failure alert to the alerting webhook.
func (n *SlackNotifier) NotifyFailure(ctx context.Context, alert FailureAlert) error {
	if n.failureWebhook == "" {
		return nil
	}

	errText := alert.Error
	if errText == "" {
		errText = "Unknown error"
	}
	msg := &slack.WebhookMessage{
		Text: "Task failure alert",
		Attachments: []slack.Attachment{{
			Color: failureColor,
			Fields: []slack.AttachmentField{
				{Title: "Task", Value: alert.Task},
				{Title: "Error", Value: errText},
				{Title: "Run ID", Value: alert.RunID, Short: true},
				{Title: "Node", Value: alert.Node, Short: true},
				{Title: "Executed At", Value: alert.ExecutedAt.Format("2006-01-02 15:04:05 MST")},
			},
		}},
	}
	if err := n.post(ctx, n.failureWebhook, msg); err != nil {
		return fmt.Errorf("post failure webhook: %w", err)
	}
	return nil
}
