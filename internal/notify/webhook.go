package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akrambak/aegis-planner/internal/approval"
)

// WebhookNotifier posts plain JSON to generic endpoints, for deployments
// whose reviewer channel is a workflow-automation webhook rather than a
// chat product.
type WebhookNotifier struct {
	approvalURL string
	failureURL  string
	client      *http.Client
}

// NewWebhookNotifier creates a notifier over generic webhook endpoints.
func NewWebhookNotifier(approvalURL, failureURL string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		approvalURL: strings.TrimSpace(approvalURL),
		failureURL:  strings.TrimSpace(failureURL),
		client:      &http.Client{Timeout: timeout},
	}
}

// NotifyApproval posts {ticketId, task, riskTier, reason} to the approval
// endpoint.
func (n *WebhookNotifier) NotifyApproval(ctx context.Context, ticket approval.Ticket) error {
	if n.approvalURL == "" {
		return nil
	}
	return n.postJSON(ctx, n.approvalURL, map[string]any{
		"ticket_id": ticket.ID,
		"task":      ticket.TaskText,
		"risk_tier": ticket.RiskTier,
		"reason":    ticket.Reason,
		"requester": ticket.Requester,
	})
}

// NotifyFailure posts the alert to the failure endpoint.
func (n *WebhookNotifier) NotifyFailure(ctx context.Context, alert FailureAlert) error {
	if n.failureURL == "" {
		return nil
	}
	return n.postJSON(ctx, n.failureURL, alert)
}

func (n *WebhookNotifier) postJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
