package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akrambak/aegis-planner/internal/task"
)

// WorkflowHooks triggers an external workflow-automation hook by name and
// returns its textual acknowledgment.
type WorkflowHooks interface {
	Trigger(ctx context.Context, name, payload string) (string, error)
}

// WebhookHooks invokes named hooks over HTTP, n8n style: the hook name maps
// to a webhook URL and the payload is posted as JSON.
type WebhookHooks struct {
	endpoints map[string]string
	client    *http.Client
}

// NewWebhookHooks builds a hook registry from name to webhook URL.
func NewWebhookHooks(endpoints map[string]string, timeout time.Duration) *WebhookHooks {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	normalized := make(map[string]string, len(endpoints))
	for name, url := range endpoints {
		name = strings.ToLower(strings.TrimSpace(name))
		url = strings.TrimSpace(url)
		if name != "" && url != "" {
			normalized[name] = url
		}
	}
	return &WebhookHooks{
		endpoints: normalized,
		client:    &http.Client{Timeout: timeout},
	}
}

// Trigger posts the payload to the named hook's webhook.
func (h *WebhookHooks) Trigger(ctx context.Context, name, payload string) (string, error) {
	url, ok := h.endpoints[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown workflow hook: %q", name)
	}

	body, err := json.Marshal(map[string]string{"payload": payload})
	if err != nil {
		return "", fmt.Errorf("encode hook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("build hook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("trigger hook %q: %w", name, err)
	}
	defer resp.Body.Close()

	ack, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("read hook response: %w", err)
	}
	if strings.TrimSpace(string(ack)) == "" {
		return fmt.Sprintf("triggered workflow %q", name), nil
	}
	return string(ack), nil
}

// runWorkflow resolves the hook name from the payload and fires it. Any
// non-error return is SUCCESS with the hook's acknowledgment as result.
func (d *Dispatcher) runWorkflow(ctx context.Context, t task.Task) Result {
	if d.hooks == nil {
		return failed("no workflow hooks configured")
	}

	name, payload := splitWorkflowPayload(t.CommandText())
	if name == "" {
		return failed("workflow hook name is required")
	}

	ack, err := d.hooks.Trigger(ctx, name, payload)
	if err != nil {
		return failed("workflow trigger failed: %v", err)
	}
	return Result{Status: StatusSuccess, Output: ack}
}

// splitWorkflowPayload separates "hook-name rest of payload" into its hook
// name and payload remainder.
func splitWorkflowPayload(text string) (string, string) {
	fields := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(fields) == 0 {
		return "", ""
	}
	name := fields[0]
	if len(fields) == 1 {
		return name, ""
	}
	return name, strings.TrimSpace(fields[1])
}
