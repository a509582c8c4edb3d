package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/akrambak/aegis-planner/internal/task"
)

const maxAPIResponseBytes = 1024 * 1024

// apiPayload is the structured body of a generic API-call task.
type apiPayload struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Body   string `json:"body,omitempty"`
}

// runAPI performs a generic HTTP call described by the task payload. A
// non-2xx status is not automatically a failure; only a transport fault is.
func (d *Dispatcher) runAPI(ctx context.Context, t task.Task) Result {
	payload, err := parseAPIPayload(t.CommandText())
	if err != nil {
		return failed("invalid api payload: %v", err)
	}

	var body io.Reader
	if payload.Body != "" {
		body = strings.NewReader(payload.Body)
	}

	req, err := http.NewRequestWithContext(ctx, payload.Method, payload.URL, body)
	if err != nil {
		return failed("build api request: %v", err)
	}
	if payload.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return failed("api call failed: %v", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return failed("read api response: %v", err)
	}

	return Result{Status: StatusSuccess, Output: string(responseBody)}
}

func parseAPIPayload(text string) (apiPayload, error) {
	var payload apiPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return apiPayload{}, fmt.Errorf("expected JSON with method and url: %w", err)
	}

	payload.Method = strings.ToUpper(strings.TrimSpace(payload.Method))
	if payload.Method == "" {
		payload.Method = http.MethodGet
	}
	if strings.TrimSpace(payload.URL) == "" {
		return apiPayload{}, fmt.Errorf("url is required")
	}
	return payload, nil
}
