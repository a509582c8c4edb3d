package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/akrambak/aegis-planner/internal/audit"
)

const runtimeMetricsFileName = "runtime_metrics.json"

var latencyBucketUpperBoundsMs = []int64{
	10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000,
}

// RuntimeSnapshot contains aggregated runtime metrics for task dispatches
// and alert deliveries.
type RuntimeSnapshot struct {
	UpdatedAt time.Time     `json:"updated_at"`
	Dispatch  DispatchStats `json:"dispatch"`
	Alert     AlertStats    `json:"alert"`
}

// DispatchStats tracks task execution metrics.
type DispatchStats struct {
	Total             int64 `json:"total"`
	Succeeded         int64 `json:"succeeded"`
	Failed            int64 `json:"failed"`
	Blocked           int64 `json:"blocked"`
	Skipped           int64 `json:"skipped"`
	Timeouts          int64 `json:"timeouts"`
	TotalLatencyMs    int64 `json:"total_latency_ms"`
	MaxLatencyMs      int64 `json:"max_latency_ms"`
	LastLatencyMs     int64 `json:"last_latency_ms"`
	P95ProxyLatencyMs int64 `json:"p95_proxy_latency_ms"`
}

// FailureRatio returns failed/total in [0,1].
func (d DispatchStats) FailureRatio() float64 {
	if d.Total <= 0 {
		return 0
	}
	return float64(d.Failed) / float64(d.Total)
}

// BlockedRatio returns blocked/total in [0,1].
func (d DispatchStats) BlockedRatio() float64 {
	if d.Total <= 0 {
		return 0
	}
	return float64(d.Blocked) / float64(d.Total)
}

// AvgLatencyMs returns average latency in milliseconds.
func (d DispatchStats) AvgLatencyMs() float64 {
	if d.Total <= 0 {
		return 0
	}
	return float64(d.TotalLatencyMs) / float64(d.Total)
}

// AlertStats tracks outbound alert delivery metrics.
type AlertStats struct {
	SendAttempts int64 `json:"send_attempts"`
	SendFailures int64 `json:"send_failures"`
}

// FailureRatio returns failures/attempts in [0,1].
func (a AlertStats) FailureRatio() float64 {
	if a.SendAttempts <= 0 {
		return 0
	}
	return float64(a.SendFailures) / float64(a.SendAttempts)
}

// HasData reports whether any runtime metrics were recorded.
func (s RuntimeSnapshot) HasData() bool {
	return s.Dispatch.Total > 0 || s.Alert.SendAttempts > 0
}

// RuntimeMetrics records and persists runtime metrics.
type RuntimeMetrics struct {
	path string

	mu      sync.Mutex
	snap    RuntimeSnapshot
	buckets []int64
}

// NewRuntimeMetrics creates a metrics recorder rooted at <dir>/state/runtime_metrics.json.
func NewRuntimeMetrics(baseDir string) *RuntimeMetrics {
	return &RuntimeMetrics{
		path:    runtimeMetricsPath(baseDir),
		buckets: make([]int64, len(latencyBucketUpperBoundsMs)+1),
	}
}

// Snapshot returns the latest in-memory snapshot.
func (m *RuntimeMetrics) Snapshot() RuntimeSnapshot {
	if m == nil {
		return RuntimeSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// RecordExecution updates dispatch metrics from a finished execution record
// and persists the snapshot.
func (m *RuntimeMetrics) RecordExecution(record audit.Record, runErr error) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	now := time.Now().UTC()
	latencyMs := record.ElapsedMS
	if latencyMs < 0 {
		latencyMs = 0
	}

	m.mu.Lock()
	m.snap.UpdatedAt = now
	m.snap.Dispatch.Total++
	m.snap.Dispatch.TotalLatencyMs += latencyMs
	m.snap.Dispatch.LastLatencyMs = latencyMs
	if latencyMs > m.snap.Dispatch.MaxLatencyMs {
		m.snap.Dispatch.MaxLatencyMs = latencyMs
	}
	switch record.Status {
	case audit.StatusSuccess:
		m.snap.Dispatch.Succeeded++
	case audit.StatusFailed:
		m.snap.Dispatch.Failed++
		if isTimeoutError(runErr, record.Error) {
			m.snap.Dispatch.Timeouts++
		}
	case audit.StatusBlocked:
		m.snap.Dispatch.Blocked++
	case audit.StatusSkipped:
		m.snap.Dispatch.Skipped++
	}

	m.buckets[latencyBucketIndex(latencyMs)]++
	m.snap.Dispatch.P95ProxyLatencyMs = p95ProxyFromBuckets(m.buckets, m.snap.Dispatch.Total)

	snapshot := m.snap
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

// RecordAlertSend updates outbound alert delivery metrics and persists the snapshot.
func (m *RuntimeMetrics) RecordAlertSend(success bool) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	now := time.Now().UTC()

	m.mu.Lock()
	m.snap.UpdatedAt = now
	m.snap.Alert.SendAttempts++
	if !success {
		m.snap.Alert.SendFailures++
	}
	snapshot := m.snap
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

// ReadRuntimeSnapshot reads the persisted snapshot from the state directory.
// If no file exists yet, it returns a zero-value snapshot and nil error.
func ReadRuntimeSnapshot(baseDir string) (RuntimeSnapshot, error) {
	path := runtimeMetricsPath(baseDir)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RuntimeSnapshot{}, nil
		}
		return RuntimeSnapshot{}, fmt.Errorf("read runtime metrics: %w", err)
	}

	var snap RuntimeSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return RuntimeSnapshot{}, fmt.Errorf("decode runtime metrics: %w", err)
	}
	return snap, nil
}

func runtimeMetricsPath(baseDir string) string {
	return filepath.Join(baseDir, "state", runtimeMetricsFileName)
}

func persistRuntimeSnapshot(path string, snapshot RuntimeSnapshot) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create runtime metrics dir: %w", err)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode runtime metrics: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write runtime metrics temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename runtime metrics file: %w", err)
	}
	return nil
}

func latencyBucketIndex(latencyMs int64) int {
	for i, upper := range latencyBucketUpperBoundsMs {
		if latencyMs <= upper {
			return i
		}
	}
	return len(latencyBucketUpperBoundsMs)
}

func p95ProxyFromBuckets(buckets []int64, total int64) int64 {
	if total <= 0 {
		return 0
	}
	target := int64(float64(total) * 0.95)
	if target <= 0 {
		target = 1
	}

	var cumulative int64
	for i, count := range buckets {
		cumulative += count
		if cumulative < target {
			continue
		}
		if i >= len(latencyBucketUpperBoundsMs) {
			return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
		}
		return latencyBucketUpperBoundsMs[i]
	}
	return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
}

func isTimeoutError(runErr error, detail string) bool {
	if errors.Is(runErr, context.DeadlineExceeded) {
		return true
	}
	lowered := strings.ToLower(strings.TrimSpace(fmt.Sprint(runErr)))
	if lowered == "<nil>" {
		lowered = ""
	}
	loweredDetail := strings.ToLower(strings.TrimSpace(detail))
	combined := lowered + " " + loweredDetail
	return strings.Contains(combined, "deadline exceeded") ||
		strings.Contains(combined, "timeout") ||
		strings.Contains(combined, "timed out")
}
