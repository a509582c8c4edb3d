package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/akrambak/aegis-planner/internal/audit"
)

const runStateFileMode = 0600

// RunState stores the latest daemon run identity for the status command.
type RunState struct {
	RunID      string       `json:"run_id"`
	Node       string       `json:"node"`
	StartedAt  time.Time    `json:"started_at,omitempty"`
	LastStatus audit.Status `json:"last_status,omitempty"`
	LastTask   string       `json:"last_task,omitempty"`
	LastSeenAt time.Time    `json:"last_seen_at,omitempty"`
}

// Manager persists lightweight runtime state.
type Manager struct {
	runStatePath string
	mu           sync.Mutex
}

// NewManager creates a state manager under <baseDir>/state.
func NewManager(baseDir string) *Manager {
	return &Manager{
		runStatePath: filepath.Join(baseDir, "state", "run.json"),
	}
}

// LoadRunState reads run state from disk.
// Missing or malformed files are treated as empty state.
func (m *Manager) LoadRunState() (RunState, error) {
	data, err := os.ReadFile(m.runStatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return RunState{}, nil
		}
		return RunState{}, err
	}

	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return RunState{}, nil
	}
	st.RunID = strings.TrimSpace(st.RunID)
	st.Node = strings.TrimSpace(st.Node)
	if st.RunID == "" {
		return RunState{}, nil
	}
	return st, nil
}

// SaveRunState writes run state to disk.
func (m *Manager) SaveRunState(st RunState) error {
	st.RunID = strings.TrimSpace(st.RunID)
	st.Node = strings.TrimSpace(st.Node)
	if st.RunID == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.runStatePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.runStatePath, data, runStateFileMode)
}

// TouchRun updates the last-seen fields after a completed submission.
func (m *Manager) TouchRun(runID, node string, record audit.Record) error {
	st, err := m.LoadRunState()
	if err != nil {
		return err
	}
	if st.RunID != runID {
		st = RunState{RunID: runID, Node: node, StartedAt: time.Now().UTC()}
	}
	st.LastStatus = record.Status
	st.LastTask = record.TaskText
	st.LastSeenAt = time.Now().UTC()
	return m.SaveRunState(st)
}
