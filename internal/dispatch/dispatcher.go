// Package dispatch routes approved tasks to type-specific executors and
// converts every failure mode into a result value. Nothing in this package
// lets an error propagate to the caller.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akrambak/aegis-planner/internal/task"
)

// Status is the dispatcher-level outcome.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// ErrPermission marks a shell-class task whose leading token is not
// allow-listed. The subprocess is never spawned.
var ErrPermission = errors.New("command not allow-listed")

// Result is the captured outcome of one dispatch. Elapsed is wall-clock
// time and is populated regardless of outcome.
type Result struct {
	Status  Status
	Output  string
	Error   string
	Elapsed time.Duration
}

// Config controls executor behavior. AllowList entries are program names
// compared against the task's leading token, case-insensitively.
type Config struct {
	AllowList       []string
	CommandTimeout  time.Duration
	CodeInterpreter string
	WorkDir         string
	HTTPTimeout     time.Duration
}

// DefaultAllowList returns the shipped set of permitted program names.
func DefaultAllowList() []string {
	return []string{
		"ls", "pwd", "git", "python", "python3", "pytest", "node", "npm",
		"cat", "echo", "docker", "pip", "bash", "sh", "make",
	}
}

// Dispatcher executes tasks against real side-effecting backends.
type Dispatcher struct {
	cfg     Config
	allowed map[string]bool
	hooks   WorkflowHooks
	client  *http.Client
	now     func() time.Time
}

// New creates a dispatcher. hooks may be nil when no workflow automation
// endpoint is configured.
func New(cfg Config, hooks WorkflowHooks) *Dispatcher {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 60 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}

	allowed := make(map[string]bool, len(cfg.AllowList))
	for _, name := range cfg.AllowList {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			allowed[name] = true
		}
	}

	return &Dispatcher{
		cfg:     cfg,
		allowed: allowed,
		hooks:   hooks,
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		now:     time.Now,
	}
}

// Dispatch routes the task on its type tag. All failures, the unknown type
// included, come back as a FAILED result, never as a panic or an error
// value.
func (d *Dispatcher) Dispatch(ctx context.Context, t task.Task) Result {
	start := d.now()
	var result Result

	switch {
	case t.IsShellClass():
		result = d.runShell(ctx, t)
	case t.Type == task.TypeCode:
		result = d.runCode(ctx, t)
	case t.Type == task.TypeWorkflow:
		result = d.runWorkflow(ctx, t)
	case t.Type == task.TypeAPI:
		result = d.runAPI(ctx, t)
	default:
		result = Result{
			Status: StatusFailed,
			Error:  fmt.Sprintf("unknown task type: %q", t.Type),
		}
	}

	result.Elapsed = d.now().Sub(start)
	return result
}

func failed(format string, args ...any) Result {
	return Result{Status: StatusFailed, Error: fmt.Sprintf(format, args...)}
}
