package dispatch

import (
	"context"
	"os/exec"
	"strings"

	"github.com/akrambak/aegis-planner/internal/task"
)

// maxCaptureBytes caps each captured stream so a chatty subprocess cannot
// produce an audit record too large to read back.
const maxCaptureBytes = 1 << 20

const truncationMarker = "\n... [output truncated]"

// boundedBuffer captures at most maxCaptureBytes and swallows the rest.
type boundedBuffer struct {
	buf       strings.Builder
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if remain := maxCaptureBytes - b.buf.Len(); remain > 0 {
		if len(p) > remain {
			p = p[:remain]
			b.truncated = true
		}
		b.buf.Write(p)
	} else if n > 0 {
		b.truncated = true
	}
	return n, nil
}

func (b *boundedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncationMarker
	}
	return b.buf.String()
}

// runShell executes a shell-class task as a direct subprocess. The command
// line is split on whitespace and executed without a shell, so the
// allow-listed leading token is exactly the program that runs.
func (d *Dispatcher) runShell(ctx context.Context, t task.Task) Result {
	argv := strings.Fields(t.CommandText())
	if len(argv) == 0 {
		return failed("empty command")
	}

	program := strings.ToLower(argv[0])
	if !d.allowed[program] {
		return failed("permission denied: %v: %q", ErrPermission, program)
	}

	runCtx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	if d.cfg.WorkDir != "" {
		cmd.Dir = d.cfg.WorkDir
	}

	var stdout, stderr boundedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		if runCtx.Err() == context.DeadlineExceeded {
			detail = "command timed out: " + detail
		}
		return Result{
			Status: StatusFailed,
			Output: stdout.String(),
			Error:  detail,
		}
	}

	return Result{
		Status: StatusSuccess,
		Output: stdout.String(),
	}
}

// runCode executes an embedded-code payload via the configured interpreter
// in a separate process with a scrubbed environment. The interpreter itself
// must be allow-listed; without one the capability is disabled.
func (d *Dispatcher) runCode(ctx context.Context, t task.Task) Result {
	interpreter := strings.TrimSpace(d.cfg.CodeInterpreter)
	if interpreter == "" {
		return failed("embedded code execution is disabled")
	}
	if !d.allowed[strings.ToLower(interpreter)] {
		return failed("permission denied: %v: interpreter %q", ErrPermission, interpreter)
	}

	payload := t.CommandText()
	if payload == "" {
		return failed("empty code payload")
	}

	runCtx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, interpreter, "-c", payload)
	// No inherited environment: the payload must not see the dispatcher's
	// credentials or configuration.
	cmd.Env = []string{}
	if d.cfg.WorkDir != "" {
		cmd.Dir = d.cfg.WorkDir
	}

	var stdout, stderr boundedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return Result{
			Status: StatusFailed,
			Output: stdout.String(),
			Error:  detail,
		}
	}

	return Result{
		Status: StatusSuccess,
		Output: stdout.String(),
	}
}
