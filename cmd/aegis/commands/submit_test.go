package commands

import (
	"context"
	"strings"
	"testing"
)

func TestSubmitCommand_DryRunByDefault(t *testing.T) {
	useTempHome(t)
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	cmd := NewSubmitCmd()
	cmd.SetContext(context.Background())

	output := captureOutput(t, func() {
		if err := runSubmit(cmd, []string{"echo", "hi"}); err != nil {
			t.Fatalf("runSubmit: %v", err)
		}
	})

	if !strings.Contains(output, "SKIPPED") {
		t.Fatalf("expected SKIPPED status for dry run, got: %s", output)
	}
	if !strings.Contains(output, "dry run") {
		t.Fatalf("expected dry run marker, got: %s", output)
	}
	if !strings.Contains(output, "LOW") {
		t.Fatalf("expected LOW risk tier, got: %s", output)
	}
}

func TestSubmitCommand_Execute(t *testing.T) {
	useTempHome(t)
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	cmd := NewSubmitCmd()
	cmd.SetContext(context.Background())
	if err := cmd.Flags().Set("execute", "true"); err != nil {
		t.Fatalf("set execute flag: %v", err)
	}

	output := captureOutput(t, func() {
		if err := runSubmit(cmd, []string{"echo", "hello"}); err != nil {
			t.Fatalf("runSubmit: %v", err)
		}
	})

	if !strings.Contains(output, "SUCCESS") {
		t.Fatalf("expected SUCCESS status, got: %s", output)
	}
	if !strings.Contains(output, "hello") {
		t.Fatalf("expected command output, got: %s", output)
	}
}

func TestSubmitCommand_DeniedHighRisk(t *testing.T) {
	useTempHome(t)
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	cmd := NewSubmitCmd()
	cmd.SetContext(context.Background())
	if err := cmd.Flags().Set("execute", "true"); err != nil {
		t.Fatalf("set execute flag: %v", err)
	}

	output := captureOutput(t, func() {
		if err := runSubmit(cmd, []string{"rm", "-rf", "/tmp/x"}); err != nil {
			t.Fatalf("runSubmit: %v", err)
		}
	})

	if !strings.Contains(output, "SKIPPED") {
		t.Fatalf("expected SKIPPED status for denied task, got: %s", output)
	}
	if !strings.Contains(output, "HIGH") {
		t.Fatalf("expected HIGH risk tier, got: %s", output)
	}
}

func TestSubmitCommand_EmptyTask(t *testing.T) {
	useTempHome(t)
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	cmd := NewSubmitCmd()
	cmd.SetContext(context.Background())
	if err := runSubmit(cmd, []string{"  "}); err == nil {
		t.Fatal("expected error for empty task")
	}
}
