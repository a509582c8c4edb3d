package commands

import (
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCmd()
	output := captureOutput(t, func() {
		cmd.Run(cmd, nil)
	})
	if !strings.Contains(output, "aegis") {
		t.Fatalf("expected version output to mention aegis, got: %s", output)
	}
}
