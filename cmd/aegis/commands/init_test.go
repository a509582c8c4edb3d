package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/akrambak/aegis-planner/internal/config"
)

func TestInitCommand_CreatesConfigAndState(t *testing.T) {
	useTempHome(t)

	output := captureOutput(t, func() {
		if err := runInit(nil, nil); err != nil {
			t.Fatalf("runInit error: %v", err)
		}
	})

	configPath := config.ConfigPath()
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("expected config file at %s: %v", configPath, err)
	}

	cfg := config.DefaultConfig()
	statePath := filepath.Join(cfg.Storage.Dir, "state")
	if _, err := os.Stat(statePath); err != nil {
		t.Fatalf("expected state dir at %s: %v", statePath, err)
	}

	if output == "" {
		t.Fatal("expected init output")
	}
}

func TestInitCommand_Idempotent(t *testing.T) {
	useTempHome(t)

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("first runInit: %v", err)
	}
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("second runInit: %v", err)
	}
}
