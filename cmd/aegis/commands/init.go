package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/akrambak/aegis-planner/internal/config"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Aegis configuration",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()

	dirs := []string{
		config.ConfigDir(),
		filepath.Join(cfg.Storage.Dir, "state"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Aegis initialized!\n")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("State:  %s\n", filepath.Join(cfg.Storage.Dir, "state"))
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s to tune policy rules and the allow list\n", configPath)
	fmt.Printf("2. Run 'aegis submit \"echo hello\" --execute' to try a task\n")

	return nil
}
