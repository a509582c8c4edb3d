package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/akrambak/aegis-planner/internal/config"
	"github.com/akrambak/aegis-planner/internal/metrics"
	"github.com/akrambak/aegis-planner/internal/state"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Aegis configuration status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("=== Aegis Status ===")
	fmt.Println()

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found (run 'aegis init')")
	}

	fmt.Printf("\nStorage: %s\n", cfg.Storage.Dir)
	if _, err := os.Stat(cfg.Storage.Dir); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found")
	}

	fmt.Println("\nPolicy:")
	fmt.Printf("  Rules: %d\n", len(cfg.Policy.Rules))
	fmt.Printf("  High-risk override: %v\n", cfg.Policy.HighRiskOverride)

	fmt.Println("\nApproval:")
	fmt.Printf("  Timeout: %ds, poll interval: %ds\n", cfg.Approval.TimeoutSeconds, cfg.Approval.PollIntervalSeconds)

	fmt.Println("\nDispatch:")
	fmt.Printf("  Allow list: %d programs\n", len(cfg.Dispatch.AllowList))
	fmt.Printf("  Command timeout: %ds\n", cfg.Dispatch.TimeoutSeconds)
	if cfg.Dispatch.CodeInterpreter != "" {
		fmt.Printf("  Code interpreter: %s\n", cfg.Dispatch.CodeInterpreter)
	} else {
		fmt.Println("  Code interpreter: disabled")
	}
	fmt.Printf("  Workflow hooks: %d\n", len(cfg.Dispatch.WorkflowHooks))

	fmt.Println("\nChannels:")
	printChannel("Slack", cfg.Channels.Slack.Enabled)
	printChannel("Telegram", cfg.Channels.Telegram.Enabled)
	printChannel("Webhook", cfg.Channels.Webhook.Enabled)

	fmt.Println("\nGateway:")
	fmt.Printf("  Address: %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	if cfg.Gateway.Token != "" {
		fmt.Println("  Auth:    token configured")
	} else {
		fmt.Println("  Auth:    no token (open)")
	}

	fmt.Println("\nSweep:")
	if cfg.Sweep.Enabled {
		fmt.Printf("  Schedule: %s\n", cfg.Sweep.Schedule)
	} else {
		fmt.Println("  Disabled")
	}

	stateMgr := state.NewManager(cfg.Storage.Dir)
	if run, err := stateMgr.LoadRunState(); err == nil && run.RunID != "" {
		fmt.Println("\nLast run:")
		fmt.Printf("  Run: %s on %s\n", run.RunID, run.Node)
		if !run.LastSeenAt.IsZero() {
			fmt.Printf("  Last task: %s (%s at %s)\n", run.LastTask, run.LastStatus, run.LastSeenAt.Format(time.RFC3339))
		}
	}

	if snap, err := metrics.ReadRuntimeSnapshot(cfg.Storage.Dir); err == nil && snap.HasData() {
		fmt.Println("\nRuntime:")
		fmt.Printf("  Dispatches: %d (%d ok, %d failed, %d blocked, %d skipped)\n",
			snap.Dispatch.Total, snap.Dispatch.Succeeded, snap.Dispatch.Failed,
			snap.Dispatch.Blocked, snap.Dispatch.Skipped)
		fmt.Printf("  Avg latency: %.0fms, p95~%dms\n", snap.Dispatch.AvgLatencyMs(), snap.Dispatch.P95ProxyLatencyMs)
		if snap.Alert.SendAttempts > 0 {
			fmt.Printf("  Alerts: %d sent, %d failed\n", snap.Alert.SendAttempts, snap.Alert.SendFailures)
		}
	}

	return nil
}

func printChannel(name string, enabled bool) {
	status := "disabled"
	if enabled {
		status = "enabled"
	}
	fmt.Printf("  %s: %s\n", name, status)
}
