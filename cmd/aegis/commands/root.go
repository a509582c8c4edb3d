package commands

import (
	"github.com/spf13/cobra"

	"github.com/akrambak/aegis-planner/internal/config"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aegis",
		Short: "Aegis - risk-gated task execution",
		Long:  `Aegis gates side-effecting tasks behind risk classification, policy and human approval before anything runs.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return configureLogger(config.DefaultConfig(), logLevelOverride)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewSubmitCmd(),
		NewServeCmd(),
		NewApprovalCmd(),
		NewAuditCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)

	return cmd
}
