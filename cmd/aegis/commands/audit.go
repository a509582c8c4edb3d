package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the execution audit trail",
	}

	cmd.AddCommand(
		newAuditRecentCmd(),
		newAuditTicketsCmd(),
	)

	return cmd
}

func newAuditRecentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recent execution records",
		RunE:  runAuditRecent,
	}
	cmd.Flags().Int("days", 7, "Window in days")
	return cmd
}

func newAuditTicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Show recent approval tickets",
		RunE:  runAuditTickets,
	}
	cmd.Flags().Int("days", 7, "Window in days")
	return cmd
}

func runAuditRecent(cmd *cobra.Command, args []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}

	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	records, err := st.log.RecentRecords(days)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No executions in the last %d days.\n", days)
		return nil
	}

	for _, r := range records {
		line := fmt.Sprintf("%s  %-7s  [%s]  %s",
			r.ExecutedAt.Format(time.RFC3339), r.Status, r.RiskTier, r.TaskText)
		if r.DryRun {
			line += "  (dry run)"
		}
		if r.Error != "" && r.Status != "SKIPPED" {
			line += "  error=" + r.Error
		}
		fmt.Println(line)
	}
	return nil
}

func runAuditTickets(cmd *cobra.Command, args []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}

	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	tickets, err := st.log.RecentTickets(days)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		fmt.Printf("No tickets in the last %d days.\n", days)
		return nil
	}

	for _, t := range tickets {
		line := fmt.Sprintf("%s  %-8s  [%s]  %s", t.ID, t.Status, t.RiskTier, t.TaskText)
		if t.DecidedBy != "" {
			line += "  by " + t.DecidedBy
		}
		fmt.Println(line)
	}
	return nil
}
