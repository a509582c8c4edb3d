package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/akrambak/aegis-planner/internal/approval"
	"github.com/akrambak/aegis-planner/internal/config"
)

func NewApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Manage approval tickets",
	}

	cmd.AddCommand(
		newApprovalListCmd(),
		newApprovalApproveCmd(),
		newApprovalDenyCmd(),
		newApprovalExpireCmd(),
	)

	return cmd
}

func newApprovalListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending approval tickets",
		RunE:  runApprovalList,
	}
}

func newApprovalApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <ticket-id>",
		Short: "Approve a pending ticket",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalApprove,
	}
	cmd.Flags().String("by", "", "Decision maker")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func newApprovalDenyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deny <ticket-id>",
		Short: "Deny a pending ticket",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalDeny,
	}
	cmd.Flags().String("by", "", "Decision maker")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func newApprovalExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire overdue pending tickets",
		RunE:  runApprovalExpire,
	}
}

func runApprovalList(cmd *cobra.Command, args []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}

	tickets, err := st.log.PendingTickets()
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		fmt.Println("No pending approvals.")
		return nil
	}

	for _, t := range tickets {
		fmt.Printf("%s  [%s]  %s  (requested by %s, expires %s)\n",
			t.ID, t.RiskTier, t.TaskText, t.Requester, t.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func runApprovalApprove(cmd *cobra.Command, args []string) error {
	return runApprovalDecision(cmd, args[0], true)
}

func runApprovalDeny(cmd *cobra.Command, args []string) error {
	return runApprovalDecision(cmd, args[0], false)
}

func runApprovalDecision(cmd *cobra.Command, ticketID string, approve bool) error {
	st, err := loadStack()
	if err != nil {
		return err
	}

	by, _ := cmd.Flags().GetString("by")
	if strings.TrimSpace(by) == "" {
		return fmt.Errorf("--by is required")
	}

	ticket, applied, err := st.approvals.Resolve(approval.Resolution{
		TicketID:   ticketID,
		Approved:   approve,
		ResolvedBy: strings.TrimSpace(by),
	})
	if err != nil {
		return err
	}
	if !applied {
		fmt.Printf("Ticket %s already resolved: %s\n", ticket.ID, ticket.Status)
		return nil
	}
	fmt.Printf("Ticket %s %s.\n", ticket.ID, strings.ToLower(string(ticket.Status)))
	return nil
}

func runApprovalExpire(cmd *cobra.Command, args []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}

	expired, err := st.approvals.ExpireOverdue()
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		fmt.Println("Nothing to expire.")
		return nil
	}
	for _, t := range expired {
		fmt.Printf("Expired %s (%s)\n", t.ID, t.TaskText)
	}
	return nil
}

func loadStack() (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return buildStack(cfg)
}
