package commands

import (
	"fmt"
	"os/user"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akrambak/aegis-planner/internal/audit"
	"github.com/akrambak/aegis-planner/internal/config"
	"github.com/akrambak/aegis-planner/internal/plane"
	"github.com/akrambak/aegis-planner/internal/task"
)

func NewSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <task>",
		Short: "Submit a task through the risk gate",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSubmit,
	}
	cmd.Flags().String("type", "", "Structured task type (shell|git|script|code|workflow|api)")
	cmd.Flags().String("requester", "", "Requester identity (defaults to the current user)")
	cmd.Flags().Bool("execute", false, "Actually execute; without it the configured dry-run default applies")
	cmd.Flags().Bool("dry-run", false, "Force dry-run regardless of config")
	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := buildStack(cfg)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	var t task.Task
	if typ, _ := cmd.Flags().GetString("type"); strings.TrimSpace(typ) != "" {
		t = task.NewStructured(task.Type(strings.TrimSpace(typ)), text)
	} else {
		t = task.NewText(text)
	}
	if t.IsEmpty() {
		return fmt.Errorf("task is required")
	}

	requester, _ := cmd.Flags().GetString("requester")
	if strings.TrimSpace(requester) == "" {
		requester = cfg.Submit.DefaultRequester
		if u, err := user.Current(); err == nil && u.Username != "" {
			requester = u.Username
		}
	}

	dryRun := cfg.Submit.DryRunDefault
	if execute, _ := cmd.Flags().GetBool("execute"); execute {
		dryRun = false
	}
	if forced, _ := cmd.Flags().GetBool("dry-run"); forced {
		dryRun = true
	}

	record, err := st.orchestrator.Submit(cmd.Context(), plane.SubmitRequest{
		Task:      t,
		Requester: requester,
		DryRun:    dryRun,
	})
	if err != nil {
		return err
	}

	if err := st.states.TouchRun(st.orchestrator.RunID(), st.orchestrator.Node(), record); err != nil {
		return err
	}

	printRecord(record)
	return nil
}

func printRecord(record audit.Record) {
	fmt.Printf("Status: %s\n", record.Status)
	fmt.Printf("Risk:   %s\n", record.RiskTier)
	if record.PolicyRule != "" {
		fmt.Printf("Rule:   %s\n", record.PolicyRule)
	}
	if record.TicketID != "" {
		fmt.Printf("Ticket: %s (%s)\n", record.TicketID, record.ApprovalOutcome)
	}
	if record.Result != "" {
		fmt.Printf("Output:\n%s\n", record.Result)
	}
	if record.Error != "" {
		fmt.Printf("Error:  %s\n", record.Error)
	}
}
