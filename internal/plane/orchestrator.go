// Package plane is the control-plane choke point: every side-effecting task
// passes through Submit, which classifies risk, applies policy, gates on
// human approval, dispatches, and writes exactly one audit record.
package plane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/akrambak/aegis-planner/internal/approval"
	"github.com/akrambak/aegis-planner/internal/audit"
	"github.com/akrambak/aegis-planner/internal/dispatch"
	"github.com/akrambak/aegis-planner/internal/metrics"
	"github.com/akrambak/aegis-planner/internal/notify"
	"github.com/akrambak/aegis-planner/internal/policy"
	"github.com/akrambak/aegis-planner/internal/risk"
	"github.com/akrambak/aegis-planner/internal/task"
)

// BlockedMessage is the canonical error text for rejected or unapproved
// tasks.
const BlockedMessage = "Task rejected or not approved"

// DryRunMessage marks records short-circuited by dry-run mode.
const DryRunMessage = "dry run"

// Config controls orchestrator behavior.
type Config struct {
	// HighRiskOverride forces approval for HIGH-risk tasks even when
	// policy alone would allow them. Default on; switching it off lets
	// policy permit HIGH-risk tasks unattended.
	HighRiskOverride bool

	// AlertTimeout bounds the out-of-band failure notification.
	AlertTimeout time.Duration
}

// SubmitRequest is one task submission.
type SubmitRequest struct {
	Task      task.Task
	Requester string
	DryRun    bool
}

// Orchestrator composes classifier, policy engine, approval workflow,
// dispatcher and audit log into one synchronous call per task.
type Orchestrator struct {
	classifier risk.Classifier
	policies   *policy.Engine
	approvals  *approval.Service
	dispatcher *dispatch.Dispatcher
	log        *audit.Log
	alerts     notify.AlertNotifier
	stats      *metrics.RuntimeMetrics
	cfg        Config

	runID string
	node  string
	now   func() time.Time
}

// New wires an orchestrator. alerts may be nil.
func New(
	classifier risk.Classifier,
	policies *policy.Engine,
	approvals *approval.Service,
	dispatcher *dispatch.Dispatcher,
	log *audit.Log,
	alerts notify.AlertNotifier,
	cfg Config,
) *Orchestrator {
	if cfg.AlertTimeout <= 0 {
		cfg.AlertTimeout = 5 * time.Second
	}
	node, err := os.Hostname()
	if err != nil {
		node = "unknown"
	}
	return &Orchestrator{
		classifier: classifier,
		policies:   policies,
		approvals:  approvals,
		dispatcher: dispatcher,
		log:        log,
		alerts:     alerts,
		cfg:        cfg,
		runID:      uuid.NewString(),
		node:       node,
		now:        time.Now,
	}
}

// WithMetrics attaches a runtime metrics recorder. A nil recorder is a no-op.
func (o *Orchestrator) WithMetrics(stats *metrics.RuntimeMetrics) *Orchestrator {
	o.stats = stats
	return o
}

// Submit runs one task through the full gate. Exactly one ExecutionRecord
// is appended and returned for every call that completes; the only errors
// that escape are a cancelled approval wait (the ticket stays PENDING and
// resumable) and an audit write failure, which aborts the submission rather
// than report an unrecorded outcome.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (audit.Record, error) {
	submittedAt := o.now().UTC()

	t := req.Task
	t.Requester = req.Requester
	t.SubmittedAt = submittedAt

	record := audit.Record{
		Task:        t,
		TaskText:    t.CommandText(),
		Requester:   req.Requester,
		DryRun:      req.DryRun,
		SubmittedAt: submittedAt,
		RunID:       o.runID,
		Node:        o.node,
	}

	tier := o.classifier.Classify(t)
	record.RiskTier = tier

	decision := o.policies.Evaluate(policy.Input{
		TaskText:  t.CommandText(),
		RiskTier:  tier,
		Requester: req.Requester,
	})
	record.PolicyRule = decision.RuleName

	action := decision.Action
	reason := decision.Reason
	if o.cfg.HighRiskOverride && tier == risk.TierHigh && action == policy.ActionAllow {
		action = policy.ActionRequireApproval
		reason = "high risk tier overrides allow; approval required"
	}

	switch action {
	case policy.ActionDeny:
		record.Status = audit.StatusSkipped
		record.Error = reason
		return o.finish(ctx, record)

	case policy.ActionRequireApproval:
		outcome, ticket, err := o.approvals.RequestApproval(ctx, approval.Request{
			TaskKey:   t.Key(),
			TaskText:  t.CommandText(),
			RiskTier:  tier,
			Reason:    reason,
			Requester: req.Requester,
		})
		if err != nil {
			if errors.Is(err, approval.ErrDuplicatePending) {
				record.Status = audit.StatusBlocked
				record.Error = err.Error()
				return o.finish(ctx, record)
			}
			if ctx.Err() != nil {
				// Shutdown mid-wait: no record, the ticket remains
				// PENDING for a later cycle.
				return audit.Record{}, fmt.Errorf("approval wait abandoned: %w", err)
			}
			record.Status = audit.StatusBlocked
			record.Error = fmt.Sprintf("approval workflow failed: %v", err)
			return o.finish(ctx, record)
		}

		record.TicketID = ticket.ID
		record.ApprovalOutcome = outcome
		if outcome != approval.OutcomeApproved {
			record.Status = audit.StatusBlocked
			record.Error = BlockedMessage
			return o.finish(ctx, record)
		}
	}

	if req.DryRun {
		record.Status = audit.StatusSkipped
		record.Error = DryRunMessage
		return o.finish(ctx, record)
	}

	result := o.dispatcher.Dispatch(ctx, t)
	record.Result = result.Output
	record.Error = result.Error
	record.ElapsedMS = result.Elapsed.Milliseconds()
	if result.Status == dispatch.StatusSuccess {
		record.Status = audit.StatusSuccess
	} else {
		record.Status = audit.StatusFailed
	}

	return o.finish(ctx, record)
}

// finish stamps and appends the record, then fires the failure alert when
// needed. Alert delivery is best-effort and never alters the record.
func (o *Orchestrator) finish(ctx context.Context, record audit.Record) (audit.Record, error) {
	record.ExecutedAt = o.now().UTC()

	if err := o.log.Append(record); err != nil {
		return audit.Record{}, fmt.Errorf("audit append failed: %w", err)
	}

	if _, err := o.stats.RecordExecution(record, nil); err != nil {
		slog.Warn("metrics persist failed", "error", err)
	}

	if record.Status == audit.StatusFailed && o.alerts != nil {
		alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.AlertTimeout)
		defer cancel()
		alert := notify.FailureAlert{
			Task:       record.TaskText,
			Error:      record.Error,
			RunID:      record.RunID,
			Node:       record.Node,
			ExecutedAt: record.ExecutedAt,
		}
		err := o.alerts.NotifyFailure(alertCtx, alert)
		if err != nil {
			slog.Warn("failure alert delivery failed", "task", record.TaskText, "error", err)
		}
		if _, merr := o.stats.RecordAlertSend(err == nil); merr != nil {
			slog.Warn("metrics persist failed", "error", merr)
		}
	}

	return record, nil
}

// RunID identifies this orchestrator process for audit correlation.
func (o *Orchestrator) RunID() string { return o.runID }

// Node is the hostname stamped on records.
func (o *Orchestrator) Node() string { return o.node }

// Resolve forwards an inbound reviewer decision to the approval workflow.
func (o *Orchestrator) Resolve(res approval.Resolution) (approval.Ticket, bool, error) {
	return o.approvals.Resolve(res)
}
