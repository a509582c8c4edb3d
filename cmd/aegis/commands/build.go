package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/akrambak/aegis-planner/internal/approval"
	"github.com/akrambak/aegis-planner/internal/audit"
	"github.com/akrambak/aegis-planner/internal/config"
	"github.com/akrambak/aegis-planner/internal/dispatch"
	"github.com/akrambak/aegis-planner/internal/metrics"
	"github.com/akrambak/aegis-planner/internal/notify"
	"github.com/akrambak/aegis-planner/internal/plane"
	"github.com/akrambak/aegis-planner/internal/policy"
	"github.com/akrambak/aegis-planner/internal/risk"
	"github.com/akrambak/aegis-planner/internal/state"
)

// stack bundles the wired control-plane components a command needs.
type stack struct {
	cfg          *config.Config
	log          *audit.Log
	approvals    *approval.Service
	orchestrator *plane.Orchestrator
	states       *state.Manager
}

// notifier is the union of the approval and alert channels; every
// configured channel implements both sides.
type notifier interface {
	approval.Notifier
	notify.AlertNotifier
}

// buildStack wires classifier, policy engine, approval workflow, dispatcher,
// audit log and notifier from config.
func buildStack(cfg *config.Config) (*stack, error) {
	baseDir := cfg.Storage.Dir

	log := audit.NewLog(baseDir)

	channel, err := buildNotifier(cfg)
	if err != nil {
		return nil, err
	}

	approvals := approval.NewService(log, channel, approval.Config{
		Timeout:      time.Duration(cfg.Approval.TimeoutSeconds) * time.Second,
		PollInterval: time.Duration(cfg.Approval.PollIntervalSeconds) * time.Second,
	})

	hooks := dispatch.NewWebhookHooks(cfg.Dispatch.WorkflowHooks, 0)
	dispatcher := dispatch.New(dispatch.Config{
		AllowList:       cfg.Dispatch.AllowList,
		CommandTimeout:  time.Duration(cfg.Dispatch.TimeoutSeconds) * time.Second,
		CodeInterpreter: cfg.Dispatch.CodeInterpreter,
		WorkDir:         cfg.Dispatch.WorkDir,
	}, hooks)

	orchestrator := plane.New(
		risk.NewClassifier(cfg.Risk.Matrix),
		policy.NewEngine(cfg.Policy.Rules),
		approvals,
		dispatcher,
		log,
		channel,
		plane.Config{HighRiskOverride: cfg.Policy.HighRiskOverride},
	).WithMetrics(metrics.NewRuntimeMetrics(baseDir))

	return &stack{
		cfg:          cfg,
		log:          log,
		approvals:    approvals,
		orchestrator: orchestrator,
		states:       state.NewManager(baseDir),
	}, nil
}

// buildNotifier picks the first enabled channel: slack, then telegram, then
// the generic webhook. No channel configured means silent tickets, which is
// fine for CLI-only use where the reviewer runs `aegis approval list`.
func buildNotifier(cfg *config.Config) (notifier, error) {
	if cfg.Channels.Slack.Enabled {
		if cfg.Channels.Slack.ApprovalWebhook == "" && cfg.Channels.Slack.FailureWebhook == "" {
			return nil, fmt.Errorf("slack channel enabled but no webhook configured")
		}
		return notify.NewSlackNotifier(cfg.Channels.Slack.ApprovalWebhook, cfg.Channels.Slack.FailureWebhook), nil
	}
	if cfg.Channels.Telegram.Enabled {
		n, err := notify.NewTelegramNotifier(cfg.Channels.Telegram.Token, cfg.Channels.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram channel: %w", err)
		}
		return n, nil
	}
	if cfg.Channels.Webhook.Enabled {
		return notify.NewWebhookNotifier(cfg.Channels.Webhook.ApprovalURL, cfg.Channels.Webhook.FailureURL, 0), nil
	}
	slog.Debug("no notification channel configured")
	return notify.Nop{}, nil
}
