package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/akrambak/aegis-planner/internal/approval"
	"github.com/akrambak/aegis-planner/internal/audit"
	"github.com/akrambak/aegis-planner/internal/config"
	"github.com/akrambak/aegis-planner/internal/gateway"
	"github.com/akrambak/aegis-planner/internal/plane"
	"github.com/akrambak/aegis-planner/internal/state"
	"github.com/akrambak/aegis-planner/internal/sweep"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Aegis gateway daemon",
		RunE:  runServe,
	}
}

// statePlanner records run state after every gateway submission.
type statePlanner struct {
	inner  *plane.Orchestrator
	states *state.Manager
}

func (p *statePlanner) Submit(ctx context.Context, req plane.SubmitRequest) (audit.Record, error) {
	record, err := p.inner.Submit(ctx, req)
	if err == nil {
		if serr := p.states.TouchRun(p.inner.RunID(), p.inner.Node(), record); serr != nil {
			slog.Warn("run state update failed", "error", serr)
		}
	}
	return record, err
}

func (p *statePlanner) Resolve(res approval.Resolution) (approval.Ticket, bool, error) {
	return p.inner.Resolve(res)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := buildStack(cfg)
	if err != nil {
		return err
	}

	if err := st.states.SaveRunState(state.RunState{
		RunID:     st.orchestrator.RunID(),
		Node:      st.orchestrator.Node(),
		StartedAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("run state save failed", "error", err)
	}

	var sweeper *sweep.Sweeper
	if cfg.Sweep.Enabled {
		sweeper, err = sweep.New(st.approvals, cfg.Sweep.Schedule)
		if err != nil {
			return err
		}
		if err := sweeper.Start(); err != nil {
			slog.Warn("sweep failed to start", "error", err)
			sweeper = nil
		}
	}

	errCh := make(chan error, 1)
	planner := &statePlanner{inner: st.orchestrator, states: st.states}
	gatewayServer := gateway.New(cfg.Gateway, planner, st.log)
	go func() {
		if err := gatewayServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server failed: %w", err)
		}
	}()

	fmt.Printf("Aegis serving. Gateway: http://%s\nPress Ctrl+C to stop.\n", gatewayServer.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("server component failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down")
	if sweeper != nil {
		sweeper.Stop()
	}
	if err := gatewayServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("gateway shutdown failed", "error", err)
	}

	return runErr
}
