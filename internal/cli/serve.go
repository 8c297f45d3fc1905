package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/choreboard/choreboard/internal/recurring"
	"github.com/choreboard/choreboard/internal/scheduler"
	"github.com/choreboard/choreboard/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		Long: `Run the HTTP API together with the scheduled jobs: recurring chore
generation, backups, assignment expiry and rate limit sweeping.

Example:
  choreboard serve --config /etc/choreboard.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	e, err := setup(opts, true)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, e.db, e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	runner := scheduler.New(e.logger, jobs(e, srv)...)
	runner.Start(ctx)
	defer runner.Stop()

	httpServer := &http.Server{
		Addr:         e.cfg.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("choreboard listening", "addr", e.cfg.Addr, "environment", e.cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	e.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func jobs(e *env, srv *server.Server) []scheduler.Job {
	cfg := e.cfg
	list := []scheduler.Job{
		{
			Name:       "generate_recurring",
			Interval:   cfg.Scheduler.GenerateInterval,
			RunAtStart: true,
			Run: func(ctx context.Context) error {
				res, err := srv.Generator().Run(ctx, recurring.Options{})
				if err != nil {
					return err
				}
				if len(res.Generated) > 0 || len(res.Failed) > 0 {
					e.logger.Info("recurring generation",
						"generated", len(res.Generated), "skipped", res.Skipped, "failed", len(res.Failed))
				}
				return nil
			},
		},
		{
			Name:     "backup",
			Interval: cfg.Backup.Interval,
			Run:      srv.BackupManager().RunScheduled,
		},
		{
			Name:     "rate_limit_sweep",
			Interval: cfg.RateLimit.SweepEvery,
			Run: func(context.Context) error {
				srv.LimitStore().Sweep(time.Now())
				return nil
			},
		},
	}
	if cfg.Scheduler.ExpireAssignments {
		list = append(list, scheduler.Job{
			Name:     "expire_assignments",
			Interval: cfg.Scheduler.ExpireInterval,
			Run: func(ctx context.Context) error {
				n, err := srv.Chores().ExpireOverdue(ctx)
				if n > 0 {
					e.logger.Info("assignments expired", "count", n)
				}
				return err
			},
		})
	}
	return list
}
