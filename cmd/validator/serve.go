package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/strategy-validator/internal/scheduler"
	"github.com/yourusername/strategy-validator/internal/server"
	"github.com/yourusername/strategy-validator/internal/validation"
)

const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session control API and scheduled revalidation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	defaults, err := validation.FromConfig(cfg)
	if err != nil {
		return err
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	api := server.NewServer(server.Config{
		ServiceName:  cfg.App.Name,
		Version:      Version,
		Commit:       GitCommit,
		Address:      cfg.Server.Address,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		MetricsPath:  metricsPath,
		Logger:       appLog,
		Backtests:    backtests,
		Defaults:     defaults,
	}, manager)

	var revalidation *scheduler.Scheduler
	if cfg.Revalidation.Enabled {
		revalidation = scheduler.NewScheduler(manager, appLog)
		if err := revalidation.ScheduleRevalidation(cfg.Revalidation.Schedule, defaults); err != nil {
			return fmt.Errorf("failed to schedule revalidation: %w", err)
		}
		if err := revalidation.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		appLog.WithField("next_run", revalidation.NextRun()).Info("Revalidation scheduled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.ListenAndServe(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		api.SetReady(false)
		if revalidation != nil {
			revalidation.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(validation.WithActor(context.Background(), "shutdown"), shutdownGrace)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop sessions: %w", err)
		}
		appLog.Info("Validation sessions stopped")
		return nil
	})

	api.SetReady(true)
	return g.Wait()
}
