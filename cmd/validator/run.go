package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yourusername/strategy-validator/internal/models"
	"github.com/yourusername/strategy-validator/internal/validation"
)

var (
	runStrategy string
	runMaxTests int
)

func init() {
	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "", "Strategy ID to validate (overrides config)")
	runCmd.Flags().IntVar(&runMaxTests, "max-tests", 0, "Maximum number of test runs (overrides config)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one validation session in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runForeground(ctx)
	},
}

func runForeground(ctx context.Context) error {
	sessionCfg, err := validation.FromConfig(cfg)
	if err != nil {
		return err
	}
	if runStrategy != "" {
		sessionCfg.StrategyID = runStrategy
	}
	if runMaxTests > 0 {
		sessionCfg.MaxTotalTests = runMaxTests
	}

	id, err := manager.Start(validation.WithActor(ctx, "cli"), sessionCfg)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	updates, unsubscribe, err := manager.Subscribe(id)
	if err != nil {
		return err
	}
	defer unsubscribe()

	fmt.Printf("Validating %s (session %s)\n", sessionCfg.StrategyID, id)

	printed := make(map[uuid.UUID]bool)
	for {
		select {
		case <-ctx.Done():
			if err := manager.Stop(validation.WithActor(context.Background(), "cli"), id); err != nil {
				return err
			}
			snap, err := manager.Status(id)
			if err != nil {
				return err
			}
			printSummary(snap)
			return nil

		case snap := <-updates:
			printRuns(snap, printed)
			if snap.Status.IsTerminal() {
				printSummary(snap)
				return nil
			}
		}
	}
}

// printRuns prints one line per run that finished since the last update.
func printRuns(snap models.SessionSnapshot, printed map[uuid.UUID]bool) {
	for i := len(snap.History) - 1; i >= 0; i-- {
		run := snap.History[i]
		if printed[run.ID] {
			continue
		}
		printed[run.ID] = true
		fmt.Printf("  %s\n", validation.Insight(run, snap.Config.Criteria))
	}
}

func printSummary(snap models.SessionSnapshot) {
	stats := snap.Stats
	fmt.Println()
	fmt.Printf("Session %s finished: %s\n", snap.ID, snap.Status)
	fmt.Printf("  Runs executed:      %d\n", snap.RunsExecuted)
	fmt.Printf("  Passed / failed:    %d / %d\n", stats.PassedRuns, stats.FailedRuns)
	fmt.Printf("  Consecutive passes: %d\n", stats.ConsecutivePasses)
	fmt.Printf("  Avg sharpe:         %.2f (best %.2f, worst %.2f)\n", stats.AvgSharpe, stats.BestSharpe, stats.WorstSharpe)
	fmt.Printf("  Avg return:         %.2f%%\n", stats.AvgReturn*100)
	fmt.Printf("  Learning progress:  %.0f%%\n", snap.LearningProgress)
	fmt.Printf("  Adjustments made:   %d\n", snap.AdjustmentsMade)
	if snap.LastError != "" {
		fmt.Printf("  Last error:         %s\n", snap.LastError)
	}
	fmt.Printf("  Duration:           %s\n", snap.UpdatedAt.Sub(snap.CreatedAt).Round(time.Second))
}
