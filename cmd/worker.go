package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/booking-ledger/internal/poller"
	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that keep the payment ledger in sync with the gateway.`,
}

// Poller worker command
var pollerWorkerCmd = &cobra.Command{
	Use:   "poller",
	Short: "Start the pending payment poller",
	Long:  `Poll the gateway for payments and refunds still pending after the webhook window and apply their final state`,
	Run: func(cmd *cobra.Command, args []string) {
		startPollerWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	batchSize    int
	interval     time.Duration
)

func startPollerWorker() {
	cfg, err := loadValidConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg := logger.LoggerWrapper()
	ctx := context.Background()

	deps, err := initializeDependencies(ctx, cfg, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	// Use command line flags if provided, otherwise use config values
	pollerConfig := poller.Config{
		Interval:     getDurationFlag(interval, cfg.Poller.Interval),
		StaleAfter:   cfg.Poller.StaleAfter,
		ExpireAfter:  cfg.Poller.ExpireAfter,
		BatchSize:    getIntFlag(batchSize, cfg.Poller.BatchSize),
		MaxWorkers:   getIntFlag(maxWorkers, cfg.Poller.MaxWorkers),
		JobQueueSize: getIntFlag(jobQueueSize, cfg.Poller.JobQueueSize),
		CheckTimeout: cfg.Gateway.RequestTimeout * 3,
	}

	lg.Info("starting poller worker",
		"interval", pollerConfig.Interval,
		"stale_after", pollerConfig.StaleAfter,
		"expire_after", pollerConfig.ExpireAfter,
		"max_workers", pollerConfig.MaxWorkers,
		"job_queue_size", pollerConfig.JobQueueSize)

	p := poller.New(deps.LedgerRepo, deps.Gateway, deps.Processor, pollerConfig, lg)

	p.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lg.Info("poller worker is running. Press Ctrl+C to stop.")

	// wait for shutdown signal
	sig := <-sigChan
	lg.Info("received signal, shutting down poller worker", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		p.Stop()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		lg.Info("poller worker shutdown complete")
	case <-shutdownCtx.Done():
		lg.Warn("shutdown timeout reached, forcing exit")
	}
	deps.Close(shutdownCtx)
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	pollerWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	pollerWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	pollerWorkerCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rows fetched per sweep (overrides config)")
	pollerWorkerCmd.Flags().DurationVar(&interval, "interval", 0, "Time between sweeps (overrides config)")

	workerCmd.AddCommand(pollerWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
