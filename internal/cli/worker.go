package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/relihub/internal/control"
	"github.com/vietddude/relihub/internal/core/worker"
)

var workerPollWait time.Duration

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Drain the direct job queue, executing jobs on the local service or task API",
	Run:   runWorker,
}

func init() {
	workerCmd.Flags().DurationVar(&workerPollWait, "poll-wait", time.Second, "how long each queue poll blocks")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	ctx, cancel := signalContext()
	defer cancel()

	hub, err := control.New(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize hub", "error", err)
		os.Exit(1)
	}
	defer hub.Close(context.Background())

	w, err := hub.QueueWorker(worker.QueueWorkerConfig{PollWait: workerPollWait})
	if err != nil {
		slog.Error("Cannot start queue worker", "error", err)
		os.Exit(1)
	}
	if err := w.Run(ctx); err != nil {
		slog.Error("Queue worker failed", "error", err)
		os.Exit(1)
	}
}
