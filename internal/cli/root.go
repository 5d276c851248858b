package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/relihub/internal/control"
	"github.com/vietddude/relihub/internal/core/config"
)

const defaultConfigPath = "config.yaml"

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "relihub",
	Short: "Automation reliability hub",
	Long: `relihub turns agent tool output into work item transitions and recovers
failed upstream workflow tasks through a tiered fallback chain, recording every
decision in an audit log.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, "config file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig reads .env and the config file. A missing default config file
// falls back to built-in defaults.
func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) && cfgPath == defaultConfigPath {
		return config.Default(), nil
	}
	return cfg, err
}

func logLevel(cfg *config.AppConfig) slog.Level {
	if isDebug || cfg.Logging.Level == "debug" {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// setupLogging configures the default logger for long-running commands.
func setupLogging(cfg *config.AppConfig) {
	level := logLevel(cfg)
	if cfg.Logging.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return
	}
	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
}

// setupStderrLogging keeps stdout clean for commands that print results.
func setupStderrLogging(cfg *config.AppConfig, w io.Writer) {
	level := logLevel(cfg)
	if cfg.Logging.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
		return
	}
	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))
}

// openHub loads config, configures stderr logging and builds a hub for a
// one-shot command.
func openHub(ctx context.Context, stderr io.Writer) (*control.Hub, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	setupStderrLogging(cfg, stderr)
	return control.New(ctx, cfg, slog.Default())
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
