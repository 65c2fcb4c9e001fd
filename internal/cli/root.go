// Package cli wires the cobra commands for the review bot.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/elipriaulx/azdo-review-bot/internal/azdo"
	"github.com/elipriaulx/azdo-review-bot/internal/bot"
	"github.com/elipriaulx/azdo-review-bot/internal/config"
	"github.com/elipriaulx/azdo-review-bot/internal/history"
	"github.com/elipriaulx/azdo-review-bot/internal/ledger"
	"github.com/elipriaulx/azdo-review-bot/internal/review"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "azdo-review-bot",
	Short: "Automated AI code review for Azure DevOps pull requests",
	Long: `azdo-review-bot polls Azure DevOps repositories for open pull
requests, stages each new revision's changed files into a scratch
workspace, runs an external AI reviewer against it, and posts the
extracted findings back as comment threads. Each revision is reviewed
at most once, tracked in a crash-safe local ledger.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./azdo-review-bot.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.AddCommand(serveCmd, runCmd, historyCmd, versionCmd)
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// buildBot loads and validates configuration and assembles the review
// bot with its collaborators. The returned cleanup closes the history
// store when one is open.
func buildBot() (*bot.Bot, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	client := azdo.New(cfg.OrganizationURL, cfg.PersonalAccessToken)
	reviews := review.NewService(cfg.Reviewer.Command, cfg.Reviewer.Timeout,
		cfg.Reviewer.MaxAttempts, cfg.Reviewer.RetryBaseDelay)
	ledgers := ledger.NewStore(cfg.LedgerPath)

	cleanup := func() {}
	var hist *history.Store
	if cfg.HistoryPath != "" {
		hist, err = history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open history store: %w", err)
		}
		cleanup = func() { _ = hist.Close() }
	}

	return bot.New(cfg, client, reviews, ledgers, hist), cleanup, nil
}
