package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/newhook/tidybot/internal/config"
	"github.com/newhook/tidybot/internal/logging"
	"github.com/newhook/tidybot/internal/report"
	tbsignal "github.com/newhook/tidybot/internal/signal"
	"github.com/spf13/cobra"
)

// errReported is returned after a command already printed its own message.
var errReported = errors.New("reported")

var (
	// rootCtx holds the signal-cancellable context for the application
	rootCtx    context.Context
	rootCancel context.CancelFunc

	// cfg is the loaded configuration, set before any subcommand runs.
	cfg *config.Config

	flagVerbose bool
	flagConfig  string
	flagDir     string
)

var rootCmd = &cobra.Command{
	Use:           "tidybot",
	Short:         "Detect flaky tests in GitHub repositories",
	Long:          `tidybot downloads the logs of recent failed GitHub Actions runs, extracts the failing tests and ranks them by how flaky they look.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = tbsignal.WithSignalCancel(context.Background())

		dir, err := stateRoot()
		if err != nil {
			return err
		}
		if err := logging.Init(dir, logging.Options{Verbose: flagVerbose}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		path := flagConfig
		if path == "" {
			path = config.DefaultPath(dir)
		}
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Debug("command started", "command", cmd.CommandPath(), "config", path)
		return nil
	},
}

// finish releases the root context and log file. It runs after every
// command, including ones that fail.
func finish() {
	if rootCancel != nil {
		rootCancel()
	}
	_ = logging.Close()
}

// Execute runs the root command and prints any error not yet reported.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, report.Failure("Error: "+err.Error()))
	}
	return err
}

// GetContext returns the root context that is cancelled on SIGINT/SIGTERM.
func GetContext() context.Context {
	if rootCtx == nil {
		return context.Background()
	}
	return rootCtx
}

// stateRoot is the directory holding .tidybot, the working directory unless --dir is set.
func stateRoot() (string, error) {
	if flagDir != "" {
		return flagDir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}

func init() {
	cobra.OnFinalize(finish)

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output and debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .tidybot/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "directory holding .tidybot state (default: current directory)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
