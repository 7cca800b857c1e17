package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/newhook/tidybot/internal/archive"
	"github.com/newhook/tidybot/internal/logging"
	"github.com/newhook/tidybot/internal/logparser"
	"github.com/newhook/tidybot/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	flagScanTotalRuns int
	flagScanBranch    string
	flagScanCommit    string
	flagScanTimestamp string
	flagScanOutput    string
	flagScanTop       int
)

var scanCmd = &cobra.Command{
	Use:   "scan <file>...",
	Short: "Scan local log files or run log archives for flaky tests",
	Long: `Scan treats every file as the logs of one failed run. Zip archives as
downloaded from GitHub Actions are expanded; other files are read as plain text.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&flagScanTotalRuns, "total-runs", 0, "total runs to score against (default: number of files)")
	scanCmd.Flags().StringVar(&flagScanBranch, "branch", "", "branch recorded on every failure")
	scanCmd.Flags().StringVar(&flagScanCommit, "commit", "", "commit SHA recorded on every failure")
	scanCmd.Flags().StringVar(&flagScanTimestamp, "timestamp", "", "RFC3339 time recorded on every failure (default: file modification time)")
	scanCmd.Flags().StringVarP(&flagScanOutput, "output", "o", "", "output format: table or json (default table)")
	scanCmd.Flags().IntVar(&flagScanTop, "top", 0, "number of tests to show (default 10)")
}

func runScan(cmd *cobra.Command, args []string) error {
	output, err := resolveOutput(flagScanOutput)
	if err != nil {
		return err
	}
	extractor, err := newExtractor()
	if err != nil {
		return err
	}

	var timestamp time.Time
	if flagScanTimestamp != "" {
		timestamp = logparser.ParseTimestamp(flagScanTimestamp)
		if timestamp.IsZero() {
			return fmt.Errorf("invalid timestamp %q: use RFC3339, e.g. 2026-01-02T15:04:05Z", flagScanTimestamp)
		}
	}

	runs := make([]pipeline.LocalRun, 0, len(args))
	for i, p := range args {
		run, err := loadLocalRun(p, int64(i+1), timestamp)
		if err != nil {
			return err
		}
		runs = append(runs, run)
	}

	totalRuns := flagScanTotalRuns
	if totalRuns == 0 {
		totalRuns = len(args)
	}

	logging.Info("scanning local logs", "files", len(args), "total_runs", totalRuns, "dialects", extractor.Dialects())
	result, err := pipeline.ScanRuns(extractor, runs, totalRuns, time.Now())
	if err != nil {
		return err
	}
	logging.Info("scan finished", "failures", result.Failures, "flaky", len(result.Tests))

	fmt.Fprintf(cmd.ErrOrStderr(), "✔ Scanned %d files (%d failures)\n", len(args), result.Failures)
	return writeResults(cmd.OutOrStdout(), cmd.ErrOrStderr(), result.Tests, output, resolveTop(flagScanTop))
}

// loadLocalRun reads one file as a run. Without a timestamp the file's
// modification time stands in for the run timestamp.
func loadLocalRun(p string, runID int64, timestamp time.Time) (pipeline.LocalRun, error) {
	info, err := os.Stat(p)
	if err != nil {
		return pipeline.LocalRun{}, fmt.Errorf("failed to read %s: %w", p, err)
	}
	if timestamp.IsZero() {
		timestamp = info.ModTime()
	}
	docs, err := archive.ReadFile(p)
	if err != nil {
		return pipeline.LocalRun{}, err
	}
	return pipeline.LocalRun{
		Run: logparser.RunContext{
			RunID:     runID,
			CommitSHA: flagScanCommit,
			Branch:    flagScanBranch,
			Timestamp: timestamp,
		},
		Documents: docs,
	}, nil
}
