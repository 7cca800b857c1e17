package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/newhook/tidybot/internal/analyzer"
	"github.com/newhook/tidybot/internal/config"
	"github.com/newhook/tidybot/internal/github"
	"github.com/newhook/tidybot/internal/logcache"
	"github.com/newhook/tidybot/internal/logging"
	"github.com/newhook/tidybot/internal/logparser"
	"github.com/newhook/tidybot/internal/pipeline"
	"github.com/newhook/tidybot/internal/report"
	"github.com/spf13/cobra"
)

var (
	flagAnalyzeDays        string
	flagAnalyzeOutput      string
	flagAnalyzeTop         int
	flagAnalyzeConcurrency int
	flagAnalyzeNoCache     bool
)

// newGitHubClient is replaced in tests.
var newGitHubClient = func(opts github.Options) github.ClientInterface {
	return github.NewClient(opts)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <owner/repo>",
	Short: "Analyze a GitHub repository for flaky tests",
	Long: `Analyze downloads the logs of the failed workflow runs of the last days,
extracts the failing tests and ranks them by flakiness score.

GitHub access goes through the gh CLI; authenticate with "gh auth login" or GITHUB_TOKEN.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&flagAnalyzeDays, "days", "d", "", "number of days to analyze (default 30)")
	analyzeCmd.Flags().StringVarP(&flagAnalyzeOutput, "output", "o", "", "output format: table or json (default table)")
	analyzeCmd.Flags().IntVar(&flagAnalyzeTop, "top", 0, "number of tests to show (default 10)")
	analyzeCmd.Flags().IntVar(&flagAnalyzeConcurrency, "concurrency", 0, "parallel log downloads (default 4)")
	analyzeCmd.Flags().BoolVar(&flagAnalyzeNoCache, "no-cache", false, "do not read or write the log cache")
}

// resolveOutput returns the effective output format.
func resolveOutput(flag string) (string, error) {
	if flag == "" {
		return cfg.Analyze.GetOutput(), nil
	}
	switch strings.ToLower(flag) {
	case config.OutputTable:
		return config.OutputTable, nil
	case config.OutputJSON:
		return config.OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q: use table or json", flag)
	}
}

func resolveTop(flag int) int {
	if flag > 0 {
		return flag
	}
	return cfg.Analyze.GetTop()
}

// newExtractor builds the extractor from the configured dialect list.
func newExtractor() (*logparser.Extractor, error) {
	dialects, unknown := logparser.DialectsByName(cfg.LogParser.GetDialects())
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown log dialects in config: %s", strings.Join(unknown, ", "))
	}
	return logparser.NewExtractor(dialects...), nil
}

// openLogCache returns nil when caching is disabled. A cache database that
// cannot be opened degrades to a memory-only cache.
func openLogCache(cmd *cobra.Command, noCache bool) *logcache.Cache {
	if noCache || !cfg.Cache.IsEnabled() {
		return nil
	}
	ctx := GetContext()

	dir, err := stateRoot()
	if err != nil {
		logging.Warn("log cache disabled", "error", err)
		return logcache.New(nil, cfg.Cache.GetMemoryTTL())
	}

	store, err := logcache.OpenStore(ctx, filepath.Join(dir, logging.ConfigDir, logcache.DBFileName), cfg.Cache.GetTTL())
	if err != nil {
		logging.Warn("log cache database unavailable", "error", err)
		if flagVerbose {
			fmt.Fprintln(cmd.ErrOrStderr(), report.Warning("Log cache unavailable: "+err.Error()))
		}
		return logcache.New(nil, cfg.Cache.GetMemoryTTL())
	}
	if removed, err := store.Prune(ctx); err != nil {
		logging.Warn("log cache prune failed", "error", err)
	} else if removed > 0 {
		logging.Debug("pruned log cache", "removed", removed)
	}
	return logcache.New(store, cfg.Cache.GetMemoryTTL())
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	repo, err := github.ParseRepository(args[0])
	if err != nil {
		logging.Warn("invalid repository", "input", args[0], "error", err)
		fmt.Fprintln(stderr, report.Failure("Invalid repository format. Use: owner/repo"))
		return errReported
	}

	days := cfg.Analyze.GetDays()
	if flagAnalyzeDays != "" {
		days, err = strconv.Atoi(flagAnalyzeDays)
		if err != nil || days <= 0 {
			fmt.Fprintln(stderr, report.Failure("Invalid days value. Must be a positive number."))
			return errReported
		}
	}

	output, err := resolveOutput(flagAnalyzeOutput)
	if err != nil {
		return err
	}
	extractor, err := newExtractor()
	if err != nil {
		return err
	}

	concurrency := flagAnalyzeConcurrency
	if concurrency <= 0 {
		concurrency = cfg.Analyze.GetConcurrency()
	}

	analysisID := logging.NewAnalysisID()
	log := logging.ForAnalysis(analysisID)
	log.Info("analysis started", "repo", repo.String(), "days", days, "dialects", extractor.Dialects())

	opts := pipeline.Options{
		Repo:        repo,
		Since:       time.Now().AddDate(0, 0, -days),
		MaxRuns:     cfg.GitHub.GetMaxRuns(),
		Concurrency: concurrency,
		Extractor:   extractor,
		Observer:    progressObserver(stderr),
	}
	if cache := openLogCache(cmd, flagAnalyzeNoCache); cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				log.Warn("failed to close log cache", "error", err)
			}
		}()
		opts.Cache = cache
	}

	client := newGitHubClient(github.Options{
		RequestsPerSecond: cfg.GitHub.GetRequestsPerSecond(),
		Burst:             cfg.GitHub.GetBurst(),
	})

	fmt.Fprintln(stderr, report.Note(fmt.Sprintf("Fetching workflow runs for %s (last %d days)...", repo, days)))
	result, err := pipeline.Analyze(ctx, client, opts)
	if err != nil {
		log.Error("analysis failed", "error", err)
		fmt.Fprintln(stderr, report.Failure("Analysis failed"))
		return err
	}

	if len(result.FailedRuns) == 0 {
		fmt.Fprintln(stdout, report.Success("✅ No failed runs to analyze!"))
		return nil
	}

	printSkipped(stderr, result)
	log.Info("analysis finished", "flaky", len(result.Tests))
	return writeResults(stdout, stderr, result.Tests, output, resolveTop(flagAnalyzeTop))
}

// progressObserver prints one line per listing and, in verbose mode, per run.
func progressObserver(w io.Writer) pipeline.Observer {
	return func(e pipeline.Event) {
		switch e.Kind {
		case pipeline.EventRunsListed:
			parts := make([]string, len(e.Result.StatusCounts))
			for i, sc := range e.Result.StatusCounts {
				parts[i] = fmt.Sprintf("%s: %d", sc.Conclusion, sc.Count)
			}
			fmt.Fprintf(w, "✔ Found %d workflow runs (%s)\n", len(e.Result.Runs), strings.Join(parts, ", "))
			if e.Total > 0 {
				fmt.Fprintf(w, "Analyzing logs from %d failed runs...\n", e.Total)
			}
		case pipeline.EventRunScanned:
			if flagVerbose {
				fmt.Fprintf(w, "  (%d/%d) run %d scanned\n", e.Done, e.Total, e.Run.ID)
			}
		case pipeline.EventRunSkipped:
			if flagVerbose {
				fmt.Fprintf(w, "  (%d/%d) run %d skipped: %v\n", e.Done, e.Total, e.Run.ID, e.Err)
			}
		}
	}
}

func printSkipped(w io.Writer, result *pipeline.Result) {
	if len(result.Skipped) == 0 {
		fmt.Fprintf(w, "✔ Analyzed %d workflow runs\n", result.Analyzed())
		return
	}

	restricted := 0
	for _, s := range result.Skipped {
		if pipeline.IsUnavailable(s.Reason) {
			restricted++
		}
	}

	fmt.Fprintln(w, report.Warning(fmt.Sprintf("⚠ Analyzed %d runs (%d skipped due to access restrictions or unreadable logs)",
		result.Analyzed(), len(result.Skipped))))
	if restricted > 0 {
		fmt.Fprintln(w, report.Warning("\n⚠️  Note: Some workflow logs require authentication to access.\n"+
			"   For full access, set the GITHUB_TOKEN environment variable (or run gh auth login)\n"+
			"   or use repos you have admin access to.\n"))
	}
}

// writeResults renders tests in the requested format. In JSON mode stdout
// carries nothing but the document.
func writeResults(stdout, stderr io.Writer, tests []analyzer.FlakyTest, output string, top int) error {
	if len(tests) == 0 {
		fmt.Fprintln(stdout, report.Success("✅ No flaky tests detected!"))
		return nil
	}

	banner := report.Warning(fmt.Sprintf("\n🚨 Found %d flaky tests:\n", len(tests)))
	opts := report.Options{Top: top}
	if output == config.OutputJSON {
		fmt.Fprintln(stderr, banner)
		return report.WriteJSON(stdout, tests, opts)
	}

	fmt.Fprintln(stdout, banner)
	return report.WriteTable(stdout, tests, opts)
}
