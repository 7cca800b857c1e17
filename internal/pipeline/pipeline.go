// Package pipeline runs a flaky test analysis end to end: list workflow runs,
// fetch the logs of failed runs, extract failures and score them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/newhook/tidybot/internal/analyzer"
	"github.com/newhook/tidybot/internal/archive"
	"github.com/newhook/tidybot/internal/github"
	"github.com/newhook/tidybot/internal/logging"
	"github.com/newhook/tidybot/internal/logparser"
	"golang.org/x/sync/errgroup"
)

// ConclusionFailure is the run conclusion whose logs are analyzed.
const ConclusionFailure = "failure"

// inProgress labels runs without a conclusion in status counts.
const inProgress = "in_progress"

// LogCache stores downloaded run log archives.
type LogCache interface {
	Get(ctx context.Context, repo string, runID int64) ([]byte, bool)
	Put(ctx context.Context, repo string, runID int64, data []byte) error
	Delete(ctx context.Context, repo string, runID int64) error
}

// Options configures Analyze.
type Options struct {
	Repo  github.Repository
	Since time.Time
	// MaxRuns caps the listed runs; 0 lists all.
	MaxRuns int
	// Concurrency bounds parallel log downloads. Defaults to 1.
	Concurrency int
	// Extractor defaults to logparser.NewExtractor().
	Extractor *logparser.Extractor
	// Cache is optional.
	Cache    LogCache
	Observer Observer
	// Now anchors recency scoring. Defaults to time.Now.
	Now func() time.Time
}

// StatusCount is the number of runs with one conclusion.
type StatusCount struct {
	Conclusion string
	Count      int
}

// SkippedRun is a failed run whose logs could not be analyzed.
type SkippedRun struct {
	Run    github.WorkflowRun
	Reason error
}

// Result is the outcome of an analysis.
type Result struct {
	Runs []github.WorkflowRun
	// StatusCounts lists conclusions in first-seen order.
	StatusCounts []StatusCount
	FailedRuns   []github.WorkflowRun
	Skipped      []SkippedRun
	// Failures is the number of failure records extracted.
	Failures int
	Tests    []analyzer.FlakyTest
}

// Analyzed returns the number of failed runs whose logs were scanned.
func (r *Result) Analyzed() int {
	return len(r.FailedRuns) - len(r.Skipped)
}

func countStatuses(runs []github.WorkflowRun) []StatusCount {
	var counts []StatusCount
	index := make(map[string]int)
	for _, run := range runs {
		key := run.Conclusion
		if key == "" {
			key = inProgress
		}
		i, ok := index[key]
		if !ok {
			i = len(counts)
			index[key] = i
			counts = append(counts, StatusCount{Conclusion: key})
		}
		counts[i].Count++
	}
	return counts
}

// RunContext returns the context attached to failures found in run's logs.
func RunContext(run github.WorkflowRun) logparser.RunContext {
	return logparser.RunContext{
		RunID:     run.ID,
		CommitSHA: run.HeadSHA,
		Timestamp: run.CreatedAt,
		Branch:    run.HeadBranch,
	}
}

type fetched struct {
	data []byte
	err  error
}

// Analyze lists the repository's runs since opts.Since, downloads the logs of
// failed runs in parallel and scans them in run order. Runs whose logs are
// unavailable or unreadable are reported in Result.Skipped.
func Analyze(ctx context.Context, client github.ClientInterface, opts Options) (*Result, error) {
	extractor := opts.Extractor
	if extractor == nil {
		extractor = logparser.NewExtractor()
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	repo := opts.Repo.String()
	log := logging.With("repo", repo)

	runs, err := client.ListWorkflowRuns(ctx, opts.Repo, opts.Since, opts.MaxRuns)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Runs:         runs,
		StatusCounts: countStatuses(runs),
		Tests:        []analyzer.FlakyTest{},
	}
	for _, run := range runs {
		if run.Conclusion == ConclusionFailure {
			result.FailedRuns = append(result.FailedRuns, run)
		}
	}
	opts.Observer.notify(Event{Kind: EventRunsListed, Total: len(result.FailedRuns), Result: result})
	log.Info("listed runs", "runs", len(runs), "failed", len(result.FailedRuns))

	if len(result.FailedRuns) == 0 {
		return result, nil
	}

	archives, err := fetchAll(ctx, client, opts, result.FailedRuns)
	if err != nil {
		return nil, err
	}

	agg := analyzer.NewAggregator()
	for i, run := range result.FailedRuns {
		err := archives[i].err
		if err == nil {
			var extracted []archive.Document
			extracted, err = archive.ExtractLogs(archives[i].data)
			if err != nil && opts.Cache != nil {
				// An unreadable archive must not be served again.
				if delErr := opts.Cache.Delete(ctx, repo, run.ID); delErr != nil {
					log.Warn("failed to evict cached logs", "run_id", run.ID, "error", delErr)
				}
			}
			if err == nil {
				failures := extractor.ExtractAll(archive.Texts(archive.PreferJobLogs(extracted)), RunContext(run))
				agg.AddAll(failures)
				log.Debug("scanned run", "run_id", run.ID, "documents", len(extracted), "failures", len(failures))
			}
		}
		if err != nil {
			log.Warn("skipping run", "run_id", run.ID, "error", err)
			result.Skipped = append(result.Skipped, SkippedRun{Run: run, Reason: err})
			opts.Observer.notify(Event{Kind: EventRunSkipped, Run: run, Err: err, Done: i + 1, Total: len(result.FailedRuns)})
			continue
		}
		opts.Observer.notify(Event{Kind: EventRunScanned, Run: run, Done: i + 1, Total: len(result.FailedRuns)})
	}

	result.Failures = agg.Failures()
	tests, err := agg.AnalyzeAt(len(runs), now())
	if err != nil {
		return nil, err
	}
	result.Tests = tests

	log.Info("analysis complete",
		"analyzed", result.Analyzed(),
		"skipped", len(result.Skipped),
		"failures", result.Failures,
		"flaky", len(tests))
	return result, nil
}

// fetchAll downloads the archive of every run, consulting the cache first.
// Per-run failures are recorded in the result slot; only cancellation aborts.
func fetchAll(ctx context.Context, client github.ClientInterface, opts Options, runs []github.WorkflowRun) ([]fetched, error) {
	repo := opts.Repo.String()
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}

	results := make([]fetched, len(runs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, run := range runs {
		g.Go(func() error {
			if opts.Cache != nil {
				if data, ok := opts.Cache.Get(gctx, repo, run.ID); ok {
					logging.Debug("log cache hit", "repo", repo, "run_id", run.ID)
					results[i] = fetched{data: data}
					return nil
				}
			}

			data, err := client.DownloadRunLogs(gctx, opts.Repo, run.ID)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				results[i] = fetched{err: err}
				return nil
			}

			if opts.Cache != nil {
				if err := opts.Cache.Put(gctx, repo, run.ID, data); err != nil {
					logging.Warn("failed to cache run logs", "repo", repo, "run_id", run.ID, "error", err)
				}
			}
			results[i] = fetched{data: data}
			mu.Lock()
			opts.Observer.notify(Event{Kind: EventRunFetched, Run: run})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("log download interrupted: %w", err)
	}
	return results, nil
}

// IsUnavailable reports whether a skip reason is missing or restricted logs
// rather than a corrupt archive.
func IsUnavailable(reason error) bool {
	return errors.Is(reason, github.ErrLogsUnavailable)
}
