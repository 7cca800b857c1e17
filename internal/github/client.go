package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/newhook/tidybot/internal/logging"
	"golang.org/x/time/rate"
)

const (
	// DefaultRequestsPerSecond keeps well below GitHub's secondary rate limits.
	DefaultRequestsPerSecond = 5.0
	// DefaultBurst is the number of calls allowed back to back.
	DefaultBurst = 5

	runsPerPage = 100
)

var (
	// ErrLogsUnavailable is returned when a run's logs expired or are not
	// accessible with the current credentials.
	ErrLogsUnavailable = errors.New("workflow run logs unavailable")

	httpStatusPattern = regexp.MustCompile(`\(HTTP (\d{3})\)`)
)

// ClientInterface is the subset of GitHub operations the analysis needs.
type ClientInterface interface {
	ListWorkflowRuns(ctx context.Context, repo Repository, since time.Time, limit int) ([]WorkflowRun, error)
	DownloadRunLogs(ctx context.Context, repo Repository, runID int64) ([]byte, error)
}

// WorkflowRun is a GitHub Actions workflow run as returned by the REST API.
type WorkflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	HeadBranch string    `json:"head_branch"`
	HeadSHA    string    `json:"head_sha"`
	Status     string    `json:"status"`     // completed, in_progress, queued
	Conclusion string    `json:"conclusion"` // success, failure, cancelled, skipped; empty while running
	HTMLURL    string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// APIError is a failed gh api invocation.
type APIError struct {
	// StatusCode is the HTTP status reported by gh, or 0 if none was reported.
	StatusCode int
	Stderr     string
	Err        error
}

func (e *APIError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("gh api failed: %s", e.Stderr)
	}
	return fmt.Sprintf("gh api failed: %v", e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// commandRunner runs gh with args and returns its standard output.
type commandRunner func(ctx context.Context, args ...string) ([]byte, error)

// Options configures a Client.
type Options struct {
	RequestsPerSecond float64
	Burst             int
}

// Client wraps the gh CLI for GitHub API operations. Authentication is
// whatever gh is configured with (GITHUB_TOKEN or gh auth login).
type Client struct {
	limiter *rate.Limiter
	run     commandRunner
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates a new GitHub client.
func NewClient(opts Options) *Client {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Client{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		run:     ghCommand,
	}
}

func ghCommand(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		return nil, &APIError{
			StatusCode: statusFromStderr(msg),
			Stderr:     msg,
			Err:        err,
		}
	}
	return output, nil
}

// statusFromStderr extracts the status from gh messages such as
// "gh: Not Found (HTTP 404)".
func statusFromStderr(stderr string) int {
	m := httpStatusPattern.FindStringSubmatch(stderr)
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

func (c *Client) api(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.run(ctx, "api", "-H", "Accept: application/vnd.github+json", endpoint)
}

// ListWorkflowRuns returns the runs created at or after since, newest first,
// fetching pages until limit runs were collected. limit <= 0 fetches all.
func (c *Client) ListWorkflowRuns(ctx context.Context, repo Repository, since time.Time, limit int) ([]WorkflowRun, error) {
	logging.Debug("listing workflow runs", "repo", repo.String(), "since", since, "limit", limit)

	var runs []WorkflowRun
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("created", ">="+since.UTC().Format(time.RFC3339))
		query.Set("per_page", strconv.Itoa(runsPerPage))
		query.Set("page", strconv.Itoa(page))
		endpoint := fmt.Sprintf("repos/%s/actions/runs?%s", repo, query.Encode())

		output, err := c.api(ctx, endpoint)
		if err != nil {
			logging.Error("failed to list workflow runs", "repo", repo.String(), "page", page, "error", err)
			return nil, fmt.Errorf("failed to list workflow runs for %s: %w", repo, err)
		}

		var response struct {
			TotalCount   int           `json:"total_count"`
			WorkflowRuns []WorkflowRun `json:"workflow_runs"`
		}
		if err := json.Unmarshal(output, &response); err != nil {
			return nil, fmt.Errorf("failed to parse workflow runs: %w", err)
		}

		runs = append(runs, response.WorkflowRuns...)
		if limit > 0 && len(runs) >= limit {
			runs = runs[:limit]
			break
		}
		if len(response.WorkflowRuns) < runsPerPage || len(runs) >= response.TotalCount {
			break
		}
	}

	logging.Info("listed workflow runs", "repo", repo.String(), "count", len(runs))
	return runs, nil
}

// DownloadRunLogs returns the zip archive holding every job log of a run.
// Expired or inaccessible logs yield an error wrapping ErrLogsUnavailable.
func (c *Client) DownloadRunLogs(ctx context.Context, repo Repository, runID int64) ([]byte, error) {
	output, err := c.api(ctx, fmt.Sprintf("repos/%s/actions/runs/%d/logs", repo, runID))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case 410:
				return nil, fmt.Errorf("%w: logs for run %d are no longer available", ErrLogsUnavailable, runID)
			case 403, 404:
				return nil, fmt.Errorf("%w: logs for run %d are not accessible (HTTP %d)", ErrLogsUnavailable, runID, apiErr.StatusCode)
			}
		}
		return nil, fmt.Errorf("failed to download logs for run %d: %w", runID, err)
	}
	return output, nil
}
