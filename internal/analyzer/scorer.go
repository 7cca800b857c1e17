package analyzer

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/newhook/tidybot/internal/logparser"
)

// ErrInvalidTotalRuns is returned when the failure rate denominator is not positive.
var ErrInvalidTotalRuns = errors.New("total runs must be positive")

const (
	// MinFailures is the number of failures a test needs to be considered flaky.
	MinFailures = 2

	// RecencyWindow is the age at which a failure stops contributing to recency.
	RecencyWindow = 30 * 24 * time.Hour

	failureRateWeight = 0.4
	recencyWeight     = 0.3
	consistencyWeight = 0.3
)

// FlakyTest summarises the failure history of one test. It is derived on
// every analysis pass and never persisted.
type FlakyTest struct {
	TestName            string
	TestFile            string
	FailureCount        int
	TotalRuns           int
	FailureRate         float64
	FlakinessScore      float64
	RecencyWeight       float64
	ConsistencyWeight   float64
	Failures            []logparser.Failure
	CommonErrorPatterns []string
}

// Analyze scores every test with at least MinFailures failures against the
// current time.
func (a *Aggregator) Analyze(totalRuns int) ([]FlakyTest, error) {
	return a.AnalyzeAt(totalRuns, time.Now())
}

// AnalyzeAt scores every qualifying test relative to now and returns them
// sorted by flakiness score, highest first. Ties keep first-insertion order.
func (a *Aggregator) AnalyzeAt(totalRuns int, now time.Time) ([]FlakyTest, error) {
	if totalRuns <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTotalRuns, totalRuns)
	}

	tests := []FlakyTest{}
	for _, key := range a.order {
		failures := a.groups[key]
		if len(failures) < MinFailures {
			continue
		}
		tests = append(tests, score(key, failures, totalRuns, now))
	}

	sort.SliceStable(tests, func(i, j int) bool {
		return tests[i].FlakinessScore > tests[j].FlakinessScore
	})

	return tests, nil
}

func score(key logparser.Key, failures []logparser.Failure, totalRuns int, now time.Time) FlakyTest {
	rate := float64(len(failures)) / float64(totalRuns)
	recency := recencyOf(failures, now)
	consistency := consistencyOf(failures)

	messages := make([]string, len(failures))
	for i, f := range failures {
		messages[i] = f.ErrorMessage
	}

	return FlakyTest{
		TestName:            key.TestName,
		TestFile:            key.TestFile,
		FailureCount:        len(failures),
		TotalRuns:           totalRuns,
		FailureRate:         rate,
		FlakinessScore:      rate*failureRateWeight + recency*recencyWeight + consistency*consistencyWeight,
		RecencyWeight:       recency,
		ConsistencyWeight:   consistency,
		Failures:            failures,
		CommonErrorPatterns: commonErrorPatterns(messages),
	}
}

// recencyOf is the mean of a linear decay from 1 (now) to 0 (RecencyWindow
// old). Failures stamped in the future count as brand new.
func recencyOf(failures []logparser.Failure, now time.Time) float64 {
	var sum float64
	for _, f := range failures {
		age := now.Sub(f.Timestamp)
		w := 1 - float64(age)/float64(RecencyWindow)
		sum += min(1, max(0, w))
	}
	return sum / float64(len(failures))
}

// consistencyOf averages the share of distinct commits and distinct branches.
// Failures spread over many commits look flaky; failures on one commit look
// like a real regression.
func consistencyOf(failures []logparser.Failure) float64 {
	commits := make(map[string]struct{})
	branches := make(map[string]struct{})
	for _, f := range failures {
		commits[f.CommitSHA] = struct{}{}
		branches[f.Branch] = struct{}{}
	}

	n := float64(len(failures))
	return (float64(len(commits))/n + float64(len(branches))/n) / 2
}
