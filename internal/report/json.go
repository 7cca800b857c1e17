package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/newhook/tidybot/internal/analyzer"
)

const (
	recentFailures  = 5
	maxErrorMessage = 200
)

type jsonReport struct {
	Summary    jsonSummary     `json:"summary"`
	FlakyTests []jsonFlakyTest `json:"flakyTests"`
}

type jsonSummary struct {
	TotalFlakyTests int `json:"totalFlakyTests"`
	Showing         int `json:"showing"`
}

type jsonFlakyTest struct {
	TestName            string        `json:"testName"`
	TestFile            string        `json:"testFile"`
	FailureCount        int           `json:"failureCount"`
	TotalRuns           int           `json:"totalRuns"`
	FailureRate         float64       `json:"failureRate"`
	FlakinessScore      float64       `json:"flakinessScore"`
	RecencyWeight       float64       `json:"recencyWeight"`
	ConsistencyWeight   float64       `json:"consistencyWeight"`
	CommonErrorPatterns []string      `json:"commonErrorPatterns"`
	RecentFailures      []jsonFailure `json:"recentFailures"`
}

type jsonFailure struct {
	RunID        int64     `json:"runId"`
	CommitSHA    string    `json:"commitSha"`
	Branch       string    `json:"branch"`
	Timestamp    time.Time `json:"timestamp"`
	ErrorMessage string    `json:"errorMessage"`
}

// WriteJSON writes the top tests, each with its first few failures, as
// indented JSON.
func WriteJSON(w io.Writer, tests []analyzer.FlakyTest, opts Options) error {
	shown := head(tests, opts.top())

	out := jsonReport{
		Summary: jsonSummary{
			TotalFlakyTests: len(tests),
			Showing:         len(shown),
		},
		FlakyTests: make([]jsonFlakyTest, 0, len(shown)),
	}

	for _, t := range shown {
		patterns := t.CommonErrorPatterns
		if patterns == nil {
			patterns = []string{}
		}
		jt := jsonFlakyTest{
			TestName:            t.TestName,
			TestFile:            t.TestFile,
			FailureCount:        t.FailureCount,
			TotalRuns:           t.TotalRuns,
			FailureRate:         t.FailureRate,
			FlakinessScore:      t.FlakinessScore,
			RecencyWeight:       t.RecencyWeight,
			ConsistencyWeight:   t.ConsistencyWeight,
			CommonErrorPatterns: patterns,
			RecentFailures:      make([]jsonFailure, 0, recentFailures),
		}
		for _, f := range t.Failures[:min(len(t.Failures), recentFailures)] {
			jt.RecentFailures = append(jt.RecentFailures, jsonFailure{
				RunID:        f.RunID,
				CommitSHA:    f.CommitSHA,
				Branch:       f.Branch,
				Timestamp:    f.Timestamp,
				ErrorMessage: clip(f.ErrorMessage, maxErrorMessage),
			})
		}
		out.FlakyTests = append(out.FlakyTests, jt)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + ellipsis
}
