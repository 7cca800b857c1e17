// Package logparser extracts per-test failures from CI build logs.
//
// Extraction is best effort: each Dialect recognises one log convention and the
// Extractor picks the first dialect that finds anything. Missed failures are
// acceptable, malformed input never produces an error.
package logparser

import (
	"strings"
	"time"
)

// DefaultErrorMessage is used when a failed test has no recognisable error span.
const DefaultErrorMessage = "Test failed"

// Candidate is a failure found by a dialect before run context is attached.
type Candidate struct {
	TestName     string // e.g., "Foo › handles empty input"
	TestFile     string // e.g., "src/foo.test.ts"
	ErrorMessage string
}

// complete reports whether all fields required for a Failure are present.
func (c Candidate) complete() bool {
	return c.TestName != "" && c.TestFile != "" && c.ErrorMessage != ""
}

// RunContext describes the CI run a log document came from.
type RunContext struct {
	RunID     int64
	CommitSHA string
	Timestamp time.Time
	Branch    string
}

// Failure is one observed test failure in one CI run. Values are never
// mutated after extraction.
type Failure struct {
	TestName     string    `json:"testName"`
	TestFile     string    `json:"testFile"`
	ErrorMessage string    `json:"errorMessage"`
	RunID        int64     `json:"runId"`
	CommitSHA    string    `json:"commitSha"`
	Timestamp    time.Time `json:"timestamp"`
	Branch       string    `json:"branch"`
}

// Key identifies the logical test a failure belongs to.
type Key struct {
	TestFile string
	TestName string
}

// String returns "file:name".
func (k Key) String() string {
	return k.TestFile + ":" + k.TestName
}

// Key returns the aggregation identity of the failure.
func (f Failure) Key() Key {
	return Key{TestFile: f.TestFile, TestName: f.TestName}
}

func (c Candidate) key() Key {
	return Key{TestFile: c.TestFile, TestName: c.TestName}
}

// ParseTimestamp parses an ISO-8601 timestamp as reported by the GitHub API.
// Unparseable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
