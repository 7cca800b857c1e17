package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/newhook/tidybot/internal/analyzer"
	"github.com/newhook/tidybot/internal/logparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flakyTests(n int) []analyzer.FlakyTest {
	tests := make([]analyzer.FlakyTest, n)
	for i := range tests {
		tests[i] = analyzer.FlakyTest{
			TestName:       fmt.Sprintf("test %d", i),
			TestFile:       "src/app.test.js",
			FailureCount:   2,
			TotalRuns:      5,
			FailureRate:    0.4,
			FlakinessScore: 0.6126,
		}
	}
	return tests
}

func TestTruncateName(t *testing.T) {
	short := strings.Repeat("a", 47)
	assert.Equal(t, short, truncateName(short))

	long := strings.Repeat("b", 50)
	got := truncateName(long)
	assert.Equal(t, strings.Repeat("b", 44)+"...", got)
}

func TestTruncateFile(t *testing.T) {
	assert.Equal(t, "src/app.test.js", truncateFile("src/app.test.js"))

	long := "packages/frontend/src/components/button.test.tsx"
	got := truncateFile(long)
	assert.Equal(t, "..."+long[len(long)-24:], got)
	assert.Len(t, got, 27)
	assert.True(t, strings.HasSuffix(got, "button.test.tsx"))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, flakyTests(3), Options{}))

	out := buf.String()
	for _, col := range []string{"Test Name", "File", "Failures", "Rate", "Score"} {
		assert.Contains(t, out, col)
	}
	assert.Contains(t, out, "test 0")
	assert.Contains(t, out, "test 2")
	assert.Contains(t, out, "40.0%")
	assert.Contains(t, out, "0.613")
	assert.NotContains(t, out, "more flaky tests")
}

func TestWriteTable_TopAndFooter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, flakyTests(13), Options{}))

	out := buf.String()
	assert.Contains(t, out, "test 9")
	assert.NotContains(t, out, "test 10")
	assert.Contains(t, out, "... and 3 more flaky tests")

	buf.Reset()
	require.NoError(t, WriteTable(&buf, flakyTests(13), Options{Top: 2}))
	assert.Contains(t, buf.String(), "... and 11 more flaky tests")
}

func TestWriteJSON(t *testing.T) {
	ts := time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)
	test := flakyTests(1)[0]
	for i := 0; i < 7; i++ {
		test.Failures = append(test.Failures, logparser.Failure{
			TestName:     test.TestName,
			TestFile:     test.TestFile,
			ErrorMessage: "Expected <div> to exist",
			RunID:        int64(100 + i),
			CommitSHA:    fmt.Sprintf("sha%d", i),
			Branch:       "main",
			Timestamp:    ts,
		})
	}
	test.Failures[0].ErrorMessage = strings.Repeat("x", 250)
	test.CommonErrorPatterns = []string{analyzer.PatternAssertion}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []analyzer.FlakyTest{test}, Options{}))

	var got jsonReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, jsonSummary{TotalFlakyTests: 1, Showing: 1}, got.Summary)
	require.Len(t, got.FlakyTests, 1)
	ft := got.FlakyTests[0]
	assert.Equal(t, "test 0", ft.TestName)
	assert.Equal(t, []string{analyzer.PatternAssertion}, ft.CommonErrorPatterns)
	require.Len(t, ft.RecentFailures, 5)
	assert.Equal(t, int64(100), ft.RecentFailures[0].RunID)
	assert.Equal(t, strings.Repeat("x", 200)+"...", ft.RecentFailures[0].ErrorMessage)
	assert.Equal(t, "Expected <div> to exist", ft.RecentFailures[1].ErrorMessage)
	assert.True(t, ts.Equal(ft.RecentFailures[1].Timestamp))

	assert.Contains(t, buf.String(), `"commitSha": "sha0"`)
	assert.Contains(t, buf.String(), "<div>")
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil, Options{}))

	assert.JSONEq(t, `{"summary":{"totalFlakyTests":0,"showing":0},"flakyTests":[]}`, buf.String())
}

func TestWriteJSON_Top(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, flakyTests(12), Options{Top: 3}))

	var got jsonReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 12, got.Summary.TotalFlakyTests)
	assert.Equal(t, 3, got.Summary.Showing)
	assert.Len(t, got.FlakyTests, 3)
	assert.Equal(t, []string{}, got.FlakyTests[0].CommonErrorPatterns)
}
