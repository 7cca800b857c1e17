package analyzer

import (
	"testing"
	"time"

	"github.com/newhook/tidybot/internal/logparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func failure(file, name string, mods ...func(*logparser.Failure)) logparser.Failure {
	f := logparser.Failure{
		TestName:     name,
		TestFile:     file,
		ErrorMessage: "Error",
		RunID:        1,
		CommitSHA:    "abc123",
		Timestamp:    now,
		Branch:       "main",
	}
	for _, m := range mods {
		m(&f)
	}
	return f
}

func withCommit(sha string) func(*logparser.Failure) {
	return func(f *logparser.Failure) { f.CommitSHA = sha }
}

func withBranch(b string) func(*logparser.Failure) {
	return func(f *logparser.Failure) { f.Branch = b }
}

func withAge(d time.Duration) func(*logparser.Failure) {
	return func(f *logparser.Failure) { f.Timestamp = now.Add(-d) }
}

func withMessage(m string) func(*logparser.Failure) {
	return func(f *logparser.Failure) { f.ErrorMessage = m }
}

func TestAnalyze_MultipleFailuresAreFlaky(t *testing.T) {
	a := NewAggregator()
	a.Add(failure("example.test.ts", "test example", withMessage("Timeout error")))
	a.Add(failure("example.test.ts", "test example", withMessage("Timeout error"), withCommit("def456")))

	results, err := a.Analyze(10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "test example", results[0].TestName)
	assert.Equal(t, "example.test.ts", results[0].TestFile)
	assert.Equal(t, 2, results[0].FailureCount)
	assert.Equal(t, 10, results[0].TotalRuns)
	assert.Equal(t, 0.2, results[0].FailureRate)
	assert.Len(t, results[0].Failures, 2)
}

func TestAnalyze_SingleFailureIsNotFlaky(t *testing.T) {
	a := NewAggregator()
	a.Add(failure("example.test.ts", "test example"))

	results, err := a.Analyze(10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAnalyze_InvalidTotalRuns(t *testing.T) {
	a := NewAggregator()
	a.Add(failure("a.js", "a"))
	a.Add(failure("a.js", "a"))

	for _, total := range []int{0, -1} {
		_, err := a.Analyze(total)
		require.ErrorIs(t, err, ErrInvalidTotalRuns)
	}
}

func TestAnalyzeAt_ScoreComponents(t *testing.T) {
	a := NewAggregator()
	// Two failures on the same commit and branch: consistency = (1/2 + 1/2) / 2.
	a.Add(failure("a.js", "a"))
	a.Add(failure("a.js", "a", withAge(15*24*time.Hour)))

	results, err := a.AnalyzeAt(4, now)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.InDelta(t, 0.5, r.FailureRate, 1e-9)
	assert.InDelta(t, 0.75, r.RecencyWeight, 1e-9)
	assert.InDelta(t, 0.5, r.ConsistencyWeight, 1e-9)
	assert.InDelta(t, 0.4*0.5+0.3*0.75+0.3*0.5, r.FlakinessScore, 1e-9)
}

func TestAnalyzeAt_ConsistencyRewardsSpread(t *testing.T) {
	a := NewAggregator()
	a.Add(failure("spread.js", "t", withCommit("c1"), withBranch("main")))
	a.Add(failure("spread.js", "t", withCommit("c2"), withBranch("feature")))
	a.Add(failure("clustered.js", "t"))
	a.Add(failure("clustered.js", "t"))

	results, err := a.AnalyzeAt(10, now)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "spread.js", results[0].TestFile)
	assert.InDelta(t, 1.0, results[0].ConsistencyWeight, 1e-9)
	assert.Equal(t, "clustered.js", results[1].TestFile)
	assert.InDelta(t, 0.5, results[1].ConsistencyWeight, 1e-9)
}

func TestAnalyzeAt_RecencyClamped(t *testing.T) {
	a := NewAggregator()
	a.Add(failure("old.js", "t", withAge(90*24*time.Hour)))
	a.Add(failure("old.js", "t", withAge(31*24*time.Hour)))
	a.Add(failure("future.js", "t", withAge(-48*time.Hour)))
	a.Add(failure("future.js", "t", withAge(-1*time.Hour)))
	a.Add(failure("zero.js", "t", func(f *logparser.Failure) { f.Timestamp = time.Time{} }))
	a.Add(failure("zero.js", "t", func(f *logparser.Failure) { f.Timestamp = time.Time{} }))

	results, err := a.AnalyzeAt(2, now)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, r := range results {
		switch r.TestFile {
		case "old.js", "zero.js":
			assert.Equal(t, 0.0, r.RecencyWeight)
		case "future.js":
			assert.Equal(t, 1.0, r.RecencyWeight)
		}
		assert.GreaterOrEqual(t, r.FlakinessScore, 0.0)
		assert.LessOrEqual(t, r.FlakinessScore, 1.0)
	}
}

func TestAnalyzeAt_SortedDescendingAndStable(t *testing.T) {
	a := NewAggregator()
	// Identical histories produce identical scores.
	for _, name := range []string{"first", "second", "third"} {
		a.Add(failure("tie.js", name))
		a.Add(failure("tie.js", name))
	}
	// A test with more failures ranks above the tie group.
	for i := 0; i < 4; i++ {
		a.Add(failure("top.js", "top", withCommit(string(rune('a'+i)))))
	}

	results, err := a.AnalyzeAt(10, now)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "top", results[0].TestName)
	assert.Equal(t, "first", results[1].TestName)
	assert.Equal(t, "second", results[2].TestName)
	assert.Equal(t, "third", results[3].TestName)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].FlakinessScore, results[i].FlakinessScore)
	}
}

func TestAnalyzeAt_Idempotent(t *testing.T) {
	a := NewAggregator()
	a.Add(failure("a.js", "a", withCommit("c1")))
	a.Add(failure("b.js", "b"))
	a.Add(failure("a.js", "a", withCommit("c2"), withAge(72*time.Hour)))
	a.Add(failure("b.js", "b", withAge(24*time.Hour)))

	first, err := a.AnalyzeAt(5, now)
	require.NoError(t, err)
	second, err := a.AnalyzeAt(5, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyzeAt_PreservesFailureOrder(t *testing.T) {
	a := NewAggregator()
	a.Add(failure("a.js", "a", func(f *logparser.Failure) { f.RunID = 3 }))
	a.Add(failure("a.js", "a", func(f *logparser.Failure) { f.RunID = 1 }))
	a.Add(failure("a.js", "a", func(f *logparser.Failure) { f.RunID = 2 }))

	results, err := a.AnalyzeAt(3, now)
	require.NoError(t, err)
	require.Len(t, results, 1)

	var ids []int64
	for _, f := range results[0].Failures {
		ids = append(ids, f.RunID)
	}
	assert.Equal(t, []int64{3, 1, 2}, ids)
}

func TestAnalyzeAt_CommonErrorPatterns(t *testing.T) {
	a := NewAggregator()
	a.Add(failure("a.js", "a", withMessage("Timeout of 5000ms exceeded")))
	a.Add(failure("a.js", "a", withMessage("request TIMED OUT")))
	a.Add(failure("a.js", "a", withMessage("timeout waiting for network")))
	a.Add(failure("a.js", "a", withMessage("something else")))

	results, err := a.AnalyzeAt(10, now)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Contains(t, results[0].CommonErrorPatterns, PatternTimeout)
	assert.NotContains(t, results[0].CommonErrorPatterns, PatternNetwork)
}

func TestAggregator_Counts(t *testing.T) {
	a := NewAggregator()
	assert.Equal(t, 0, a.Len())

	a.AddAll([]logparser.Failure{
		failure("a.js", "a"),
		failure("a.js", "b"),
		failure("b.js", "a"),
		failure("a.js", "a"),
	})

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 4, a.Failures())
	assert.Len(t, a.groups[logparser.Key{TestFile: "a.js", TestName: "a"}], 2)
	assert.Empty(t, a.groups[logparser.Key{TestFile: "c.js", TestName: "a"}])
}
