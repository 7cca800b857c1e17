package pipeline

import (
	"time"

	"github.com/newhook/tidybot/internal/analyzer"
	"github.com/newhook/tidybot/internal/archive"
	"github.com/newhook/tidybot/internal/logparser"
)

// LocalRun is one run's worth of log documents read from disk.
type LocalRun struct {
	Run       logparser.RunContext
	Documents []archive.Document
}

// ScanResult is the outcome of ScanRuns.
type ScanResult struct {
	Failures int
	Tests    []analyzer.FlakyTest
}

// ScanRuns extracts failures from already loaded runs, in order, and scores
// them against totalRuns.
func ScanRuns(extractor *logparser.Extractor, runs []LocalRun, totalRuns int, now time.Time) (*ScanResult, error) {
	if extractor == nil {
		extractor = logparser.NewExtractor()
	}

	agg := analyzer.NewAggregator()
	for _, r := range runs {
		agg.AddAll(extractor.ExtractAll(archive.Texts(archive.PreferJobLogs(r.Documents)), r.Run))
	}

	tests, err := agg.AnalyzeAt(totalRuns, now)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Failures: agg.Failures(), Tests: tests}, nil
}
