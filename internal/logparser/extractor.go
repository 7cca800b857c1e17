package logparser

// Extractor applies an ordered list of dialects to log documents. The first
// dialect that finds at least one candidate wins; results of different
// dialects are never merged.
type Extractor struct {
	dialects []Dialect
}

// NewExtractor creates an extractor trying dialects in the given order.
// With no dialects it uses DefaultDialects.
func NewExtractor(dialects ...Dialect) *Extractor {
	if len(dialects) == 0 {
		dialects = DefaultDialects()
	}
	return &Extractor{dialects: dialects}
}

// Dialects returns the dialect names in priority order.
func (e *Extractor) Dialects() []string {
	names := make([]string, len(e.dialects))
	for i, d := range e.dialects {
		names[i] = d.Name()
	}
	return names
}

// Match returns the candidates of the first dialect that matches anything,
// along with that dialect. Incomplete candidates are dropped and, for
// deduplicating dialects, repeated tests are collapsed (first wins).
func (e *Extractor) Match(text string) (Dialect, []Candidate) {
	cleaned := CleanLog(text)

	for _, d := range e.dialects {
		candidates := d.Match(cleaned)
		if len(candidates) == 0 {
			continue
		}

		dedupe := false
		if dd, ok := d.(Deduplicator); ok {
			dedupe = dd.Deduplicate()
		}
		return d, filterCandidates(candidates, dedupe)
	}

	return nil, nil
}

// Extract returns the failures found in one log document, annotated with the
// run the document belongs to.
func (e *Extractor) Extract(text string, run RunContext) []Failure {
	_, candidates := e.Match(text)

	failures := make([]Failure, 0, len(candidates))
	for _, c := range candidates {
		failures = append(failures, Failure{
			TestName:     c.TestName,
			TestFile:     c.TestFile,
			ErrorMessage: c.ErrorMessage,
			RunID:        run.RunID,
			CommitSHA:    run.CommitSHA,
			Timestamp:    run.Timestamp,
			Branch:       run.Branch,
		})
	}
	return failures
}

// ExtractAll processes each document independently and concatenates the
// results in document order.
func (e *Extractor) ExtractAll(documents []string, run RunContext) []Failure {
	var failures []Failure
	for _, doc := range documents {
		failures = append(failures, e.Extract(doc, run)...)
	}
	return failures
}

func filterCandidates(candidates []Candidate, dedupe bool) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	seen := make(map[Key]bool)

	for _, c := range candidates {
		if !c.complete() {
			continue
		}
		if dedupe {
			if seen[c.key()] {
				continue
			}
			seen[c.key()] = true
		}
		out = append(out, c)
	}

	return out
}
