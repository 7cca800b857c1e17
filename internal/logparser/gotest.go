package logparser

import (
	"regexp"
	"strings"
)

// GoTestDialect parses Go test output, including testify and gotestsum formats.
// It is not part of DefaultDialects; enable it with the "gotest" dialect name.
type GoTestDialect struct{}

var (
	// Standard go test failure: --- FAIL: TestName (duration)
	goTestFailPattern = regexp.MustCompile(`---\s*FAIL:\s*(\S+)\s*\([\d.]+s\)`)

	// Gotestsum format: === FAIL: package TestName (duration)
	gotestsumFailPattern = regexp.MustCompile(`===\s*FAIL:\s*(\S+)\s+(\S+)\s*\([\d.]+s\)`)

	// Package failure line: FAIL\tpackage/path\tduration
	packageFailPattern = regexp.MustCompile(`^FAIL\s+(\S+)\s+[\d.]+s`)

	// Testify error trace: Error Trace:\t/path/to/file.go:line
	testifyErrorTracePattern = regexp.MustCompile(`Error Trace:\s*(.+?):(\d+)`)

	// Testify error message: Error:\s+message
	testifyErrorPattern = regexp.MustCompile(`Error:\s+(.+)`)

	// t.Errorf style output: file_test.go:15: got 1, want 2
	fileLinePattern = regexp.MustCompile(`(\S+_test\.go):(\d+):?\s*(.*)`)

	// Lines that end a test's output: package summaries and test headers.
	goTestBoundaryPattern = regexp.MustCompile(`^(?:(?:FAIL|ok|PASS)(?:\s|$)|---\s*(?:FAIL|PASS|SKIP):|===\s*(?:RUN|PAUSE|CONT|FAIL|NAME))`)
)

// goFailure accumulates details for one failing Go test.
type goFailure struct {
	name    string
	pkg     string
	file    string
	message string
}

// Name returns "gotest".
func (GoTestDialect) Name() string { return DialectGoTest }

// Match extracts failing Go tests in the order they first appear.
func (d GoTestDialect) Match(text string) []Candidate {
	lines := strings.Split(text, "\n")

	var order []string
	failures := make(map[string]*goFailure)

	add := func(key string, f *goFailure, i int) {
		if _, exists := failures[key]; exists {
			return
		}
		d.enrich(f, d.context(lines, i, 20))
		failures[key] = f
		order = append(order, key)
	}

	for i, line := range lines {
		// Try gotestsum format first (has package info)
		if m := gotestsumFailPattern.FindStringSubmatch(line); len(m) == 3 {
			add(m[1]+"/"+m[2], &goFailure{name: m[2], pkg: m[1]}, i)
			continue
		}

		if m := goTestFailPattern.FindStringSubmatch(line); len(m) == 2 {
			add(m[1], &goFailure{name: m[1]}, i)
			continue
		}

		// A package summary line names the package of the failures before it.
		if m := packageFailPattern.FindStringSubmatch(strings.TrimSpace(line)); len(m) == 2 {
			for _, f := range failures {
				if f.pkg == "" {
					f.pkg = m[1]
				}
			}
		}
	}

	candidates := make([]Candidate, 0, len(order))
	for _, key := range order {
		candidates = append(candidates, failures[key].candidate())
	}
	return candidates
}

func (f *goFailure) candidate() Candidate {
	file := f.pkg
	if file == "" {
		file = f.file
	}
	if file == "" {
		file = UnknownFile
	}
	message := f.message
	if message == "" {
		message = DefaultErrorMessage
	}
	return Candidate{TestName: f.name, TestFile: file, ErrorMessage: message}
}

func isGoTestBoundary(line string) bool {
	return goTestBoundaryPattern.MatchString(strings.TrimSpace(line))
}

// context returns the lines following a failure header, up to the next test
// header or package summary, capped at n lines.
func (GoTestDialect) context(lines []string, index, n int) []string {
	end := min(len(lines), index+1+n)
	for j := index + 1; j < end; j++ {
		if isGoTestBoundary(lines[j]) {
			return lines[index+1 : j]
		}
	}
	return lines[index+1 : end]
}

// enrich extracts the file and error message from the failure's output.
func (GoTestDialect) enrich(f *goFailure, lines []string) {
	for i, line := range lines {
		if m := testifyErrorTracePattern.FindStringSubmatch(line); len(m) == 3 {
			parts := strings.Split(m[1], "/")
			f.file = parts[len(parts)-1]
			continue
		}

		if m := testifyErrorPattern.FindStringSubmatch(line); len(m) == 2 && f.message == "" {
			errParts := []string{strings.TrimSpace(m[1])}
			// Collect multi-line error messages
			for j := i + 1; j < len(lines); j++ {
				next := strings.TrimSpace(lines[j])
				if next == "" || isGoTestBoundary(next) || strings.HasPrefix(next, "Error Trace:") ||
					strings.HasPrefix(next, "Test:") || strings.HasPrefix(next, "Messages:") {
					break
				}
				errParts = append(errParts, next)
			}
			f.message = strings.Join(errParts, " ")
			continue
		}

		if f.file == "" {
			if m := fileLinePattern.FindStringSubmatch(line); len(m) == 4 {
				f.file = m[1]
				if msg := strings.TrimSpace(m[3]); msg != "" && f.message == "" {
					f.message = msg
				}
			}
		}
	}
}
