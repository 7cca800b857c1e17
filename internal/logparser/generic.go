package logparser

import (
	"regexp"
	"strings"
)

// UnknownFile is the file label used when a generic fragment names no file.
const UnknownFile = "unknown"

// hierarchySeparator joins describe/test name segments.
const hierarchySeparator = " › "

// GenericDialect is the fallback matcher for common failure line conventions
// across frameworks. It is looser than the framework specific dialects and
// never knows the actual error, so every candidate gets DefaultErrorMessage.
type GenericDialect struct{}

// genericPatterns are tried in order. The fragment used for a match is the
// second group when present, else the first.
var genericPatterns = []*regexp.Regexp{
	// Mocha/Chai numbered or glyph prefixed lines: "1) suite test", "✖ test"
	regexp.MustCompile(`(\d+\)|✖|✗|×|FAILED|FAIL)\s+(.+)`),
	// TAP: "not ok 3 - adds numbers"
	regexp.MustCompile(`not ok \d+\s+(.+)`),
	// Generic error with file: "Error in foo.js: boom"
	regexp.MustCompile(`Error in (.+?):\s*(.+)`),
	// Pytest: "FAILED tests/test_a.py::test_b - AssertionError"
	regexp.MustCompile(`FAILED\s+(.+?)\s*-\s*(.+)`),
}

// Fragments mentioning package manager or dependency noise are not tests.
var genericNoise = []string{"npm", "node_modules"}

var fragmentSeparator = regexp.MustCompile(`[:\s›]+`)

// Name returns "generic".
func (GenericDialect) Name() string { return DialectGeneric }

// Deduplicate reports that generic results are collapsed by test key.
func (GenericDialect) Deduplicate() bool { return true }

// Match applies every generic pattern to the whole text.
func (GenericDialect) Match(text string) []Candidate {
	var candidates []Candidate

	for _, pattern := range genericPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			fragment := m[1]
			if len(m) > 2 && m[2] != "" {
				fragment = m[2]
			}
			if fragment == "" || isNoise(fragment) {
				continue
			}

			file, name := splitFragment(fragment)
			candidates = append(candidates, Candidate{
				TestName:     strings.TrimSpace(name),
				TestFile:     strings.TrimSpace(file),
				ErrorMessage: DefaultErrorMessage,
			})
		}
	}

	return candidates
}

// splitFragment guesses file and test name from free text. The first token
// containing a dot is the file; all other tokens form the name.
func splitFragment(fragment string) (file, name string) {
	var parts []string
	for _, p := range fragmentSeparator.Split(fragment, -1) {
		if p != "" {
			parts = append(parts, p)
		}
	}

	file = UnknownFile
	for _, p := range parts {
		if strings.Contains(p, ".") {
			file = p
			break
		}
	}

	var nameParts []string
	for _, p := range parts {
		if p != file {
			nameParts = append(nameParts, p)
		}
	}

	name = strings.Join(nameParts, hierarchySeparator)
	if name == "" {
		name = fragment
	}
	return file, name
}

func isNoise(fragment string) bool {
	for _, n := range genericNoise {
		if strings.Contains(fragment, n) {
			return true
		}
	}
	return false
}
