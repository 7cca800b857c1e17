package logparser

import (
	"regexp"
	"strings"
)

// JestDialect parses Jest-style output: "FAIL <file>" blocks containing
// "✕ <test name>" lines and Expected/Received error detail.
type JestDialect struct{}

var (
	// Block header: FAIL src/components/Button.test.tsx
	jestBlockPattern = regexp.MustCompile(`(?m)(?:^|[ \t])FAIL[ \t]+(\S+)[ \t]*$`)

	// A passing suite header ends the current block.
	jestPassPattern = regexp.MustCompile(`(?m)^[ \t]*PASS[ \t]+\S+`)

	// Failed test line: ✕ renders the label (12 ms)
	jestFailedTestPattern = regexp.MustCompile(`(?m)✕[ \t]+(.+?)(?:[ \t]+\(\d+(?:\.\d+)?[ \t]*m?s\))?[ \t]*$`)

	// Keywords that open an error detail span.
	jestErrorStartPattern = regexp.MustCompile(`Expected|Received|Error|Failed|Timeout`)
)

// Name returns "jest".
func (JestDialect) Name() string { return DialectJest }

// Match extracts one candidate per failed test line inside every FAIL block.
func (JestDialect) Match(text string) []Candidate {
	var candidates []Candidate

	headers := jestBlockPattern.FindAllStringSubmatchIndex(text, -1)
	for i, h := range headers {
		file := text[h[2]:h[3]]
		start := h[1]
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		if loc := jestPassPattern.FindStringIndex(text[start:end]); loc != nil {
			end = start + loc[0]
		}
		candidates = append(candidates, matchJestBlock(file, text[start:end])...)
	}

	return candidates
}

// matchJestBlock pairs each failed test with the next unused error span that
// follows its line. The cursor is local so repeated calls see identical input
// the same way.
func matchJestBlock(file, block string) []Candidate {
	var candidates []Candidate
	cursor := 0

	for _, m := range jestFailedTestPattern.FindAllStringSubmatchIndex(block, -1) {
		name := strings.TrimSpace(block[m[2]:m[3]])
		if name == "" {
			continue
		}

		message, next := findErrorSpan(block, max(cursor, m[1]))
		if message == "" {
			message = DefaultErrorMessage
		} else {
			cursor = next
		}

		candidates = append(candidates, Candidate{
			TestName:     name,
			TestFile:     file,
			ErrorMessage: message,
		})
	}

	return candidates
}

// findErrorSpan returns the first error span at or after pos and the offset
// just past it. Keywords on test marker lines are ignored.
func findErrorSpan(block string, pos int) (string, int) {
	if pos >= len(block) {
		return "", pos
	}
	for _, loc := range jestErrorStartPattern.FindAllStringIndex(block[pos:], -1) {
		start := pos + loc[0]
		if isTestMarkerLine(lineAt(block, start)) {
			continue
		}
		end := errorSpanEnd(block, start)
		return strings.TrimSpace(block[start:end]), end
	}
	return "", pos
}

// errorSpanEnd finds where an error span starting at start stops: before a
// blank line, a test marker line, a stack frame line, or the end of the block.
func errorSpanEnd(block string, start int) int {
	end := lineEnd(block, start)
	for end < len(block) {
		next := lineEnd(block, end+1)
		line := strings.TrimSpace(block[end+1 : next])
		if line == "" || isTestMarkerLine(line) || isStackFrame(line) {
			return end
		}
		end = next
	}
	return end
}

func lineEnd(s string, from int) int {
	if i := strings.IndexByte(s[from:], '\n'); i >= 0 {
		return from + i
	}
	return len(s)
}

func lineAt(s string, pos int) string {
	start := strings.LastIndexByte(s[:pos], '\n') + 1
	return strings.TrimSpace(s[start:lineEnd(s, pos)])
}

func isTestMarkerLine(line string) bool {
	return strings.HasPrefix(line, "✓") || strings.HasPrefix(line, "✕")
}

func isStackFrame(line string) bool {
	return strings.HasPrefix(line, "at ") || strings.HasPrefix(line, "at\t")
}
