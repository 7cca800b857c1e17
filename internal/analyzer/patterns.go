package analyzer

import "regexp"

// Error categories reported in FlakyTest.CommonErrorPatterns.
const (
	PatternTimeout   = "Timeout"
	PatternNetwork   = "Network Error"
	PatternAssertion = "Assertion Failure"
	PatternRace      = "Possible Race Condition"
)

const (
	// patternThreshold is the share of failures a category must appear in.
	patternThreshold = 0.5
	// maxPatterns caps the number of categories reported per test.
	maxPatterns = 5
)

// errorClassifier labels an error message when its pattern matches.
type errorClassifier struct {
	label   string
	pattern *regexp.Regexp
}

// errorClassifiers are independent; a message may match several.
var errorClassifiers = []errorClassifier{
	{label: PatternTimeout, pattern: regexp.MustCompile(`(?i)timeout|timed out`)},
	{label: PatternNetwork, pattern: regexp.MustCompile(`(?i)network|connection|ECONNREFUSED`)},
	{label: PatternAssertion, pattern: regexp.MustCompile(`(?i)expect|assert|should`)},
	{label: PatternRace, pattern: regexp.MustCompile(`(?i)race|concurrent|async`)},
}

// classifyError returns the labels matching message, in table order.
func classifyError(message string) []string {
	var labels []string
	for _, c := range errorClassifiers {
		if c.pattern.MatchString(message) {
			labels = append(labels, c.label)
		}
	}
	return labels
}

// commonErrorPatterns returns the categories present in at least half of the
// messages, in order of first detection.
func commonErrorPatterns(messages []string) []string {
	var order []string
	counts := make(map[string]int)

	for _, m := range messages {
		for _, label := range classifyError(m) {
			if counts[label] == 0 {
				order = append(order, label)
			}
			counts[label]++
		}
	}

	threshold := float64(len(messages)) * patternThreshold
	patterns := []string{}
	for _, label := range order {
		if float64(counts[label]) >= threshold {
			patterns = append(patterns, label)
		}
		if len(patterns) == maxPatterns {
			break
		}
	}
	return patterns
}
