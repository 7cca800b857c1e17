// Package report renders flaky test rankings as a terminal table or JSON.
package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/newhook/tidybot/internal/analyzer"
	"github.com/olekukonko/tablewriter"
)

// DefaultTop is the number of tests shown when Options.Top is not set.
const DefaultTop = 10

const (
	maxNameWidth = 47
	maxFileWidth = 27
	ellipsis     = "..."
)

// Options controls how many tests are rendered.
type Options struct {
	Top int
}

func (o Options) top() int {
	if o.Top <= 0 {
		return DefaultTop
	}
	return o.Top
}

func head(tests []analyzer.FlakyTest, n int) []analyzer.FlakyTest {
	if len(tests) > n {
		return tests[:n]
	}
	return tests
}

// WriteTable writes the top tests as an aligned table followed by a note
// about the tests left out.
func WriteTable(w io.Writer, tests []analyzer.FlakyTest, opts Options) error {
	shown := head(tests, opts.top())

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		headerStyle.Render("Test Name"),
		headerStyle.Render("File"),
		headerStyle.Render("Failures"),
		headerStyle.Render("Rate"),
		headerStyle.Render("Score"),
	})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, t := range shown {
		table.Append([]string{
			truncateName(t.TestName),
			truncateFile(t.TestFile),
			fmt.Sprintf("%d", t.FailureCount),
			fmt.Sprintf("%.1f%%", t.FailureRate*100),
			fmt.Sprintf("%.3f", t.FlakinessScore),
		})
	}
	table.Render()

	if rest := len(tests) - len(shown); rest > 0 {
		if _, err := fmt.Fprintf(w, "\n... and %d more flaky tests\n", rest); err != nil {
			return err
		}
	}
	return nil
}

// truncateName keeps the start of long test names.
func truncateName(name string) string {
	if ansi.StringWidth(name) <= maxNameWidth {
		return name
	}
	return truncate.StringWithTail(name, maxNameWidth, ellipsis)
}

// truncateFile keeps the end of long paths, where the file name is.
func truncateFile(file string) string {
	runes := []rune(file)
	if len(runes) <= maxFileWidth {
		return file
	}
	return ellipsis + string(runes[len(runes)-(maxFileWidth-len(ellipsis)):])
}
