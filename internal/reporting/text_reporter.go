package reporting

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
)

var statusLabel = map[schemas.Status]string{
	schemas.StatusPassed:  "PASS",
	schemas.StatusFailed:  "FAIL",
	schemas.StatusErrored: "ERROR",
	schemas.StatusSkipped: "SKIP",
}

// TextReporter prints a human readable transcript.
type TextReporter struct {
	w io.WriteCloser
}

func NewTextReporter(w io.WriteCloser) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) Write(report *schemas.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s  suite=%s  target=%s\n\n", report.RunID, report.Suite, report.BaseURL)

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, res := range report.Results {
		fmt.Fprintf(tw, "[%s]\t%s\t%s\t%s\n", statusLabel[res.Status], res.ScenarioID, res.Title, res.Duration.Round(time.Millisecond))
		if res.Status != schemas.StatusPassed && res.Detail != "" {
			fmt.Fprintf(tw, "\t  %s\t\t\n", firstLine(res.Detail))
		}
		if res.Screenshot != "" {
			fmt.Fprintf(tw, "\t  screenshot: %s\t\t\n", res.Screenshot)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := report.Summary()
	fmt.Fprintf(&b, "\n%d scenarios: %d passed, %d failed, %d errored, %d skipped (%s)\n",
		s.Total, s.Passed, s.Failed, s.Errored, s.Skipped, report.Duration().Round(time.Millisecond))

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *TextReporter) Close() error { return r.w.Close() }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
