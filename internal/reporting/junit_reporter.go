package reporting

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
)

// JUnitReporter writes one <testsuite> with a <testcase> per scenario, the
// shape CI systems ingest.
type JUnitReporter struct {
	w io.WriteCloser
}

func NewJUnitReporter(w io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{w: w}
}

func secs(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func (r *JUnitReporter) Write(report *schemas.Report) error {
	sum := report.Summary()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("name", "trackerprobe")
	setCounts(suites, sum)
	suites.CreateAttr("time", secs(report.Duration()))

	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", report.Suite)
	suite.CreateAttr("id", report.RunID)
	setCounts(suite, sum)
	suite.CreateAttr("time", secs(report.Duration()))
	suite.CreateAttr("timestamp", report.StartedAt.UTC().Format("2006-01-02T15:04:05"))
	if host, err := os.Hostname(); err == nil {
		suite.CreateAttr("hostname", host)
	}

	props := suite.CreateElement("properties")
	for _, kv := range [][2]string{{"run_id", report.RunID}, {"base_url", report.BaseURL}} {
		p := props.CreateElement("property")
		p.CreateAttr("name", kv[0])
		p.CreateAttr("value", kv[1])
	}

	for _, res := range report.Results {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", res.ScenarioID)
		classname := report.Suite
		if res.Group != "" {
			classname += "." + res.Group
		}
		tc.CreateAttr("classname", classname)
		tc.CreateAttr("time", secs(res.Duration))

		switch res.Status {
		case schemas.StatusFailed:
			f := tc.CreateElement("failure")
			f.CreateAttr("message", firstLine(res.Detail))
			f.CreateAttr("type", "mismatch")
			f.SetText(stepTranscript(res))
		case schemas.StatusErrored:
			e := tc.CreateElement("error")
			e.CreateAttr("message", firstLine(res.Detail))
			e.CreateAttr("type", "error")
			e.SetText(res.Detail)
		case schemas.StatusSkipped:
			s := tc.CreateElement("skipped")
			s.CreateAttr("message", res.Detail)
		}

		if len(res.Steps) > 0 || res.Screenshot != "" {
			out := stepTranscript(res)
			if res.Screenshot != "" {
				out += fmt.Sprintf("[[ATTACHMENT|%s]]\n", res.Screenshot)
			}
			tc.CreateElement("system-out").SetText(out)
		}
	}

	doc.Indent(2)
	_, err := doc.WriteTo(r.w)
	return err
}

// stepTranscript lists each step on its own line.
func stepTranscript(res schemas.Result) string {
	var b strings.Builder
	for _, st := range res.Steps {
		fmt.Fprintf(&b, "%s: %s", st.Name, st.Status)
		if st.Detail != "" {
			fmt.Fprintf(&b, " (%s)", firstLine(st.Detail))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func setCounts(el *etree.Element, s schemas.Summary) {
	el.CreateAttr("tests", strconv.Itoa(s.Total))
	el.CreateAttr("failures", strconv.Itoa(s.Failed))
	el.CreateAttr("errors", strconv.Itoa(s.Errored))
	el.CreateAttr("skipped", strconv.Itoa(s.Skipped))
}

func (r *JUnitReporter) Close() error { return r.w.Close() }
