package reporting

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonReport adds the derived summary to the serialized report.
type jsonReport struct {
	*schemas.Report
	Summary schemas.Summary `json:"summary"`
}

// JSONReporter writes the report as indented JSON.
type JSONReporter struct {
	w io.WriteCloser
}

func NewJSONReporter(w io.WriteCloser) *JSONReporter {
	return &JSONReporter{w: w}
}

func (r *JSONReporter) Write(report *schemas.Report) error {
	body, err := json.MarshalIndent(jsonReport{Report: report, Summary: report.Summary()}, "", "  ")
	if err != nil {
		return err
	}
	body = append(body, '\n')
	_, err = r.w.Write(body)
	return err
}

func (r *JSONReporter) Close() error { return r.w.Close() }
