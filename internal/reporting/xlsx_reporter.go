package reporting

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

var resultsHeader = []interface{}{"Scenario", "Group", "Title", "Status", "Detail", "Started", "Duration (s)", "Steps", "Screenshot"}

// XLSXReporter writes a workbook with a Results and a Summary sheet.
type XLSXReporter struct {
	w io.WriteCloser
}

func NewXLSXReporter(w io.WriteCloser) *XLSXReporter {
	return &XLSXReporter{w: w}
}

func (r *XLSXReporter) Write(report *schemas.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetRow(resultsSheet, "A1", &resultsHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(resultsSheet, "A1", "I1", bold); err != nil {
		return err
	}
	for i, res := range report.Results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			res.ScenarioID,
			res.Group,
			res.Title,
			string(res.Status),
			firstLine(res.Detail),
			res.StartedAt.Format("2006-01-02 15:04:05"),
			res.Duration.Seconds(),
			stepTranscript(res),
			res.Screenshot,
		}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(resultsSheet, "A", "A", 30); err != nil {
		return err
	}
	if err := f.SetColWidth(resultsSheet, "C", "E", 45); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	s := report.Summary()
	rows := [][]interface{}{
		{"Run ID", report.RunID},
		{"Suite", report.Suite},
		{"Target", report.BaseURL},
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duration (s)", report.Duration().Seconds()},
		{"Total", s.Total},
		{"Passed", s.Passed},
		{"Failed", s.Failed},
		{"Errored", s.Errored},
		{"Skipped", s.Skipped},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return err
	}

	if err := f.Write(r.w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (r *XLSXReporter) Close() error { return r.w.Close() }
