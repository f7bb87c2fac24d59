package schemas_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		raw   string
		want  schemas.Selector
		xpath bool
	}{
		{raw: `button[type="submit"]`, want: schemas.Selector{Value: `button[type="submit"]`, By: schemas.ByQuery}},
		{raw: `//button[contains(text(),'Sign out')]`, want: schemas.Selector{Value: `//button[contains(text(),'Sign out')]`, By: schemas.BySearch}, xpath: true},
		{raw: `(//a)[1]`, want: schemas.Selector{Value: `(//a)[1]`, By: schemas.BySearch}, xpath: true},
		{raw: "  div.bg-red-50 ", want: schemas.Selector{Value: "div.bg-red-50", By: schemas.ByQuery}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := schemas.ParseSelector(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.xpath, got.IsXPath())
			assert.Equal(t, tt.want.Value, got.String())
		})
	}
	assert.True(t, schemas.ParseSelector("   ").IsZero())
}

func TestReportSummary(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &schemas.Report{
		StartedAt: start,
		Results: []schemas.Result{
			{Status: schemas.StatusPassed},
			{Status: schemas.StatusPassed},
			{Status: schemas.StatusFailed},
			{Status: schemas.StatusSkipped},
		},
	}

	assert.Equal(t, schemas.Summary{Total: 4, Passed: 2, Failed: 1, Skipped: 1}, r.Summary())
	assert.False(t, r.Summary().OK())
	assert.Zero(t, r.Duration(), "an unfinished run has no duration")

	r.FinishedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Duration())

	r.Results = r.Results[:2]
	assert.True(t, r.Summary().OK())
}
