package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// anyArgs matches n arguments of any value.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func fixtureReport() *schemas.Report {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &schemas.Report{
		RunID:      "run-1",
		Suite:      "e2e",
		BaseURL:    "http://localhost:5173/",
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Results: []schemas.Result{
			{
				ScenarioID: "e2e-1", Group: "e2e", Title: "Student submits PDF", Status: schemas.StatusPassed,
				StartedAt: start, Duration: 2 * time.Second,
				Steps: []schemas.StepResult{{Name: "authenticate", Status: schemas.StatusPassed, Duration: time.Second}},
			},
			{
				ScenarioID: "e2e-2", Group: "e2e", Title: "Wrong password", Status: schemas.StatusFailed,
				Detail: "expected rejected, got accepted", StartedAt: start.Add(2 * time.Second), Duration: time.Second,
			},
		},
	}
}

func TestEnsureSchema(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateRuns)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateResults)).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	s := New(mockPool, zap.NewNop())
	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestEnsureSchema_Error(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	execErr := errors.New("permission denied")
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateRuns)).WillReturnError(execErr)

	s := New(mockPool, zap.NewNop())
	err = s.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, execErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveReport(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert the run and every result in one transaction", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		s := New(mockPool, zap.New(observedZapCore))
		report := fixtureReport()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs("run-1", "e2e", "http://localhost:5173/", report.StartedAt, report.FinishedAt, 2, 1, 1, 0, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertResult)).
			WithArgs("run-1", 0, "e2e-1", "e2e", "Student submits PDF", "passed", "", pgxmock.AnyArg(), report.StartedAt, int64(2*time.Second), "").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertResult)).
			WithArgs("run-1", 1, "e2e-2", "e2e", "Wrong password", "failed", "expected rejected, got accepted", pgxmock.AnyArg(), pgxmock.AnyArg(), int64(time.Second), "").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		require.NoError(t, s.SaveReport(ctx, report))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Equal(t, 0, observedLogs.Len())
	})

	t.Run("should roll back when a result insert fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		s := New(mockPool, zap.NewNop())
		insertErr := errors.New("unique violation")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyArgs(10)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertResult)).
			WithArgs(anyArgs(11)...).
			WillReturnError(insertErr)
		mockPool.ExpectRollback()

		err = s.SaveReport(ctx, fixtureReport())
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
		assert.Contains(t, err.Error(), "e2e-1")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should fail when begin fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectBegin().WillReturnError(errors.New("connection reset"))

		err = New(mockPool, zap.NewNop()).SaveReport(ctx, fixtureReport())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report commit failures", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		report := fixtureReport()
		report.Results = nil

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyArgs(10)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err = New(mockPool, zap.NewNop()).SaveReport(ctx, report)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetReport(t *testing.T) {
	ctx := context.Background()

	t.Run("should rebuild the report in recorded order", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		want := fixtureReport()

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetRun)).
			WithArgs("run-1").
			WillReturnRows(pgxmock.NewRows([]string{"suite", "base_url", "started_at", "finished_at"}).
				AddRow("e2e", "http://localhost:5173/", want.StartedAt, want.FinishedAt))

		cols := []string{"scenario_id", "group_name", "title", "status", "detail", "steps", "started_at", "duration_ns", "screenshot"}
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetResults)).
			WithArgs("run-1").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("e2e-1", "e2e", "Student submits PDF", "passed", "",
					[]byte(`[{"name":"authenticate","status":"passed","duration_ns":1000000000}]`),
					want.Results[0].StartedAt, int64(2*time.Second), "").
				AddRow("e2e-2", "e2e", "Wrong password", "failed", "expected rejected, got accepted",
					[]byte(`[]`), want.Results[1].StartedAt, int64(time.Second), ""))

		got, err := New(mockPool, zap.NewNop()).GetReport(ctx, "run-1")
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("GetReport mismatch (-want +got):\n%s", diff)
		}
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should return ErrRunNotFound for unknown runs", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetRun)).
			WithArgs("nope").
			WillReturnRows(pgxmock.NewRows([]string{"suite", "base_url", "started_at", "finished_at"}))

		_, err = New(mockPool, zap.NewNop()).GetReport(ctx, "nope")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRunNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate query errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetRun)).WillReturnError(errors.New("db down"))

		_, err = New(mockPool, zap.NewNop()).GetReport(ctx, "run-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query run")
	})
}

func TestListRuns(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	start := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	cols := []string{"run_id", "suite", "base_url", "started_at", "finished_at", "total", "passed", "failed", "errored", "skipped"}
	mockPool.ExpectQuery(flexibleSQLMatcher(sqlListRuns)).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("run-2", "blackbox", "http://localhost:5173/", start, start.Add(time.Minute), 22, 20, 1, 0, 1).
			AddRow("run-1", "e2e", "http://localhost:5173/", start.Add(-time.Hour), start.Add(-time.Hour+time.Minute), 12, 12, 0, 0, 0))

	runs, err := New(mockPool, zap.NewNop()).ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, schemas.Summary{Total: 22, Passed: 20, Failed: 1, Skipped: 1}, runs[0].Summary)
	assert.True(t, runs[1].Summary.OK())
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRACKERPROBE_DATABASE_URL")
}
