package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrRunNotFound is returned by GetReport for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID      string
	Suite      string
	BaseURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    schemas.Summary
}

// Store persists run reports to PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New wraps an open pool.
func New(pool DBPool, logger *zap.Logger) *Store {
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}
}

// Connect opens a pool for url and verifies the connection. The caller
// closes the returned pool.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is not configured (TRACKERPROBE_DATABASE_URL)")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

const (
	sqlCreateRuns = `
        CREATE TABLE IF NOT EXISTS probe_runs (
            run_id      TEXT PRIMARY KEY,
            suite       TEXT NOT NULL,
            base_url    TEXT NOT NULL,
            started_at  TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL,
            total       INTEGER NOT NULL,
            passed      INTEGER NOT NULL,
            failed      INTEGER NOT NULL,
            errored     INTEGER NOT NULL,
            skipped     INTEGER NOT NULL
        );
    `
	sqlCreateResults = `
        CREATE TABLE IF NOT EXISTS probe_results (
            run_id      TEXT NOT NULL REFERENCES probe_runs(run_id) ON DELETE CASCADE,
            position    INTEGER NOT NULL,
            scenario_id TEXT NOT NULL,
            group_name  TEXT NOT NULL,
            title       TEXT NOT NULL,
            status      TEXT NOT NULL,
            detail      TEXT NOT NULL,
            steps       JSONB NOT NULL,
            started_at  TIMESTAMPTZ NOT NULL,
            duration_ns BIGINT NOT NULL,
            screenshot  TEXT NOT NULL,
            PRIMARY KEY (run_id, position)
        );
    `
	sqlInsertRun = `
        INSERT INTO probe_runs (run_id, suite, base_url, started_at, finished_at, total, passed, failed, errored, skipped)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
    `
	sqlInsertResult = `
        INSERT INTO probe_results (run_id, position, scenario_id, group_name, title, status, detail, steps, started_at, duration_ns, screenshot)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
    `
	sqlGetRun = `
        SELECT suite, base_url, started_at, finished_at
        FROM probe_runs
        WHERE run_id = $1;
    `
	sqlGetResults = `
        SELECT scenario_id, group_name, title, status, detail, steps, started_at, duration_ns, screenshot
        FROM probe_results
        WHERE run_id = $1
        ORDER BY position ASC;
    `
	sqlListRuns = `
        SELECT run_id, suite, base_url, started_at, finished_at, total, passed, failed, errored, skipped
        FROM probe_runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
)

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{sqlCreateRuns, sqlCreateResults} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SaveReport writes the run and all of its results in one transaction.
func (s *Store) SaveReport(ctx context.Context, report *schemas.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := s.insertReport(ctx, tx, report); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Persisted run report", zap.String("run_id", report.RunID), zap.Int("results", len(report.Results)))
	return nil
}

func (s *Store) insertReport(ctx context.Context, tx pgx.Tx, report *schemas.Report) error {
	sum := report.Summary()
	_, err := tx.Exec(ctx, sqlInsertRun,
		report.RunID, report.Suite, report.BaseURL,
		report.StartedAt.UTC(), report.FinishedAt.UTC(),
		sum.Total, sum.Passed, sum.Failed, sum.Errored, sum.Skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	for i, res := range report.Results {
		steps := res.Steps
		if steps == nil {
			steps = []schemas.StepResult{}
		}
		stepsJSON, err := json.Marshal(steps)
		if err != nil {
			return fmt.Errorf("failed to encode steps for %s: %w", res.ScenarioID, err)
		}
		_, err = tx.Exec(ctx, sqlInsertResult,
			report.RunID, i, res.ScenarioID, res.Group, res.Title,
			string(res.Status), res.Detail, stepsJSON,
			res.StartedAt.UTC(), int64(res.Duration), res.Screenshot,
		)
		if err != nil {
			return fmt.Errorf("failed to insert result %s (index %d): %w", res.ScenarioID, i, err)
		}
	}
	return nil
}

// GetReport loads a stored run with its results in recorded order.
func (s *Store) GetReport(ctx context.Context, runID string) (*schemas.Report, error) {
	rows, err := s.pool.Query(ctx, sqlGetRun, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	report := &schemas.Report{RunID: runID}
	found := false
	for rows.Next() {
		if err := rows.Scan(&report.Suite, &report.BaseURL, &report.StartedAt, &report.FinishedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		found = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err = s.pool.Query(ctx, sqlGetResults, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			res       schemas.Result
			status    string
			stepsJSON []byte
			duration  int64
		)
		err := rows.Scan(
			&res.ScenarioID, &res.Group, &res.Title, &status, &res.Detail,
			&stepsJSON, &res.StartedAt, &duration, &res.Screenshot,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		res.Status = schemas.Status(status)
		res.Duration = time.Duration(duration)
		if len(stepsJSON) > 0 {
			if err := json.Unmarshal(stepsJSON, &res.Steps); err != nil {
				return nil, fmt.Errorf("failed to decode steps for %s: %w", res.ScenarioID, err)
			}
			if len(res.Steps) == 0 {
				res.Steps = nil
			}
		}
		report.Results = append(report.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return report, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		err := rows.Scan(
			&r.RunID, &r.Suite, &r.BaseURL, &r.StartedAt, &r.FinishedAt,
			&r.Summary.Total, &r.Summary.Passed, &r.Summary.Failed, &r.Summary.Errored, &r.Summary.Skipped,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
