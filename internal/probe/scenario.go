package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
)

// ReasonRunCancelled marks scenarios never started because the run was interrupted.
const ReasonRunCancelled = "run cancelled"

func newRunID() string { return uuid.NewString() }

// stepFunc performs one step. A non-empty mismatch means the app behaved
// differently than expected; an error means the step could not be carried out.
type stepFunc func(ctx context.Context) (mismatch string, err error)

// scenarioRun accumulates the steps of one scenario.
type scenarioRun struct {
	r      *Runner
	res    *schemas.Result
	logger *zap.Logger
	halted bool
}

func (sr *scenarioRun) step(ctx context.Context, name string, fn stepFunc) schemas.Status {
	if sr.halted {
		return sr.skip(name, "previous step errored")
	}

	start := sr.r.now()
	mismatch, err := safeCall(ctx, fn)
	st := schemas.StepResult{Name: name, Duration: sr.r.now().Sub(start)}
	switch {
	case err != nil:
		st.Status, st.Detail = schemas.StatusErrored, err.Error()
		sr.halted = true
		sr.logger.Error("Step errored.", zap.String("step", name), zap.Error(err))
	case mismatch != "":
		st.Status, st.Detail = schemas.StatusFailed, mismatch
		sr.logger.Warn("Step failed.", zap.String("step", name), zap.String("detail", mismatch))
	default:
		st.Status = schemas.StatusPassed
		sr.logger.Debug("Step passed.", zap.String("step", name))
	}
	sr.res.Steps = append(sr.res.Steps, st)
	return st.Status
}

func (sr *scenarioRun) skip(name, reason string) schemas.Status {
	sr.res.Steps = append(sr.res.Steps, schemas.StepResult{Name: name, Status: schemas.StatusSkipped, Detail: reason})
	return schemas.StatusSkipped
}

// safeCall turns a panic inside fn into an error.
func safeCall(ctx context.Context, fn stepFunc) (mismatch string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return fn(ctx)
}

// RunScenario executes sc and records every step. It never returns an error:
// locator failures, timeouts and panics all end up in the Result.
func (r *Runner) RunScenario(ctx context.Context, sc Scenario) schemas.Result {
	res := schemas.Result{
		ScenarioID: sc.ID,
		Group:      sc.Group,
		Title:      sc.Title,
		StartedAt:  r.now(),
	}
	log := r.logger.With(zap.String("scenario", sc.ID))

	if sc.Skip != "" {
		res.Status, res.Detail = schemas.StatusSkipped, sc.Skip
		log.Info("Scenario skipped.", zap.String("reason", sc.Skip))
		return res
	}
	log.Info("Scenario started.", zap.String("title", sc.Title))

	sr := &scenarioRun{r: r, res: &res, logger: log}

	if sc.CheckLoginUI {
		sr.step(ctx, StepLoginPage, func(ctx context.Context) (string, error) {
			missing, err := r.CheckLoginPage(ctx)
			if err != nil {
				return "", err
			}
			return missingDetail(missing), nil
		})
	}

	loggedIn, needSignOut := false, false
	if sc.Login != nil {
		cred := *sc.Login
		expect := sc.ExpectLogin
		if expect == "" {
			expect = ExpectLoggedIn
		}
		status := sr.step(ctx, StepAuthenticate, func(ctx context.Context) (string, error) {
			auth, err := r.Authenticate(ctx, cred)
			if err != nil {
				return "", err
			}
			loggedIn = auth.LoggedIn
			observed := ExpectLoggedOut
			if auth.LoggedIn {
				observed = ExpectLoggedIn
			}
			if observed != expect {
				detail := fmt.Sprintf("expected %s, observed %s", expect, observed)
				if auth.Message != "" {
					detail += fmt.Sprintf(" (%s)", auth.Message)
				}
				return detail, nil
			}
			return "", nil
		})
		// An errored login may still have left a session behind.
		needSignOut = loggedIn || status == schemas.StatusErrored

		if sc.CheckDashboard {
			if loggedIn || sr.halted {
				sr.step(ctx, StepDashboard, func(ctx context.Context) (string, error) {
					missing, err := r.CheckDashboard(ctx, cred.Role)
					if err != nil {
						return "", err
					}
					return missingDetail(missing), nil
				})
			} else {
				sr.skip(StepDashboard, "not logged in")
			}
		}
	}

	if sc.Upload != nil {
		if loggedIn || sr.halted {
			upload := *sc.Upload
			sr.step(ctx, StepSubmit, func(ctx context.Context) (string, error) {
				path, err := r.fixtures.Resolve(upload.Fixture)
				if err != nil {
					return "", fmt.Errorf("resolve fixture %q: %w", upload.Fixture, err)
				}
				out, err := r.SubmitAssignment(ctx, path)
				if err != nil {
					if isObservation(err) {
						return err.Error(), nil
					}
					return "", err
				}
				if got := out.Outcome(); got != upload.Expect {
					detail := fmt.Sprintf("expected %s, observed %s", upload.Expect, got)
					if out.Message != "" {
						detail += fmt.Sprintf(" (%s)", out.Message)
					}
					return detail, nil
				}
				return "", nil
			})
		} else {
			sr.skip(StepSubmit, "not logged in")
		}
	}

	res.Status, res.Detail = aggregate(res.Steps)
	if res.Status == schemas.StatusFailed || res.Status == schemas.StatusErrored {
		res.Screenshot = r.captureScreenshot(ctx, sc.ID)
	}

	if sc.SignOut {
		if needSignOut {
			sr.halted = false
			sr.step(ctx, StepSignOut, func(ctx context.Context) (string, error) {
				r.SignOut(ctx)
				return "", nil
			})
		} else {
			sr.skip(StepSignOut, "not logged in")
		}
	}

	res.Duration = r.now().Sub(res.StartedAt)
	log.Info("Scenario finished.",
		zap.String("status", string(res.Status)),
		zap.String("detail", res.Detail),
		zap.Duration("duration", res.Duration),
	)
	return res
}

// aggregate derives the scenario status from its steps: errored beats failed
// beats passed. Detail names the first step that did not pass.
func aggregate(steps []schemas.StepResult) (schemas.Status, string) {
	status, detail := schemas.StatusPassed, ""
	for _, st := range steps {
		switch st.Status {
		case schemas.StatusErrored:
			if status != schemas.StatusErrored {
				status, detail = schemas.StatusErrored, st.Name+": "+firstLine(st.Detail)
			}
		case schemas.StatusFailed:
			if status == schemas.StatusPassed {
				status, detail = schemas.StatusFailed, st.Name+": "+st.Detail
			}
		}
	}
	return status, detail
}

func missingDetail(missing []string) string {
	if len(missing) == 0 {
		return ""
	}
	return "not visible: " + strings.Join(missing, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// captureScreenshot writes a PNG of the current page and returns its path, or
// "" when screenshots are off or the capture failed.
func (r *Runner) captureScreenshot(ctx context.Context, scenarioID string) string {
	if r.screenshotDir == "" || ctx.Err() != nil {
		return ""
	}
	png, err := r.session.Screenshot(ctx)
	if err != nil {
		r.logger.Warn("Failed to capture screenshot.", zap.String("scenario", scenarioID), zap.Error(err))
		return ""
	}
	if err := os.MkdirAll(r.screenshotDir, 0o755); err != nil {
		r.logger.Warn("Failed to create screenshot directory.", zap.String("dir", r.screenshotDir), zap.Error(err))
		return ""
	}
	name := fmt.Sprintf("%s-%s.png", unsafeFileChars.ReplaceAllString(scenarioID, "_"), r.now().Format("20060102T150405"))
	path := filepath.Join(r.screenshotDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		r.logger.Warn("Failed to write screenshot.", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}

// RunSuite runs every scenario of suite in order. Scenario failures never stop
// the run; cancelling ctx does, and the scenarios not yet started are recorded
// as skipped.
func (r *Runner) RunSuite(ctx context.Context, suite Suite) *schemas.Report {
	report := &schemas.Report{
		RunID:     r.newRunID(),
		Suite:     suite.Name,
		BaseURL:   r.baseURL,
		StartedAt: r.now(),
		Results:   make([]schemas.Result, 0, len(suite.Scenarios)),
	}
	log := r.logger.With(zap.String("run_id", report.RunID), zap.String("suite", suite.Name))
	log.Info("Suite started.", zap.Int("scenarios", len(suite.Scenarios)))

	for i, sc := range suite.Scenarios {
		if ctx.Err() != nil {
			log.Warn("Run cancelled, skipping remaining scenarios.", zap.Int("remaining", len(suite.Scenarios)-i))
			for _, rest := range suite.Scenarios[i:] {
				report.Results = append(report.Results, schemas.Result{
					ScenarioID: rest.ID,
					Group:      rest.Group,
					Title:      rest.Title,
					Status:     schemas.StatusSkipped,
					Detail:     ReasonRunCancelled,
					StartedAt:  r.now(),
				})
			}
			break
		}
		report.Results = append(report.Results, r.RunScenario(ctx, sc))
	}

	report.FinishedAt = r.now()
	sum := report.Summary()
	log.Info("Suite finished.",
		zap.Int("total", sum.Total),
		zap.Int("passed", sum.Passed),
		zap.Int("failed", sum.Failed),
		zap.Int("errored", sum.Errored),
		zap.Int("skipped", sum.Skipped),
		zap.Duration("duration", report.Duration()),
	)
	return report
}
