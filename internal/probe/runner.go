package probe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
	"github.com/xkilldash9x/trackerprobe/internal/config"
	"github.com/xkilldash9x/trackerprobe/internal/wait"
)

// Runner executes scenarios against one browser session. It is not safe for
// concurrent use; scenarios share the tab and run strictly in sequence.
type Runner struct {
	session       schemas.SessionContext
	fixtures      FixtureResolver
	logger        *zap.Logger
	sel           config.Selectors
	baseURL       string
	waitOpts      wait.Options
	signOutOpts   wait.Options
	upload        config.UploadConfig
	screenshotDir string

	now      func() time.Time
	newRunID func() string
}

// NewRunner binds a runner to session using the target, wait, upload and artifact settings of cfg.
func NewRunner(session schemas.SessionContext, cfg config.Interface, fixtures FixtureResolver, logger *zap.Logger) *Runner {
	w := cfg.Wait()
	return &Runner{
		session:       session,
		fixtures:      fixtures,
		logger:        logger.Named("runner"),
		sel:           cfg.Target().Selectors.Parse(),
		baseURL:       cfg.Target().BaseURL,
		waitOpts:      wait.Options{Timeout: w.Timeout, Interval: w.PollInterval},
		signOutOpts:   wait.Options{Timeout: w.SignOutTimeout, Interval: w.PollInterval},
		upload:        cfg.Upload(),
		screenshotDir: cfg.Artifacts().ScreenshotDir,
		now:           time.Now,
		newRunID:      newRunID,
	}
}

// Authenticate drives the login form with cred and reports whether the app
// logged in. A rejected login is a result, not an error; only failures to
// drive the form are returned as errors.
func (r *Runner) Authenticate(ctx context.Context, cred Credential) (AuthResult, error) {
	log := r.logger.With(zap.String("username", cred.Username), zap.String("role", string(cred.Role)))
	log.Info("Logging in.")

	if err := r.session.Navigate(ctx, r.baseURL); err != nil {
		return AuthResult{}, err
	}

	username := r.sel.UsernameStudent
	if cred.Role == RoleTeacher {
		log.Debug("Switching role to teacher.")
		if err := r.session.WaitVisible(ctx, r.sel.RoleSwitchTeacher); err != nil {
			return AuthResult{}, fmt.Errorf("switch role: %w", err)
		}
		if err := r.session.Click(ctx, r.sel.RoleSwitchTeacher); err != nil {
			return AuthResult{}, fmt.Errorf("switch role: %w", err)
		}
		username = r.sel.UsernameTeacher
	}

	if err := r.session.Fill(ctx, username, cred.Username); err != nil {
		return AuthResult{}, fmt.Errorf("enter username: %w", err)
	}
	if err := r.session.Fill(ctx, r.sel.Password, cred.Password); err != nil {
		return AuthResult{}, fmt.Errorf("enter password: %w", err)
	}
	if err := r.session.Click(ctx, r.sel.Submit); err != nil {
		return AuthResult{}, fmt.Errorf("submit login: %w", err)
	}

	var res AuthResult
	err := wait.Until(ctx, r.waitOpts, func(ctx context.Context) (bool, error) {
		n, err := r.session.Count(ctx, r.sel.SignOut)
		if err != nil {
			return false, err
		}
		if n > 0 {
			res.LoggedIn = true
			return true, nil
		}
		n, err = r.session.Count(ctx, r.sel.LoginError)
		if err != nil {
			return false, err
		}
		if n > 0 {
			var msg string
			if err := r.session.Evaluate(ctx, textScript(r.sel.LoginError), &msg); err != nil {
				r.logger.Debug("Could not read login error text.", zap.Error(err))
			}
			res.Message = msg
			return true, nil
		}
		return false, nil
	})
	switch {
	case err == nil:
	case wait.IsTimeout(err):
		// Neither outcome appeared, e.g. the browser blocked an empty required field.
		res = AuthResult{LoggedIn: false, Message: "no login outcome observed"}
	default:
		return AuthResult{}, err
	}

	log.Info("Login outcome.", zap.Bool("logged_in", res.LoggedIn), zap.String("message", res.Message))
	return res, nil
}

// SubmitAssignment opens the first assignment and uploads path to it. Local
// rejections are returned in the result without touching the file input.
func (r *Runner) SubmitAssignment(ctx context.Context, path string) (UploadResult, error) {
	log := r.logger.With(zap.String("path", path))
	log.Info("Submitting assignment.")

	if err := r.session.WaitPresent(ctx, r.sel.AssignmentLink); err != nil {
		return UploadResult{}, fmt.Errorf("find assignment: %w", err)
	}
	// Whatever the DOM lists first; the catalog order is not under our control.
	if err := r.session.Click(ctx, r.sel.AssignmentLink); err != nil {
		return UploadResult{}, fmt.Errorf("open assignment: %w", err)
	}

	if rej, msg := ValidateUpload(path, r.upload.AllowedExtension, r.upload.MaxBytes()); rej != "" {
		log.Info("Upload rejected locally.", zap.String("reason", string(rej)), zap.String("detail", msg))
		return UploadResult{Rejection: rej, Message: msg}, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("resolve upload path: %w", err)
	}
	if err := r.session.WaitPresent(ctx, r.sel.FileInput); err != nil {
		return UploadResult{}, fmt.Errorf("find file input: %w", err)
	}
	if err := r.session.SetFiles(ctx, r.sel.FileInput, []string{abs}); err != nil {
		return UploadResult{}, fmt.Errorf("attach file: %w", err)
	}

	count := 0
	err = wait.Until(ctx, r.waitOpts, func(ctx context.Context) (bool, error) {
		if err := r.session.Evaluate(ctx, fileCountScript(r.sel.FileInput), &count); err != nil {
			return false, err
		}
		return count > 0, nil
	})
	if err != nil && !wait.IsTimeout(err) {
		return UploadResult{FileCount: count}, err
	}
	if count != 1 {
		return UploadResult{FileCount: count}, fmt.Errorf("%w: expected 1 file, found %d", ErrFileCount, count)
	}

	if err := r.session.WaitVisible(ctx, r.sel.SubmitAssignment); err != nil {
		return UploadResult{FileCount: count}, fmt.Errorf("find submit control: %w", err)
	}
	if err := r.session.Click(ctx, r.sel.SubmitAssignment); err != nil {
		return UploadResult{FileCount: count}, fmt.Errorf("submit assignment: %w", err)
	}

	if err := r.session.WaitVisible(ctx, r.sel.SubmissionConfirmed); err != nil {
		if ctx.Err() != nil {
			return UploadResult{FileCount: count}, ctx.Err()
		}
		return UploadResult{FileCount: count}, fmt.Errorf("%w: %v", ErrNotConfirmed, err)
	}

	log.Info("Assignment submitted.")
	return UploadResult{Submitted: true, FileCount: count}, nil
}

// SignOut logs out if a sign out control shows up in time. It never fails the
// caller; the return value only says whether the login form came back.
func (r *Runner) SignOut(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	opCtx, cancel := context.WithTimeout(ctx, r.signOutOpts.Timeout)
	defer cancel()

	if err := r.session.WaitVisible(opCtx, r.sel.SignOut); err != nil {
		r.logger.Info("Skipped sign out (maybe not logged in).", zap.Error(err))
		return false
	}
	if err := r.session.Click(opCtx, r.sel.SignOut); err != nil {
		r.logger.Info("Skipped sign out.", zap.Error(err))
		return false
	}
	if err := r.session.WaitVisible(ctx, r.sel.UsernameStudent); err != nil {
		r.logger.Info("Signed out but login form did not return.", zap.Error(err))
		return false
	}
	r.logger.Info("Sign out successful.")
	return true
}

// CheckLoginPage loads the login page and returns the names of controls that
// never became visible.
func (r *Runner) CheckLoginPage(ctx context.Context) ([]string, error) {
	if err := r.session.Navigate(ctx, r.baseURL); err != nil {
		return nil, err
	}
	return r.missing(ctx, []namedSelector{
		{"login_title", r.sel.LoginTitle},
		{"role_switch_student", r.sel.RoleSwitchStudent},
		{"role_switch_teacher", r.sel.RoleSwitchTeacher},
		{"username_student", r.sel.UsernameStudent},
		{"password", r.sel.Password},
		{"submit", r.sel.Submit},
	})
}

// CheckDashboard verifies the landing page after a login. Only the student
// dashboard lists assignment links.
func (r *Runner) CheckDashboard(ctx context.Context, role Role) ([]string, error) {
	checks := []namedSelector{
		{"header_title", r.sel.HeaderTitle},
		{"sign_out", r.sel.SignOut},
	}
	if role != RoleTeacher {
		checks = append(checks, namedSelector{"assignment_link", r.sel.AssignmentLink})
	}
	return r.missing(ctx, checks)
}

type namedSelector struct {
	name string
	sel  schemas.Selector
}

func (r *Runner) missing(ctx context.Context, checks []namedSelector) ([]string, error) {
	var missing []string
	for _, c := range checks {
		err := r.session.WaitVisible(ctx, c.sel)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return missing, ctx.Err()
		}
		r.logger.Debug("Expected element not visible.", zap.String("element", c.name), zap.Error(err))
		missing = append(missing, c.name)
	}
	return missing, nil
}

// isObservation reports whether err describes app behaviour rather than a
// failure to drive the browser.
func isObservation(err error) bool {
	return errors.Is(err, ErrFileCount) || errors.Is(err, ErrNotConfirmed)
}
