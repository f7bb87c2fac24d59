package probe

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
	"github.com/xkilldash9x/trackerprobe/internal/config"
)

type page string

const (
	pageLogin      page = "login"
	pageDashboard  page = "dashboard"
	pageAssignment page = "assignment"
	pageSubmitted  page = "submitted"
	pageBlank      page = "blank"
)

var fakeUsers = map[string]Role{
	"student1": RoleStudent,
	"student2": RoleStudent,
	"teacher1": RoleTeacher,
	"teacher2": RoleTeacher,
}

// fakeApp models the Assignment Tracker closely enough to drive the runner
// without a browser. Waits resolve immediately: an element is either there or
// the wait fails with a timeout.
type fakeApp struct {
	mu  sync.Mutex
	sel config.Selectors

	page       page
	role       Role
	user       string
	loginError bool
	fields     map[string]string
	files      int

	// knobs
	navigateErr   error
	afterNavigate func()
	panicOnClick  string
	filesOverride *int
	noConfirm     bool
	hideElement   string
	screenshotErr error

	calls []string
}

var _ schemas.SessionContext = (*fakeApp)(nil)

func newFakeApp() *fakeApp {
	return &fakeApp{
		sel:    config.NewDefaultConfig().Target().Selectors.Parse(),
		page:   pageBlank,
		role:   RoleStudent,
		fields: map[string]string{},
	}
}

func (f *fakeApp) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeApp) called(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeApp) loggedIn() bool { return f.user != "" }

func (f *fakeApp) visible(sel schemas.Selector) bool {
	if f.hideElement != "" && sel.Value == f.hideElement {
		return false
	}
	s := f.sel
	switch f.page {
	case pageLogin:
		switch sel {
		case s.LoginTitle, s.RoleSwitchStudent, s.RoleSwitchTeacher, s.Password, s.Submit:
			return true
		case s.UsernameStudent:
			return f.role == RoleStudent
		case s.UsernameTeacher:
			return f.role == RoleTeacher
		case s.LoginError:
			return f.loginError
		}
	case pageDashboard:
		switch sel {
		case s.HeaderTitle, s.SignOut:
			return true
		case s.AssignmentLink:
			return f.role == RoleStudent
		}
	case pageAssignment:
		switch sel {
		case s.HeaderTitle, s.SignOut, s.FileInput, s.SubmitAssignment:
			return true
		}
	case pageSubmitted:
		switch sel {
		case s.HeaderTitle, s.SignOut:
			return true
		case s.SubmissionConfirmed:
			return !f.noConfirm
		}
	}
	return false
}

func (f *fakeApp) ID() string { return "fake" }

func (f *fakeApp) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("navigate %s", url)
	if f.afterNavigate != nil {
		defer f.afterNavigate()
	}
	if f.navigateErr != nil {
		return f.navigateErr
	}
	f.fields = map[string]string{}
	f.loginError = false
	f.files = 0
	if f.loggedIn() {
		// The app keeps the user in localStorage and redirects to the dashboard.
		f.page = pageDashboard
		return nil
	}
	f.page = pageLogin
	f.role = RoleStudent
	return nil
}

func (f *fakeApp) wait(ctx context.Context, sel schemas.Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.visible(sel) {
		return nil
	}
	return fmt.Errorf("wait %q timed out after 1ms: %w", sel.Value, context.DeadlineExceeded)
}

func (f *fakeApp) WaitVisible(ctx context.Context, sel schemas.Selector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("wait-visible %s", sel.Value)
	return f.wait(ctx, sel)
}

func (f *fakeApp) WaitPresent(ctx context.Context, sel schemas.Selector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("wait-present %s", sel.Value)
	return f.wait(ctx, sel)
}

func (f *fakeApp) Click(ctx context.Context, sel schemas.Selector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("click %s", sel.Value)
	if f.panicOnClick == sel.Value {
		panic("element detached from DOM")
	}
	if err := f.wait(ctx, sel); err != nil {
		return err
	}
	s := f.sel
	switch sel {
	case s.RoleSwitchTeacher:
		f.role = RoleTeacher
	case s.RoleSwitchStudent:
		f.role = RoleStudent
	case s.Submit:
		username := f.fields[s.UsernameStudent.Value]
		if f.role == RoleTeacher {
			username = f.fields[s.UsernameTeacher.Value]
		}
		password := f.fields[s.Password.Value]
		if username == "" || password == "" {
			// Blocked by the required attribute, nothing happens.
			return nil
		}
		if role, ok := fakeUsers[username]; ok && role == f.role && password == "password" {
			f.user = username
			f.page = pageDashboard
			return nil
		}
		f.loginError = true
	case s.SignOut:
		f.user = ""
		f.page = pageLogin
		f.role = RoleStudent
	case s.AssignmentLink:
		f.page = pageAssignment
		f.files = 0
	case s.SubmitAssignment:
		if f.files == 1 {
			f.page = pageSubmitted
		}
	}
	return nil
}

func (f *fakeApp) Fill(ctx context.Context, sel schemas.Selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("fill %s=%s", sel.Value, text)
	if err := f.wait(ctx, sel); err != nil {
		return err
	}
	f.fields[sel.Value] = text
	return nil
}

func (f *fakeApp) SetFiles(ctx context.Context, sel schemas.Selector, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set-files %s", strings.Join(paths, ","))
	if err := f.wait(ctx, sel); err != nil {
		return err
	}
	f.files = len(paths)
	if f.filesOverride != nil {
		f.files = *f.filesOverride
	}
	return nil
}

func (f *fakeApp) Count(ctx context.Context, sel schemas.Selector) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.visible(sel) {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeApp) Evaluate(ctx context.Context, expression string, res interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("evaluate")
	switch out := res.(type) {
	case *int:
		if strings.Contains(expression, "files.length") {
			*out = f.files
		}
	case *string:
		if strings.Contains(expression, "textContent") && f.loginError {
			*out = "Invalid username or password"
		}
	}
	return nil
}

func (f *fakeApp) Screenshot(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("screenshot")
	if f.screenshotErr != nil {
		return nil, f.screenshotErr
	}
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

func (f *fakeApp) Close(ctx context.Context) error { return nil }

// mapFixtures resolves fixture keys from a fixed table.
type mapFixtures map[string]string

func (m mapFixtures) Resolve(name string) (string, error) {
	p, ok := m[name]
	if !ok {
		return "", fmt.Errorf("unknown fixture %q", name)
	}
	return p, nil
}
