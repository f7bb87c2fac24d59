package probe

import (
	"errors"
	"strings"
)

// Role selects which login form variant is used.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Credential is one login attempt. Username and Password may be empty on purpose.
type Credential struct {
	Username string
	Password string
	Role     Role
}

// AuthResult is what the app showed after a login attempt.
type AuthResult struct {
	LoggedIn bool
	// Message carries the error banner text when the app rejected the login.
	Message string
}

// Rejection is the reason an upload candidate was refused before reaching the file input.
type Rejection string

const (
	RejectNotPDF     Rejection = "not-pdf"
	RejectTooLarge   Rejection = "too-large"
	RejectUnreadable Rejection = "unreadable"
)

// UploadResult is the observed outcome of SubmitAssignment.
type UploadResult struct {
	Submitted bool
	Rejection Rejection
	Message   string
	FileCount int
}

// Outcome renders the result in the same form as an UploadExpectation.
func (u UploadResult) Outcome() UploadExpectation {
	if u.Rejection != "" {
		return ExpectRejected(u.Rejection)
	}
	if u.Submitted {
		return ExpectSubmitted
	}
	return "not-submitted"
}

var (
	// ErrFileCount means the file input did not hold exactly one file after attaching.
	ErrFileCount = errors.New("unexpected file count")
	// ErrNotConfirmed means the app never showed the submission confirmation.
	ErrNotConfirmed = errors.New("submission not confirmed")
)

// LoginExpectation is the session state a login should leave behind.
type LoginExpectation string

const (
	ExpectLoggedIn  LoginExpectation = "logged-in"
	ExpectLoggedOut LoginExpectation = "logged-out"
)

// UploadExpectation is "submitted" or "rejected:<reason>".
type UploadExpectation string

const ExpectSubmitted UploadExpectation = "submitted"

// ExpectRejected builds the expectation for a local rejection.
func ExpectRejected(r Rejection) UploadExpectation {
	return UploadExpectation("rejected:" + string(r))
}

// Rejection returns the reason named by a "rejected:" expectation.
func (e UploadExpectation) Rejection() (Rejection, bool) {
	r, ok := strings.CutPrefix(string(e), "rejected:")
	return Rejection(r), ok
}

// UploadCase names the fixture to attach and the expected outcome.
type UploadCase struct {
	Fixture string
	Expect  UploadExpectation
}

// Scenario is one named, independent sequence of steps.
type Scenario struct {
	ID    string
	Group string
	Title string

	// CheckLoginUI verifies the login page controls before authenticating.
	CheckLoginUI bool
	Login        *Credential
	ExpectLogin  LoginExpectation
	// CheckDashboard verifies the landing page after a successful login.
	CheckDashboard bool
	Upload         *UploadCase
	SignOut        bool

	// Skip, when set, records the scenario as skipped with this reason.
	Skip string
}

// Suite is an ordered scenario catalog.
type Suite struct {
	Name        string
	Description string
	Scenarios   []Scenario
}

// FixtureResolver maps a fixture key to a local path. An empty path is valid.
type FixtureResolver interface {
	Resolve(name string) (string, error)
}

// Step names, in execution order.
const (
	StepLoginPage    = "ui-login-page"
	StepAuthenticate = "authenticate"
	StepDashboard    = "ui-dashboard"
	StepSubmit       = "submit-assignment"
	StepSignOut      = "sign-out"
)
