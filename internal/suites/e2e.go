package suites

import "github.com/xkilldash9x/trackerprobe/internal/probe"

// Fixture keys understood by the fixtures package.
const (
	FixtureValidPDF     = "valid_pdf"
	FixtureNotPDF       = "not_pdf"
	FixtureOversizedPDF = "oversized_pdf"
	FixtureNone         = "none"
)

// ReasonMultiFile is why the multi-file upload case never runs.
const ReasonMultiFile = "multi-file input not supported by the standard HTML file input"

func upload(id, title, fixture string, expect probe.UploadExpectation) probe.Scenario {
	s := login(id, "upload", title, "student1", demoPassword, probe.RoleStudent, probe.ExpectLoggedIn)
	s.Upload = &probe.UploadCase{Fixture: fixture, Expect: expect}
	return s
}

// E2E returns the full path suite: UI presence, login branches, assignment
// uploads and teacher dashboard checks.
func E2E() probe.Suite {
	uiLogin := login("ui-login", "ui", "UI element presence and student login", "student1", demoPassword, probe.RoleStudent, probe.ExpectLoggedIn)
	uiLogin.CheckLoginUI = true
	uiLogin.CheckDashboard = true

	teacherBranch := login("branch-teacher", "login-branches", "Teacher login branch", "teacher2", demoPassword, probe.RoleTeacher, probe.ExpectLoggedIn)
	teacherBranch.CheckDashboard = true

	teacher1 := login("teacher-dashboard-teacher1", "teacher-dashboard", "teacher1 reaches the dashboard", "teacher1", demoPassword, probe.RoleTeacher, probe.ExpectLoggedIn)
	teacher1.CheckDashboard = true
	teacher2 := login("teacher-dashboard-teacher2", "teacher-dashboard", "teacher2 reaches the dashboard", "teacher2", demoPassword, probe.RoleTeacher, probe.ExpectLoggedIn)
	teacher2.CheckDashboard = true

	return probe.Suite{
		Name:        NameE2E,
		Description: "UI presence, login branches, assignment upload and teacher dashboard",
		Scenarios: []probe.Scenario{
			uiLogin,
			login("branch-student", "login-branches", "Student login branch", "student2", demoPassword, probe.RoleStudent, probe.ExpectLoggedIn),
			teacherBranch,
			login("branch-failure", "login-branches", "Login failure branch", "student1", "wrongpassword", probe.RoleStudent, probe.ExpectLoggedOut),

			upload("upload-valid-pdf", "Valid PDF under 50 MB", FixtureValidPDF, probe.ExpectSubmitted),
			upload("upload-not-pdf", "Not a PDF", FixtureNotPDF, probe.ExpectRejected(probe.RejectNotPDF)),
			upload("upload-oversized", "File over 50 MB", FixtureOversizedPDF, probe.ExpectRejected(probe.RejectTooLarge)),
			upload("upload-no-file", "Upload with no file", FixtureNone, probe.ExpectRejected(probe.RejectNotPDF)),
			{
				ID:    "upload-multiple",
				Group: "upload",
				Title: "Upload multiple files",
				Skip:  ReasonMultiFile,
			},

			teacher1,
			login("teacher-dashboard-wrong-password", "teacher-dashboard", "teacher2 with a wrong password", "teacher2", "wrongpass", probe.RoleTeacher, probe.ExpectLoggedOut),
			teacher2,
		},
	}
}
