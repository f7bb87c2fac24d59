package suites

import (
	"fmt"

	"github.com/xkilldash9x/trackerprobe/internal/probe"
)

const demoPassword = "password"

func login(id, group, title, user, pass string, role probe.Role, expect probe.LoginExpectation) probe.Scenario {
	return probe.Scenario{
		ID:          id,
		Group:       group,
		Title:       title,
		Login:       &probe.Credential{Username: user, Password: pass, Role: role},
		ExpectLogin: expect,
		SignOut:     true,
	}
}

// displayName keeps empty and odd usernames readable in titles.
func displayName(user string) string {
	if user == "" {
		return `""`
	}
	return user
}

// Blackbox returns the login matrix: boundary values, equivalence classes and
// the decision table over username, password and role.
func Blackbox() probe.Suite {
	var sc []probe.Scenario

	// Boundary values.
	for _, u := range []string{"student1", "student2"} {
		sc = append(sc, login("bvt-valid-"+u, "bvt", "Valid student "+u+", correct password", u, demoPassword, probe.RoleStudent, probe.ExpectLoggedIn))
	}
	for _, u := range []string{"teacher1", "teacher2"} {
		sc = append(sc, login("bvt-valid-"+u, "bvt", "Valid teacher "+u+", correct password", u, demoPassword, probe.RoleTeacher, probe.ExpectLoggedIn))
	}
	for i, u := range []string{"student3", "teacher3", ""} {
		id := fmt.Sprintf("bvt-invalid-user-%d", i+1)
		sc = append(sc, login(id, "bvt", "Invalid username "+displayName(u), u, demoPassword, probe.RoleStudent, probe.ExpectLoggedOut))
	}
	sc = append(sc,
		login("bvt-empty-password", "bvt", "Empty password", "student1", "", probe.RoleStudent, probe.ExpectLoggedOut),
		login("bvt-wrong-password", "bvt", "Incorrect teacher password", "teacher1", "wrongpass", probe.RoleTeacher, probe.ExpectLoggedOut),
	)

	// Equivalence classes.
	sc = append(sc,
		login("ecp-valid-valid", "ecp", "Valid username & valid password", "student2", demoPassword, probe.RoleStudent, probe.ExpectLoggedIn),
		login("ecp-valid-invalid", "ecp", "Valid username & invalid password", "teacher2", "123456", probe.RoleTeacher, probe.ExpectLoggedOut),
		login("ecp-invalid-any", "ecp", "Invalid username & any password", "invalidUser", demoPassword, probe.RoleStudent, probe.ExpectLoggedOut),
		login("ecp-empty-any", "ecp", "Empty username & any password", "", demoPassword, probe.RoleStudent, probe.ExpectLoggedOut),
		login("ecp-special-chars", "ecp", "Username with special characters", "student!", demoPassword, probe.RoleStudent, probe.ExpectLoggedOut),
	)

	// Decision table.
	table := []struct {
		user, pass string
		role       probe.Role
		expect     probe.LoginExpectation
	}{
		{"student1", demoPassword, probe.RoleStudent, probe.ExpectLoggedIn},
		{"student2", demoPassword, probe.RoleStudent, probe.ExpectLoggedIn},
		{"teacher1", demoPassword, probe.RoleTeacher, probe.ExpectLoggedIn},
		{"teacher2", demoPassword, probe.RoleTeacher, probe.ExpectLoggedIn},
		{"student1", "wrongpass", probe.RoleStudent, probe.ExpectLoggedOut},
		{"teacher1", "", probe.RoleTeacher, probe.ExpectLoggedOut},
		{"", demoPassword, probe.RoleStudent, probe.ExpectLoggedOut},
		{"invalidUser", demoPassword, probe.RoleStudent, probe.ExpectLoggedOut},
	}
	for i, row := range table {
		title := fmt.Sprintf("%s / %s as %s", displayName(row.user), displayName(row.pass), row.role)
		sc = append(sc, login(fmt.Sprintf("dt-%d", i+1), "decision-table", title, row.user, row.pass, row.role, row.expect))
	}

	return probe.Suite{
		Name:        NameBlackbox,
		Description: "Login boundary values, equivalence classes and decision table",
		Scenarios:   sc,
	}
}
