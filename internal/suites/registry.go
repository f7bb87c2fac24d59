// Package suites holds the scenario catalogs a run can select with --suite.
package suites

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/trackerprobe/internal/probe"
)

const (
	NameBlackbox = "blackbox"
	NameE2E      = "e2e"
)

var registry = map[string]func() probe.Suite{
	NameBlackbox: Blackbox,
	NameE2E:      E2E,
}

// Lookup returns a fresh copy of the named suite.
func Lookup(name string) (probe.Suite, error) {
	build, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return probe.Suite{}, fmt.Errorf("unknown suite %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return build(), nil
}

// Names lists the registered suites in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
