// Package matrix expands intervention cases into the (case, platform, intervention state)
// entries that a run executes.
package matrix

import (
	"fmt"
	"strings"

	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework/wctest"

	"golang.org/x/exp/slices"
)

// Selection narrows a run. Empty fields select everything.
type Selection struct {
	Platforms []casedef.Platform
	States    []casedef.InterventionState
}

// ParseSelection builds a Selection from comma-separated command line values such as
// "android,desktop" and "enabled".
func ParseSelection(platforms []string, states string) (Selection, error) {
	var sel Selection
	for _, p := range platforms {
		for _, name := range strings.Split(p, ",") {
			if name = strings.TrimSpace(name); name != "" {
				sel.Platforms = append(sel.Platforms, casedef.Platform(name))
			}
		}
	}
	parsed, err := casedef.ParseInterventionStates(states)
	if err != nil {
		return Selection{}, err
	}
	if len(parsed) != len(casedef.AllInterventionStates()) {
		sel.States = parsed
	}
	return sel, nil
}

// CheckPlatforms returns an error if the selection names a platform that is not registered.
func (s Selection) CheckPlatforms(registered []casedef.Platform) error {
	for _, p := range s.Platforms {
		if !slices.Contains(registered, p) {
			return fmt.Errorf("platform %q is not registered (known platforms: %v)", p, registered)
		}
	}
	return nil
}

// Entry is one unit of execution: a case on one platform in one intervention state.
type Entry struct {
	Case     casedef.Case
	Platform casedef.Platform
	State    casedef.InterventionState
}

// ID is the entry's identity: the case name, the platform and the state. Verdicts are
// aggregated by it, and --run/--skip patterns are matched against it.
func (e Entry) ID() wctest.TestID {
	return wctest.TestID{e.Case.Name(), string(e.Platform), e.State.String()}
}

func (e Entry) String() string {
	return e.ID().String()
}

// Expectation is the half of the case that this entry checks.
func (e Entry) Expectation() casedef.Expectation {
	return e.Case.Expectation(e.State)
}

// Resolve expands one case. Platforms are taken in registration order, keeping those the case
// applies to and the selection allows; for each platform, states are the case's states that the
// selection allows, enabled first. A case that applies to no selected platform yields no entries.
func Resolve(c casedef.Case, registered []casedef.Platform, selection Selection) []Entry {
	var platforms []casedef.Platform
	for _, p := range registered {
		if c.AppliesTo(p) && (len(selection.Platforms) == 0 || slices.Contains(selection.Platforms, p)) {
			platforms = append(platforms, p)
		}
	}
	var states []casedef.InterventionState
	for _, s := range c.States() {
		if len(selection.States) == 0 || slices.Contains(selection.States, s) {
			states = append(states, s)
		}
	}
	entries := make([]Entry, 0, len(platforms)*len(states))
	for _, p := range platforms {
		for _, s := range states {
			entries = append(entries, Entry{Case: c, Platform: p, State: s})
		}
	}
	return entries
}

// ResolveAll expands every case, keeping the order of cases.
func ResolveAll(cases []casedef.Case, registered []casedef.Platform, selection Selection) []Entry {
	var entries []Entry
	for _, c := range cases {
		entries = append(entries, Resolve(c, registered, selection)...)
	}
	return entries
}

// Filter keeps the entries whose IDs match.
func Filter(entries []Entry, match wctest.Filter) []Entry {
	if match == nil {
		return entries
	}
	var ret []Entry
	for _, e := range entries {
		if match(e.ID()) {
			ret = append(ret, e)
		}
	}
	return ret
}
