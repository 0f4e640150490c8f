package casedef

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"golang.org/x/exp/slices"
)

// Case declares one intervention check: a site, the platforms it applies to, and the probes
// that tell an enabled intervention apart from a disabled one.
//
// EnabledProbes describe what the page looks like when the intervention is active; they must
// be absent when it is not. DisabledProbes are the reverse. A case is therefore a single
// pairing of two mutually exclusive expectations rather than two independent tests.
type Case struct {
	// ID identifies the case, normally "<bug number>-<site slug>".
	ID string `yaml:"id" json:"id"`
	// Variant distinguishes several scenarios for the same site, such as "dead-link".
	Variant     string `yaml:"variant,omitempty" json:"variant,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	URL  string   `yaml:"url" json:"url"`
	Wait WaitMode `yaml:"wait,omitempty" json:"wait,omitempty"`

	// Platforms restricts the case to the listed platforms; empty means all registered ones.
	Platforms []Platform `yaml:"platforms,omitempty" json:"platforms,omitempty"`
	// SkipPlatforms excludes platforms from whatever Platforms selected.
	SkipPlatforms []Platform `yaml:"skipPlatforms,omitempty" json:"skipPlatforms,omitempty"`
	// Interventions restricts which states are checked; empty means both.
	Interventions []InterventionState `yaml:"interventions,omitempty" json:"interventions,omitempty"`

	Steps []Step `yaml:"steps,omitempty" json:"steps,omitempty"`

	EnabledProbes  []Probe `yaml:"enabled" json:"enabled"`
	DisabledProbes []Probe `yaml:"disabled" json:"disabled"`
}

// Expectation is what one branch of a case asserts: every Await probe must become true within
// its timeout, and then every Absent probe must be false on a single check.
type Expectation struct {
	State  InterventionState
	Await  []Probe
	Absent []Probe
}

var caseIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Name is the case's identity in test IDs and reports.
func (c Case) Name() string {
	if c.Variant == "" {
		return c.ID
	}
	return c.ID + "#" + c.Variant
}

func (c Case) NavigationWait() WaitMode { return c.Wait.OrDefault() }

// Expectation returns the mirrored expectation for the given branch.
func (c Case) Expectation(state InterventionState) Expectation {
	if state == InterventionsEnabled {
		return Expectation{State: state, Await: c.EnabledProbes, Absent: c.DisabledProbes}
	}
	return Expectation{State: state, Await: c.DisabledProbes, Absent: c.EnabledProbes}
}

// AppliesTo reports whether the case's platform constraints allow p.
func (c Case) AppliesTo(p Platform) bool {
	if len(c.Platforms) != 0 && !slices.Contains(c.Platforms, p) {
		return false
	}
	return !slices.Contains(c.SkipPlatforms, p)
}

// States returns the intervention states the case declares, in run order.
func (c Case) States() []InterventionState {
	if len(c.Interventions) == 0 {
		return AllInterventionStates()
	}
	var ret []InterventionState
	for _, s := range AllInterventionStates() {
		if slices.Contains(c.Interventions, s) {
			ret = append(ret, s)
		}
	}
	return ret
}

// Validate reports every problem with the declaration at once.
func (c Case) Validate() error {
	var errs []error
	if !caseIDPattern.MatchString(c.ID) {
		errs = append(errs, fmt.Errorf("invalid case id %q", c.ID))
	}
	if c.Variant != "" && !caseIDPattern.MatchString(c.Variant) {
		errs = append(errs, fmt.Errorf("invalid variant %q", c.Variant))
	}
	if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("url %q is not an absolute URL", c.URL))
	}
	if c.Wait != "" && !c.Wait.Valid() {
		errs = append(errs, fmt.Errorf("unknown wait mode %q", c.Wait))
	}
	for _, s := range c.Interventions {
		if !s.Valid() {
			errs = append(errs, fmt.Errorf("unknown intervention state %q", s))
		}
	}
	for _, p := range c.Platforms {
		if slices.Contains(c.SkipPlatforms, p) {
			errs = append(errs, fmt.Errorf("platform %q is both required and skipped", p))
		}
	}
	if len(c.EnabledProbes) == 0 && len(c.DisabledProbes) == 0 {
		errs = append(errs, errors.New("case has no enabled or disabled probes"))
	}
	for i, p := range c.EnabledProbes {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("enabled probe %d: %w", i+1, err))
		}
	}
	for i, p := range c.DisabledProbes {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("disabled probe %d: %w", i+1, err))
		}
	}
	for i, s := range c.Steps {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("case %q: %w", c.Name(), err)
	}
	return nil
}
