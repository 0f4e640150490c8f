package casedef

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Platform is a tag such as "android" or "desktop" naming a browser platform that the harness
// can provision sessions for.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformDesktop Platform = "desktop"
	PlatformIOS     Platform = "ios"
)

// InterventionState says whether site interventions are active in a session.
type InterventionState string

const (
	InterventionsEnabled  InterventionState = "enabled"
	InterventionsDisabled InterventionState = "disabled"
)

// AllInterventionStates lists both states in the order entries are run.
func AllInterventionStates() []InterventionState {
	return []InterventionState{InterventionsEnabled, InterventionsDisabled}
}

func (s InterventionState) String() string {
	return "interventions " + string(s)
}

func (s InterventionState) Valid() bool {
	return s == InterventionsEnabled || s == InterventionsDisabled
}

// ParseInterventionStates accepts "enabled", "disabled" (or "on"/"off"), or "both"/"" for
// both states.
func ParseInterventionStates(s string) ([]InterventionState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both", "all":
		return AllInterventionStates(), nil
	case "enabled", "on", "with":
		return []InterventionState{InterventionsEnabled}, nil
	case "disabled", "off", "without":
		return []InterventionState{InterventionsDisabled}, nil
	default:
		return nil, fmt.Errorf("unknown intervention state %q (expected enabled, disabled or both)", s)
	}
}

func (s *InterventionState) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	states, err := ParseInterventionStates(raw)
	if err != nil {
		return err
	}
	if len(states) != 1 {
		return fmt.Errorf("line %d: %q names more than one intervention state", node.Line, raw)
	}
	*s = states[0]
	return nil
}

// WaitMode controls how long a navigation blocks before returning control.
type WaitMode string

const (
	// WaitNone returns as soon as the navigation request has been issued. Probes that follow
	// must tolerate a page that has not loaded yet.
	WaitNone WaitMode = "none"
	// WaitLoad blocks until the document's load event.
	WaitLoad WaitMode = "load"
	// WaitIdle blocks until the browser reports the network as idle.
	WaitIdle WaitMode = "idle"
)

// DefaultWaitMode is used when a case or step does not say how to wait.
const DefaultWaitMode = WaitLoad

func (w WaitMode) Valid() bool {
	switch w {
	case WaitNone, WaitLoad, WaitIdle:
		return true
	}
	return false
}

// OrDefault returns DefaultWaitMode for an unset mode.
func (w WaitMode) OrDefault() WaitMode {
	if w == "" {
		return DefaultWaitMode
	}
	return w
}

// Duration is a time.Duration that decodes from either a Go duration string ("45s") or a bare
// number of seconds (45).
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = parsed
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return Duration(d), nil
}
