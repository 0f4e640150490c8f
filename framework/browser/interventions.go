package browser

import (
	"github.com/webcompat/interventions-harness/casedef"

	"github.com/chromedp/chromedp"
)

// InterventionSource is the boundary to whatever supplies site interventions. The harness does
// not know what the interventions are; it only asks the source how to launch a browser with
// them switched on or off.
type InterventionSource interface {
	// ExecOptions returns extra browser launch options for the given state.
	ExecOptions(state casedef.InterventionState) []chromedp.ExecAllocatorOption
	// AdjustProfile may change how the platform is emulated for the given state.
	AdjustProfile(profile Profile, state casedef.InterventionState) Profile
}

// ExtensionInterventions loads an unpacked browser extension containing the interventions when
// they are enabled, and runs with all extensions disabled otherwise.
type ExtensionInterventions struct {
	Dir string
}

func (e ExtensionInterventions) ExecOptions(state casedef.InterventionState) []chromedp.ExecAllocatorOption {
	if state != casedef.InterventionsEnabled {
		return []chromedp.ExecAllocatorOption{chromedp.Flag("disable-extensions", true)}
	}
	return []chromedp.ExecAllocatorOption{
		// the default allocator options disable extensions
		chromedp.Flag("disable-extensions", false),
		chromedp.Flag("disable-extensions-except", e.Dir),
		chromedp.Flag("load-extension", e.Dir),
	}
}

func (e ExtensionInterventions) AdjustProfile(profile Profile, _ casedef.InterventionState) Profile {
	return profile
}

// UserAgentInterventions is the simplest intervention there is: when enabled, sessions on the
// listed platforms present a different user agent.
type UserAgentInterventions struct {
	UserAgents map[casedef.Platform]string
}

func (u UserAgentInterventions) ExecOptions(casedef.InterventionState) []chromedp.ExecAllocatorOption {
	return nil
}

func (u UserAgentInterventions) AdjustProfile(profile Profile, state casedef.InterventionState) Profile {
	if state == casedef.InterventionsEnabled {
		if ua, ok := u.UserAgents[profile.Platform]; ok {
			profile.UserAgent = ua
		}
	}
	return profile
}

// NoInterventions launches identical sessions for both states. It is only useful for checking
// that a case's probes work at all.
type NoInterventions struct{}

func (NoInterventions) ExecOptions(casedef.InterventionState) []chromedp.ExecAllocatorOption {
	return nil
}

func (NoInterventions) AdjustProfile(profile Profile, _ casedef.InterventionState) Profile {
	return profile
}
