package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/webcompat/interventions-harness/casedef"
)

// ErrPageClosed is returned by Page methods once the page has been closed or the browser has
// gone away.
var ErrPageClosed = errors.New("browser page is closed")

// SessionLaunchError means a browser could not be provisioned for a platform and intervention
// state. It is fatal to the matrix entry that asked for the session, not to the suite.
type SessionLaunchError struct {
	Platform casedef.Platform
	State    casedef.InterventionState
	Err      error
}

func (e *SessionLaunchError) Error() string {
	return fmt.Sprintf("cannot launch browser for %s with %s: %s", e.Platform, e.State, e.Err)
}

func (e *SessionLaunchError) Unwrap() error { return e.Err }

// NavigationTimeoutError means the lifecycle signal for a blocking navigation did not arrive in
// time.
type NavigationTimeoutError struct {
	URL     string
	Wait    casedef.WaitMode
	Timeout time.Duration
}

func (e *NavigationTimeoutError) Error() string {
	return fmt.Sprintf("navigation to %s did not reach %q within %s", e.URL, e.Wait, e.Timeout)
}

// NavigationError means the browser refused or failed the navigation itself, for instance with
// a DNS or TLS error.
type NavigationError struct {
	URL    string
	Reason string
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %s", e.URL, e.Reason)
}
