package browser

import (
	"context"
	"time"

	"github.com/webcompat/interventions-harness/casedef"
)

// Page is a live browser tab bound to one platform profile and one intervention state.
//
// Query methods (MatchCSS, MatchText, EvalBool) evaluate exactly once and never wait for the
// page to change. After Close, every method returns ErrPageClosed.
type Page interface {
	// Navigate loads url. With casedef.WaitNone it returns as soon as the browser has accepted
	// the request; with WaitLoad or WaitIdle it blocks until the matching lifecycle event or
	// returns a *NavigationTimeoutError.
	Navigate(ctx context.Context, url string, wait casedef.WaitMode) error

	// MatchCSS reports whether any element selected by selector exists, satisfies the optional
	// JS condition (an expression over "elem"), and, if displayed is true, is visible.
	MatchCSS(ctx context.Context, selector, condition string, displayed bool) (bool, error)

	// MatchText reports whether the document contains text, visibly if displayed is true.
	MatchText(ctx context.Context, text string, displayed bool) (bool, error)

	// EvalBool runs script as the body of a function and reports whether it returned a truthy
	// value.
	EvalBool(ctx context.Context, script string) (bool, error)

	// Click clicks the first visible element matching selector and condition. It returns false
	// if there was no such element.
	Click(ctx context.Context, selector, condition string) (bool, error)

	// Attribute returns an attribute of the first element matching selector, or "" if there is
	// none. "href" and "src" values are resolved to absolute URLs.
	Attribute(ctx context.Context, selector, name string) (string, error)

	// Snapshot captures the current URL, DOM and a screenshot. Parts that could not be
	// captured are left empty and reported in the error.
	Snapshot(ctx context.Context) (Snapshot, error)

	Close() error
}

// Snapshot is the page state captured for a diagnostic bundle.
type Snapshot struct {
	Time       time.Time
	URL        string
	DOM        string
	Screenshot []byte
}

// Launcher provisions pages. Each call returns a page that nothing else is using.
type Launcher interface {
	Launch(ctx context.Context, profile Profile, state casedef.InterventionState) (Page, error)
}
