// Package browsertest provides an in-memory browser.Launcher for testing code that drives
// browser sessions, with scripted page content that can depend on the platform, the
// intervention state and the time since the last navigation.
package browsertest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework/browser"
)

// Element is a fake DOM element.
type Element struct {
	// Selector is compared literally with the selector passed to MatchCSS.
	Selector string
	// Condition, if set, must equal the condition passed to MatchCSS.
	Condition string
	// Text is found by MatchText as a substring.
	Text string
	// Hidden elements are in the DOM but fail a displayed check.
	Hidden bool
	// AppearsAfter delays the element relative to the last navigation.
	AppearsAfter time.Duration
	Attributes   map[string]string
	// ClickURL is where clicking the element navigates to, if anywhere.
	ClickURL string
}

// Document is the content a URL renders to.
type Document struct {
	Elements []Element
	// Scripts maps script bodies to the value EvalBool returns.
	Scripts map[string]bool
	// NavigateErr, if set, is returned by Navigate for this URL.
	NavigateErr error
}

// Site renders a document for a platform and intervention state.
type Site func(platform casedef.Platform, state casedef.InterventionState) Document

// Web maps URLs to sites. Navigating anywhere else fails with a NavigationError.
type Web map[string]Site

// Launcher is a fake browser.Launcher.
type Launcher struct {
	Web Web
	// LaunchErr, if set, decides whether a launch fails.
	LaunchErr func(platform casedef.Platform, state casedef.InterventionState) error

	pages []*Page
	lock  sync.Mutex
}

func (l *Launcher) Launch(
	ctx context.Context,
	profile browser.Profile,
	state casedef.InterventionState,
) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, &browser.SessionLaunchError{Platform: profile.Platform, State: state, Err: err}
	}
	if l.LaunchErr != nil {
		if err := l.LaunchErr(profile.Platform, state); err != nil {
			return nil, &browser.SessionLaunchError{Platform: profile.Platform, State: state, Err: err}
		}
	}
	p := &Page{Profile: profile, State: state, web: l.Web}
	l.lock.Lock()
	l.pages = append(l.pages, p)
	l.lock.Unlock()
	return p, nil
}

// Pages returns every page launched so far.
func (l *Launcher) Pages() []*Page {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]*Page(nil), l.pages...)
}

// OpenPages counts launched pages that have not been closed.
func (l *Launcher) OpenPages() int {
	n := 0
	for _, p := range l.Pages() {
		if p.CloseCount() == 0 {
			n++
		}
	}
	return n
}

// Navigation records one call to Page.Navigate.
type Navigation struct {
	URL  string
	Wait casedef.WaitMode
}

// Page is a fake browser.Page.
type Page struct {
	Profile browser.Profile
	State   casedef.InterventionState

	web         Web
	doc         Document
	navigatedAt time.Time
	url         string
	navigations []Navigation
	clicks      []string
	queries     int
	closeCount  int
	lock        sync.Mutex
}

func (p *Page) Navigate(ctx context.Context, url string, wait casedef.WaitMode) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closeCount > 0 {
		return browser.ErrPageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.navigations = append(p.navigations, Navigation{URL: url, Wait: wait})
	return p.load(url)
}

func (p *Page) load(url string) error {
	site, ok := p.web[url]
	if !ok {
		return &browser.NavigationError{URL: url, Reason: "net::ERR_NAME_NOT_RESOLVED"}
	}
	doc := site(p.Profile.Platform, p.State)
	if doc.NavigateErr != nil {
		return doc.NavigateErr
	}
	p.doc = doc
	p.url = url
	p.navigatedAt = time.Now()
	return nil
}

func (p *Page) visible(e Element, displayed bool) bool {
	if time.Since(p.navigatedAt) < e.AppearsAfter {
		return false
	}
	return !displayed || !e.Hidden
}

func (p *Page) query(ctx context.Context) error {
	if p.closeCount > 0 {
		return browser.ErrPageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.queries++
	return nil
}

func (p *Page) MatchCSS(ctx context.Context, selector, condition string, displayed bool) (bool, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.query(ctx); err != nil {
		return false, err
	}
	_, found := p.findCSS(selector, condition, displayed)
	return found, nil
}

func (p *Page) findCSS(selector, condition string, displayed bool) (Element, bool) {
	for _, e := range p.doc.Elements {
		if e.Selector == selector && (condition == "" || e.Condition == condition) && p.visible(e, displayed) {
			return e, true
		}
	}
	return Element{}, false
}

func (p *Page) MatchText(ctx context.Context, text string, displayed bool) (bool, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.query(ctx); err != nil {
		return false, err
	}
	for _, e := range p.doc.Elements {
		if e.Text != "" && strings.Contains(e.Text, text) && p.visible(e, displayed) {
			return true, nil
		}
	}
	return false, nil
}

func (p *Page) EvalBool(ctx context.Context, script string) (bool, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.query(ctx); err != nil {
		return false, err
	}
	return p.doc.Scripts[script], nil
}

func (p *Page) Click(ctx context.Context, selector, condition string) (bool, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.query(ctx); err != nil {
		return false, err
	}
	e, found := p.findCSS(selector, condition, true)
	if !found {
		return false, nil
	}
	p.clicks = append(p.clicks, selector)
	if e.ClickURL != "" {
		if err := p.load(e.ClickURL); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (p *Page) Attribute(ctx context.Context, selector, name string) (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.query(ctx); err != nil {
		return "", err
	}
	e, found := p.findCSS(selector, "", false)
	if !found {
		return "", nil
	}
	return e.Attributes[name], nil
}

func (p *Page) Snapshot(ctx context.Context) (browser.Snapshot, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closeCount > 0 {
		return browser.Snapshot{}, browser.ErrPageClosed
	}
	var dom strings.Builder
	dom.WriteString("<html><body>")
	for _, e := range p.doc.Elements {
		dom.WriteString("<div data-selector=\"" + e.Selector + "\">" + e.Text + "</div>")
	}
	dom.WriteString("</body></html>")
	return browser.Snapshot{
		Time:       time.Now(),
		URL:        p.url,
		DOM:        dom.String(),
		Screenshot: []byte("\x89PNG fake"),
	}, nil
}

func (p *Page) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closeCount++
	return nil
}

// Navigations returns every navigation requested so far.
func (p *Page) Navigations() []Navigation {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]Navigation(nil), p.navigations...)
}

// Clicks returns the selectors of every successful click.
func (p *Page) Clicks() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.clicks...)
}

// Queries counts MatchCSS, MatchText, EvalBool, Click and Attribute calls.
func (p *Page) Queries() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.queries
}

func (p *Page) CloseCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closeCount
}

// URL is the page's current address.
func (p *Page) URL() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.url
}
