package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultQueryTimeout      = 10 * time.Second
	defaultLaunchTimeout     = 30 * time.Second

	// lifecycle events are buffered so the listener never blocks the chromedp event loop
	lifecycleBufferSize = 256
)

// ChromeConfig controls how ChromeLauncher starts browsers.
type ChromeConfig struct {
	// ExecPath is the browser binary; empty means let chromedp find one.
	ExecPath string
	Headless bool
	// NoSandbox is usually needed when running as root inside containers.
	NoSandbox bool

	NavigationTimeout time.Duration
	// QueryTimeout bounds a single DOM query so a hung renderer cannot stall a one-shot check.
	QueryTimeout  time.Duration
	LaunchTimeout time.Duration

	Interventions InterventionSource
	DebugLogger   framework.Logger
}

// ChromeLauncher starts one Chrome process per session through chromedp.
type ChromeLauncher struct {
	config ChromeConfig
}

func NewChromeLauncher(config ChromeConfig) *ChromeLauncher {
	if config.NavigationTimeout <= 0 {
		config.NavigationTimeout = defaultNavigationTimeout
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = defaultQueryTimeout
	}
	if config.LaunchTimeout <= 0 {
		config.LaunchTimeout = defaultLaunchTimeout
	}
	if config.Interventions == nil {
		config.Interventions = NoInterventions{}
	}
	if config.DebugLogger == nil {
		config.DebugLogger = framework.NullLogger()
	}
	return &ChromeLauncher{config: config}
}

func (l *ChromeLauncher) execOptions(profile Profile, state casedef.InterventionState) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.WindowSize(int(profile.Width), int(profile.Height)))
	// Both states run in the same mode. Extensions only load in the new headless mode.
	if l.config.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.config.ExecPath))
	}
	if l.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return append(opts, l.config.Interventions.ExecOptions(state)...)
}

// Launch starts a browser for the profile and state. The browser outlives ctx; ctx only bounds
// the launch itself. Failures are returned as *SessionLaunchError.
func (l *ChromeLauncher) Launch(ctx context.Context, profile Profile, state casedef.InterventionState) (Page, error) {
	profile = l.config.Interventions.AdjustProfile(profile, state)
	logger := framework.LoggerWithPrefix(l.config.DebugLogger, "["+string(profile.Platform)+"/"+string(state)+"] ")

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.execOptions(profile, state)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Printf),
		chromedp.WithErrorf(logger.Printf),
	)
	p := &chromePage{
		ctx:          browserCtx,
		navTimeout:   l.config.NavigationTimeout,
		queryTimeout: l.config.QueryTimeout,
		logger:       logger,
		cancel: func() {
			_ = chromedp.Cancel(browserCtx)
			browserCancel()
			allocCancel()
		},
	}
	chromedp.ListenTarget(browserCtx, p.onEvent)

	if err := p.start(ctx, l.config.LaunchTimeout); err != nil {
		p.cancel()
		return nil, &SessionLaunchError{Platform: profile.Platform, State: state, Err: err}
	}
	if err := p.run(ctx, l.config.LaunchTimeout, p.setupActions(profile)...); err != nil {
		p.cancel()
		return nil, &SessionLaunchError{Platform: profile.Platform, State: state, Err: err}
	}
	logger.Printf("Launched browser (%dx%d, mobile=%t)", profile.Width, profile.Height, profile.Mobile)
	return p, nil
}

// start allocates the browser. The first chromedp.Run on a context owns the browser process,
// so it must use the page's own context rather than one with a deadline; the deadline is
// enforced here instead.
func (p *chromePage) start(ctx context.Context, timeout time.Duration) error {
	result := make(chan error, 1)
	go func() { result <- chromedp.Run(p.ctx) }()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case err := <-result:
		return err
	case <-deadline.C:
		return fmt.Errorf("browser did not start within %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *chromePage) setupActions(profile Profile) []chromedp.Action {
	actions := []chromedp.Action{
		page.SetLifecycleEventsEnabled(true),
		emulation.SetDeviceMetricsOverride(profile.Width, profile.Height, profile.DeviceScale(), profile.Mobile),
	}
	if profile.Touch {
		actions = append(actions, emulation.SetTouchEmulationEnabled(true).WithMaxTouchPoints(5))
	}
	if profile.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(profile.UserAgent))
	}
	return actions
}

type chromePage struct {
	ctx          context.Context
	cancel       func()
	navTimeout   time.Duration
	queryTimeout time.Duration
	logger       framework.Logger

	lifecycle chan *page.EventLifecycleEvent
	closed    bool
	closeOnce sync.Once
	lock      sync.Mutex
}

func (p *chromePage) onEvent(ev interface{}) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	p.lock.Lock()
	ch := p.lifecycle
	p.lock.Unlock()
	if ch != nil {
		select {
		case ch <- e:
		default:
		}
	}
}

func (p *chromePage) watchLifecycle() (<-chan *page.EventLifecycleEvent, func()) {
	ch := make(chan *page.EventLifecycleEvent, lifecycleBufferSize)
	p.lock.Lock()
	p.lifecycle = ch
	p.lock.Unlock()
	return ch, func() {
		p.lock.Lock()
		p.lifecycle = nil
		p.lock.Unlock()
	}
}

// runContext derives a context for chromedp.Run from the page's browser context, bounded by
// timeout and cancelled along with ctx.
func (p *chromePage) runContext(ctx context.Context, timeout time.Duration) (context.Context, func()) {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) isClosed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed || p.ctx.Err() != nil
}

func (p *chromePage) translateError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case p.isClosed():
		return ErrPageClosed
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return err
}

func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.isClosed() {
		return ErrPageClosed
	}
	runCtx, done := p.runContext(ctx, timeout)
	defer done()
	return p.translateError(ctx, chromedp.Run(runCtx, actions...))
}

func (p *chromePage) Navigate(ctx context.Context, url string, wait casedef.WaitMode) error {
	if p.isClosed() {
		return ErrPageClosed
	}
	wait = wait.OrDefault()
	events, stopWatching := p.watchLifecycle()
	defer stopWatching()

	runCtx, done := p.runContext(ctx, p.navTimeout)
	defer done()

	p.logger.Printf("Navigating to %s (wait=%s)", url, wait)
	var res page.NavigateReturns
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res)
	}))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && !p.isClosed() {
			return &NavigationTimeoutError{URL: url, Wait: wait, Timeout: p.navTimeout}
		}
		return p.translateError(ctx, err)
	}
	if res.ErrorText != "" {
		return &NavigationError{URL: url, Reason: res.ErrorText}
	}
	if wait == casedef.WaitNone || res.LoaderID == "" {
		// an empty loader ID means a same-document navigation, which has no load event
		return nil
	}

	eventName := "load"
	if wait == casedef.WaitIdle {
		eventName = "networkIdle"
	}
	for {
		select {
		case e := <-events:
			if e.LoaderID == res.LoaderID && e.Name == eventName {
				p.logger.Printf("Reached %q for %s", eventName, url)
				return nil
			}
		case <-runCtx.Done():
			if ctx.Err() != nil || p.isClosed() {
				return p.translateError(ctx, runCtx.Err())
			}
			return &NavigationTimeoutError{URL: url, Wait: wait, Timeout: p.navTimeout}
		}
	}
}

func (p *chromePage) evalBool(ctx context.Context, expr string) (bool, error) {
	var result bool
	if err := p.run(ctx, p.queryTimeout, chromedp.Evaluate(expr, &result)); err != nil {
		return false, err
	}
	return result, nil
}

func (p *chromePage) MatchCSS(ctx context.Context, selector, condition string, displayed bool) (bool, error) {
	return p.evalBool(ctx, matchCSSScript(selector, condition, displayed))
}

func (p *chromePage) MatchText(ctx context.Context, text string, displayed bool) (bool, error) {
	return p.evalBool(ctx, matchTextScript(text, displayed))
}

func (p *chromePage) EvalBool(ctx context.Context, script string) (bool, error) {
	return p.evalBool(ctx, evalBoolScript(script))
}

func (p *chromePage) Click(ctx context.Context, selector, condition string) (bool, error) {
	return p.evalBool(ctx, clickScript(selector, condition))
}

func (p *chromePage) Attribute(ctx context.Context, selector, name string) (string, error) {
	var value string
	if err := p.run(ctx, p.queryTimeout, chromedp.Evaluate(attributeScript(selector, name), &value)); err != nil {
		return "", err
	}
	return value, nil
}

func (p *chromePage) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Time: time.Now()}
	errs := []error{
		p.run(ctx, p.queryTimeout, chromedp.Location(&snap.URL)),
		p.run(ctx, p.queryTimeout, chromedp.Evaluate(documentHTMLScript, &snap.DOM)),
		p.run(ctx, p.queryTimeout, chromedp.CaptureScreenshot(&snap.Screenshot)),
	}
	return snap, errors.Join(errs...)
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.lock.Lock()
		p.closed = true
		p.lock.Unlock()
		p.cancel()
		p.logger.Printf("Closed browser")
	})
	return nil
}
