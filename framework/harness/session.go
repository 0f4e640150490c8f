package harness

import (
	"context"
	"sync"

	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework"
	"github.com/webcompat/interventions-harness/framework/browser"
	"github.com/webcompat/interventions-harness/framework/opt"
	"github.com/webcompat/interventions-harness/framework/probe"
)

var _ probe.Prober = (*Session)(nil)

// Session is a browser page leased from a Harness. It is not safe for concurrent use.
type Session struct {
	id       int
	owner    *Harness
	page     browser.Page
	engine   *probe.Engine
	platform casedef.Platform
	state    casedef.InterventionState
	logger   framework.Logger
	closed   bool
	closing  sync.Once
	lock     sync.Mutex
}

func (s *Session) ID() int                                       { return s.id }
func (s *Session) Platform() casedef.Platform                    { return s.platform }
func (s *Session) InterventionState() casedef.InterventionState { return s.state }

func (s *Session) isClosed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}

func (s *Session) Navigate(ctx context.Context, url string, wait casedef.WaitMode) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	s.logger.Printf("Navigating to %s (wait: %s)", url, wait)
	return s.page.Navigate(ctx, url, wait)
}

func (s *Session) AwaitCSS(ctx context.Context, selector string, opts probe.Options) (bool, error) {
	if s.isClosed() {
		return false, ErrSessionClosed
	}
	return s.engine.AwaitCSS(ctx, selector, opts)
}

func (s *Session) AwaitText(ctx context.Context, text string, opts probe.Options) (bool, error) {
	if s.isClosed() {
		return false, ErrSessionClosed
	}
	return s.engine.AwaitText(ctx, text, opts)
}

func (s *Session) AwaitScript(ctx context.Context, script string, opts probe.Options) (bool, error) {
	if s.isClosed() {
		return false, ErrSessionClosed
	}
	return s.engine.AwaitScript(ctx, script, opts)
}

func (s *Session) FindCSS(ctx context.Context, selector string, opts probe.Options) (bool, error) {
	if s.isClosed() {
		return false, ErrSessionClosed
	}
	return s.engine.FindCSS(ctx, selector, opts)
}

func (s *Session) FindText(ctx context.Context, text string, opts probe.Options) (bool, error) {
	if s.isClosed() {
		return false, ErrSessionClosed
	}
	return s.engine.FindText(ctx, text, opts)
}

func (s *Session) FindScript(ctx context.Context, script string) (bool, error) {
	if s.isClosed() {
		return false, ErrSessionClosed
	}
	return s.engine.FindScript(ctx, script)
}

// Click clicks the first visible element matching selector and condition, and reports whether
// there was one.
func (s *Session) Click(ctx context.Context, selector, condition string) (bool, error) {
	if s.isClosed() {
		return false, ErrSessionClosed
	}
	return s.page.Click(ctx, selector, condition)
}

func (s *Session) Attribute(ctx context.Context, selector, name string) (string, error) {
	if s.isClosed() {
		return "", ErrSessionClosed
	}
	return s.page.Attribute(ctx, selector, name)
}

func (s *Session) Snapshot(ctx context.Context) (browser.Snapshot, error) {
	if s.isClosed() {
		return browser.Snapshot{}, ErrSessionClosed
	}
	return s.page.Snapshot(ctx)
}

// LastObservation describes the most recent probe run in this session.
func (s *Session) LastObservation() opt.Maybe[probe.Observation] {
	return s.engine.LastObservation()
}

// Close shuts the page down and returns the session's slot to the pool. Only the first call has
// any effect.
func (s *Session) Close() error {
	var err error
	s.closing.Do(func() {
		s.lock.Lock()
		s.closed = true
		s.lock.Unlock()
		err = s.page.Close()
		s.owner.release(s)
		s.logger.Printf("Closed session %d", s.id)
	})
	return err
}
