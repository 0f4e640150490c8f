package interventiontests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework/harness"
	"github.com/webcompat/interventions-harness/framework/opt"
	"github.com/webcompat/interventions-harness/framework/probe"
	"github.com/webcompat/interventions-harness/framework/wctest"
	"github.com/webcompat/interventions-harness/matrix"
	"github.com/webcompat/interventions-harness/report"
)

// diagnostics are captured after the entry's own context may have been cancelled
const diagnosticsTimeout = 15 * time.Second

type entryRun struct {
	entry       matrix.Entry
	suite       *suiteRunner
	t           *wctest.T
	session     *harness.Session
	phase       Phase
	diagnostics *report.Diagnostics
}

func (r *entryRun) enter(p Phase) {
	r.phase = p
	r.t.Debug("Entry phase: %s", p)
}

func (r *entryRun) execute(ctx context.Context) {
	t := r.t
	c := r.entry.Case
	r.enter(PhasePending)

	session, err := r.suite.harness.OpenSession(ctx, r.entry.Platform, r.entry.State, t.DebugLogger())
	r.suite.recordLaunch(err)
	if err != nil {
		t.Abort(err, true)
	}
	r.session = session
	t.Defer(func() {
		if err := session.Close(); err != nil {
			t.Debug("Error closing session: %s", err)
		}
	})
	// registered after Close so that it runs first
	t.Defer(r.captureDiagnostics)
	r.enter(PhaseSessionOpen)

	if err := session.Navigate(ctx, c.URL, c.NavigationWait()); err != nil {
		t.Abort(fmt.Errorf("navigating to %s: %w", c.URL, err), true)
	}
	for i, step := range c.Steps {
		t.Debug("Step %d: %s", i+1, step)
		if err := r.runStep(ctx, step); err != nil {
			t.Abort(fmt.Errorf("step %d (%s): %w", i+1, step, err), true)
		}
	}
	r.enter(PhaseNavigated)

	r.enter(PhaseProbing)
	expectation := r.entry.Expectation()
	for _, p := range expectation.Await {
		ok, err := probe.Evaluate(ctx, session, p, true)
		if err != nil {
			t.Abort(fmt.Errorf("awaiting %s: %w", p, err), true)
		}
		if !ok {
			t.Errorf("expected %s with %s, but it did not appear within %s", p, r.entry.State,
				r.awaitTimeout(p))
		}
	}
	for _, p := range expectation.Absent {
		found, err := probe.Evaluate(ctx, session, p, false)
		if err != nil {
			t.Abort(fmt.Errorf("checking %s: %w", p, err), true)
		}
		if found {
			t.Errorf("expected no %s with %s, but it was found", p, r.entry.State)
		}
	}
	r.enter(PhaseVerdicted)
}

func (r *entryRun) awaitTimeout(p casedef.Probe) time.Duration {
	if p.Timeout.IsDefined() {
		return p.Timeout.Value().Std()
	}
	return r.suite.harness.ProbeTimeout()
}

func (r *entryRun) runStep(ctx context.Context, step casedef.Step) error {
	s := r.session
	switch {
	case step.Navigate != nil:
		return s.Navigate(ctx, step.Navigate.URL, step.Navigate.Wait.OrDefault())

	case step.Follow != nil:
		f := step.Follow
		if err := r.awaitElement(ctx, f.CSS, "", false, f.Timeout); err != nil {
			return err
		}
		target, err := s.Attribute(ctx, f.CSS, f.AttributeName())
		if err != nil {
			return err
		}
		if target == "" {
			return fmt.Errorf("element %q has no %s", f.CSS, f.AttributeName())
		}
		r.t.Debug("Following %s to %s", f.AttributeName(), target)
		return s.Navigate(ctx, target, f.Wait.OrDefault())

	case step.Click != nil:
		c := step.Click
		if err := r.awaitElement(ctx, c.CSS, c.Condition, true, c.Timeout); err != nil {
			return err
		}
		clicked, err := s.Click(ctx, c.CSS, c.Condition)
		if err != nil {
			return err
		}
		if !clicked {
			return fmt.Errorf("element %q disappeared before it could be clicked", c.CSS)
		}
		return nil
	}
	return errors.New("empty step")
}

func (r *entryRun) awaitElement(
	ctx context.Context,
	selector, condition string,
	displayed bool,
	timeout opt.Maybe[casedef.Duration],
) error {
	opts := probe.Options{IsDisplayed: displayed, Condition: condition}
	if timeout.IsDefined() {
		opts = opts.WithTimeout(timeout.Value().Std())
	}
	ok, err := r.session.AwaitCSS(ctx, selector, opts)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %q did not appear within %s", selector, r.session.LastObservation().Value().Timeout)
	}
	return nil
}

func (r *entryRun) captureDiagnostics() {
	t := r.t
	if !t.Failed() || !r.suite.config.CaptureDiagnostics {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), diagnosticsTimeout)
	defer cancel()
	snapshot, err := r.session.Snapshot(ctx)
	if err != nil {
		t.Debug("Could not capture complete diagnostics: %s", err)
	}
	r.diagnostics = &report.Diagnostics{
		Snapshot:    snapshot,
		Elapsed:     time.Since(t.StartTime()),
		LastProbe:   r.session.LastObservation(),
		DebugOutput: t.DebugOutput(),
		CaptureErr:  err,
	}
}
