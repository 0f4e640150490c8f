// Package probe implements the polling primitives that decide whether a page has reached an
// expected state: awaiting a CSS selector, text or script result until it holds or a timeout
// elapses, and one-shot finds for checking absence.
package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/webcompat/interventions-harness/framework"
	"github.com/webcompat/interventions-harness/framework/browser"
	"github.com/webcompat/interventions-harness/framework/helpers"
	"github.com/webcompat/interventions-harness/framework/opt"
)

const (
	// DefaultTimeout is how long Await* methods poll when neither the options nor the engine
	// configuration say otherwise.
	DefaultTimeout = 10 * time.Second
	// DefaultInterval is the time between DOM queries while polling.
	DefaultInterval = 250 * time.Millisecond
)

// Querier is the part of a browser page the engine needs.
type Querier interface {
	MatchCSS(ctx context.Context, selector, condition string, displayed bool) (bool, error)
	MatchText(ctx context.Context, text string, displayed bool) (bool, error)
	EvalBool(ctx context.Context, script string) (bool, error)
}

// Options modify a single await or find.
type Options struct {
	// IsDisplayed requires a match to be laid out and visible, not just present.
	IsDisplayed bool
	// Condition narrows a CSS match with a JS expression over "elem".
	Condition string
	// Timeout overrides the engine's default timeout. It is ignored by Find* methods.
	Timeout opt.Maybe[time.Duration]
}

// Displayed is shorthand for Options{IsDisplayed: true}.
func Displayed() Options { return Options{IsDisplayed: true} }

// WithTimeout returns a copy of the options with a timeout override.
func (o Options) WithTimeout(d time.Duration) Options {
	o.Timeout = opt.Some(d)
	return o
}

// Config holds engine-wide settings.
type Config struct {
	DefaultTimeout time.Duration
	Interval       time.Duration
	DebugLogger    framework.Logger
}

// Observation records the outcome of the most recent probe, for diagnostics.
type Observation struct {
	Probe    string        `json:"probe"`
	Await    bool          `json:"await"`
	Value    bool          `json:"value"`
	Queries  int           `json:"queries"`
	Elapsed  time.Duration `json:"elapsed"`
	Timeout  time.Duration `json:"timeout,omitempty"`
	LastErr  string        `json:"lastError,omitempty"`
	Finished time.Time     `json:"finished"`
}

func (o Observation) String() string {
	verb := "find"
	if o.Await {
		verb = "await"
	}
	s := fmt.Sprintf("%s %s = %t after %d queries in %s", verb, o.Probe, o.Value, o.Queries, o.Elapsed)
	if o.LastErr != "" {
		s += " (last error: " + o.LastErr + ")"
	}
	return s
}

// Engine polls a Querier. It is safe for use by one goroutine at a time, which is how sessions
// use it.
type Engine struct {
	querier Querier
	config  Config
	last    opt.Maybe[Observation]
	lock    sync.Mutex
}

func NewEngine(querier Querier, config Config) *Engine {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultTimeout
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.DebugLogger == nil {
		config.DebugLogger = framework.NullLogger()
	}
	return &Engine{querier: querier, config: config}
}

// TimeoutFor returns the timeout an await with these options would use.
func (e *Engine) TimeoutFor(opts Options) time.Duration {
	return opts.Timeout.OrElse(e.config.DefaultTimeout)
}

// LastObservation returns the outcome of the most recent await or find, if any.
func (e *Engine) LastObservation() opt.Maybe[Observation] {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.last
}

func (e *Engine) AwaitCSS(ctx context.Context, selector string, opts Options) (bool, error) {
	return e.await(ctx, describeCSS(selector, opts), e.TimeoutFor(opts), func(ctx context.Context) (bool, error) {
		return e.querier.MatchCSS(ctx, selector, opts.Condition, opts.IsDisplayed)
	})
}

func (e *Engine) AwaitText(ctx context.Context, text string, opts Options) (bool, error) {
	return e.await(ctx, describeText(text, opts), e.TimeoutFor(opts), func(ctx context.Context) (bool, error) {
		return e.querier.MatchText(ctx, text, opts.IsDisplayed)
	})
}

// AwaitScript polls until script returns a truthy value. Only opts.Timeout is used.
func (e *Engine) AwaitScript(ctx context.Context, script string, opts Options) (bool, error) {
	return e.await(ctx, describeScript(script), e.TimeoutFor(opts), func(ctx context.Context) (bool, error) {
		return e.querier.EvalBool(ctx, script)
	})
}

func (e *Engine) FindCSS(ctx context.Context, selector string, opts Options) (bool, error) {
	return e.find(ctx, describeCSS(selector, opts), func(ctx context.Context) (bool, error) {
		return e.querier.MatchCSS(ctx, selector, opts.Condition, opts.IsDisplayed)
	})
}

func (e *Engine) FindText(ctx context.Context, text string, opts Options) (bool, error) {
	return e.find(ctx, describeText(text, opts), func(ctx context.Context) (bool, error) {
		return e.querier.MatchText(ctx, text, opts.IsDisplayed)
	})
}

func (e *Engine) FindScript(ctx context.Context, script string) (bool, error) {
	return e.find(ctx, describeScript(script), func(ctx context.Context) (bool, error) {
		return e.querier.EvalBool(ctx, script)
	})
}

// await never reports a timeout as an error. Query errors while polling are treated as "not
// yet", since a page that is still loading can fail queries; only a closed page or a done
// context end the poll early.
func (e *Engine) await(
	ctx context.Context,
	description string,
	timeout time.Duration,
	query func(context.Context) (bool, error),
) (bool, error) {
	obs := Observation{Probe: description, Await: true, Timeout: timeout}
	start := time.Now()
	ok, err := helpers.PollUntil(ctx, timeout, e.config.Interval, func(ctx context.Context) (bool, error) {
		obs.Queries++
		value, err := query(ctx)
		if err != nil {
			obs.LastErr = err.Error()
			if errors.Is(err, browser.ErrPageClosed) {
				return false, err
			}
			return false, nil
		}
		return value, nil
	})
	obs.Value = ok
	obs.Elapsed = time.Since(start)
	e.record(obs)
	return ok, err
}

func (e *Engine) find(ctx context.Context, description string, query func(context.Context) (bool, error)) (bool, error) {
	obs := Observation{Probe: description, Queries: 1}
	start := time.Now()
	value, err := query(ctx)
	if err != nil {
		obs.LastErr = err.Error()
		value = false
	}
	obs.Value = value
	obs.Elapsed = time.Since(start)
	e.record(obs)
	return value, err
}

func (e *Engine) record(obs Observation) {
	obs.Finished = time.Now()
	e.lock.Lock()
	e.last = opt.Some(obs)
	e.lock.Unlock()
	e.config.DebugLogger.Printf("Probe: %s", obs)
}

func describeCSS(selector string, opts Options) string {
	s := fmt.Sprintf("css %q", selector)
	if opts.Condition != "" {
		s += " where " + opts.Condition
	}
	if opts.IsDisplayed {
		s += " (displayed)"
	}
	return s
}

func describeText(text string, opts Options) string {
	s := fmt.Sprintf("text %q", text)
	if opts.IsDisplayed {
		s += " (displayed)"
	}
	return s
}

func describeScript(script string) string {
	return fmt.Sprintf("script %q", script)
}
