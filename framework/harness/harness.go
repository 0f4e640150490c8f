// Package harness manages the browser sessions that intervention tests run in.
//
// A Harness owns a pool of at most Config.MaxSessions concurrently open sessions. Each Session is
// bound to one platform and one intervention state, is used by one test at a time, and must be
// closed exactly once; Close is idempotent so it can be deferred unconditionally.
//
// It contains no knowledge of particular sites, but only provides a general mechanism for test
// suites to build on.
package harness

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework"
	"github.com/webcompat/interventions-harness/framework/browser"
	"github.com/webcompat/interventions-harness/framework/probe"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Harness hands out browser sessions.
type Harness struct {
	launcher  browser.Launcher
	config    Config
	profiles  map[casedef.Platform]browser.Profile
	platforms []casedef.Platform
	slots     *semaphore.Weighted
	limiter   *rate.Limiter
	logger    framework.Logger
	nextID    int
	stats     Stats
	open      map[int]*Session
	lock      sync.Mutex
}

// Stats counts session lifecycle events.
type Stats struct {
	Opened       int
	Closed       int
	LaunchFailed int
}

// Open is the number of sessions opened but not yet closed.
func (s Stats) Open() int { return s.Opened - s.Closed }

// NewHarness creates a Harness that launches pages with launcher.
func NewHarness(
	launcher browser.Launcher,
	config Config,
	debugLogger framework.Logger,
	startupOutput io.Writer,
) (*Harness, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if debugLogger == nil {
		debugLogger = framework.NullLogger()
	}
	h := &Harness{
		launcher: launcher,
		config:   config,
		profiles: make(map[casedef.Platform]browser.Profile),
		slots:    semaphore.NewWeighted(int64(config.maxSessions())),
		limiter:  newLimiter(config.launchesPerSecond()),
		logger:   debugLogger,
		open:     make(map[int]*Session),
	}
	for _, p := range config.Profiles() {
		h.profiles[p.Platform] = p
		h.platforms = append(h.platforms, p.Platform)
	}
	if startupOutput != nil {
		fmt.Fprintf(startupOutput, "Registered platforms: %v (up to %d concurrent sessions, probe timeout %s)\n",
			h.platforms, config.maxSessions(), config.probeTimeout())
	}
	return h, nil
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), int(math.Max(1, math.Ceil(perSecond))))
}

// Platforms returns the registered platforms in registration order.
func (h *Harness) Platforms() []casedef.Platform {
	return append([]casedef.Platform(nil), h.platforms...)
}

// Profile returns the emulation profile for a registered platform.
func (h *Harness) Profile(platform casedef.Platform) (browser.Profile, bool) {
	p, ok := h.profiles[platform]
	return p, ok
}

// ProbeTimeout is the default timeout for awaiting a probe.
func (h *Harness) ProbeTimeout() time.Duration { return h.config.probeTimeout() }

// OpenSession waits for a free slot in the pool and launches a page bound to platform and state.
// If the launch fails, the slot is released and the error is a *browser.SessionLaunchError.
func (h *Harness) OpenSession(
	ctx context.Context,
	platform casedef.Platform,
	state casedef.InterventionState,
	logger framework.Logger,
) (*Session, error) {
	profile, ok := h.profiles[platform]
	if !ok {
		return nil, &browser.SessionLaunchError{Platform: platform, State: state,
			Err: fmt.Errorf("platform %q is not registered", platform)}
	}
	if logger == nil {
		logger = h.logger
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return nil, &browser.SessionLaunchError{Platform: platform, State: state, Err: err}
	}
	if err := h.limiter.Wait(ctx); err != nil {
		h.slots.Release(1)
		return nil, &browser.SessionLaunchError{Platform: platform, State: state, Err: err}
	}
	page, err := h.launcher.Launch(ctx, profile, state)
	if err != nil {
		h.slots.Release(1)
		h.lock.Lock()
		h.stats.LaunchFailed++
		h.lock.Unlock()
		logger.Printf("Failed to launch %s session with %s: %s", platform, state, err)
		return nil, err
	}

	h.lock.Lock()
	h.nextID++
	s := &Session{
		id:       h.nextID,
		owner:    h,
		page:     page,
		platform: platform,
		state:    state,
		logger:   logger,
	}
	s.engine = probe.NewEngine(page, probe.Config{
		DefaultTimeout: h.config.probeTimeout(),
		Interval:       h.config.pollInterval(),
		DebugLogger:    logger,
	})
	h.open[s.id] = s
	h.stats.Opened++
	h.lock.Unlock()

	logger.Printf("Opened session %d (%s, %s)", s.id, platform, state)
	return s, nil
}

func (h *Harness) release(s *Session) {
	h.lock.Lock()
	delete(h.open, s.id)
	h.stats.Closed++
	h.lock.Unlock()
	h.slots.Release(1)
}

// Stats returns a snapshot of the session counters.
func (h *Harness) Stats() Stats {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.stats
}

// Close force-closes any sessions that are still open and reports them as a *ResourceLeakError.
func (h *Harness) Close() error {
	h.lock.Lock()
	leaked := make([]*Session, 0, len(h.open))
	for _, s := range h.open {
		leaked = append(leaked, s)
	}
	h.lock.Unlock()
	if len(leaked) == 0 {
		return nil
	}
	for _, s := range leaked {
		h.logger.Printf("Session %d (%s, %s) was never closed", s.id, s.platform, s.state)
		_ = s.Close()
	}
	return &ResourceLeakError{Open: len(leaked)}
}
