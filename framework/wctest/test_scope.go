package wctest

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/webcompat/interventions-harness/framework"
)

type environment struct {
	config  TestConfiguration
	results Results
	lock    sync.Mutex
}

func (e *environment) record(result TestResult) {
	e.lock.Lock()
	defer e.lock.Unlock()
	switch result.Outcome {
	case OutcomeFail:
		e.results.Failures = append(e.results.Failures, result)
	case OutcomeError:
		e.results.Errors = append(e.results.Errors, result)
	}
	e.results.Tests = append(e.results.Tests, result)
}

// T represents a test scope. It is very similar to Go's testing.T type.
//
// A T must only be used by the goroutine running its action, but sibling scopes may run
// concurrently: T.Run can be called from several goroutines at once.
type T struct {
	env         *environment
	id          TestID
	debugLogger framework.CapturingLogger
	startTime   time.Time
	failed      bool
	aborted     bool
	skipped     bool
	skipReason  string
	cleanups    []func()
	errors      []error
	helperFns   []string
}

// TestConfiguration contains options for the entire test run.
type TestConfiguration struct {
	// Filter is an optional function for determining which tests to run based on their names.
	Filter Filter

	// TestLogger receives status information about each test.
	TestLogger TestLogger

	// Context is an optional value of any type defined by the application which can be accessed
	// from tests.
	Context interface{}
}

func (c TestConfiguration) WithContext(context interface{}) TestConfiguration {
	c.Context = context
	return c
}

// Run starts a top-level test scope.
func Run(
	config TestConfiguration,
	action func(*T),
) Results {
	if config.TestLogger == nil {
		config.TestLogger = nullTestLogger{}
	}
	env := &environment{
		config: config,
	}
	t := &T{env: env}
	t.run(action)
	env.lock.Lock()
	defer env.lock.Unlock()
	return env.results
}

func (t *T) run(action func(*T)) (result TestResult) {
	t.startTime = time.Now()
	result.TestID = t.id
	result.StartTime = t.startTime
	defer func() {
		if r := recover(); r != nil {
			t.recovered(r)
		}
		// cleanups can still look at the outcome, for instance to capture diagnostics on failure
		for i := len(t.cleanups) - 1; i >= 0; i-- {
			t.runCleanup(t.cleanups[i])
		}
		if t.skipped {
			return
		}
		result.Outcome = t.Outcome()
		result.Errors = t.errors
		result.Duration = time.Since(t.startTime)
		t.env.record(result)
	}()

	action(t)
	return result
}

func (t *T) recovered(r interface{}) {
	if t.skipped {
		return
	}
	var addError error
	if _, ok := r.(*T); ok {
		if len(t.errors) == 0 {
			t.failed = true
			addError = errors.New("test failed with no failure message")
		}
	} else {
		t.aborted = true
		addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
	}
	if addError != nil {
		t.errors = append(t.errors, addError)
		t.env.config.TestLogger.TestError(t.id, addError)
	}
}

func (t *T) runCleanup(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*T); ok {
				return
			}
			t.Abort(fmt.Errorf("unexpected panic in cleanup: %+v", r), false)
		}
	}()
	fn()
}

// ID returns the full name of the current test.
func (t *T) ID() TestID {
	return t.id
}

// StartTime is when the scope started running.
func (t *T) StartTime() time.Time {
	return t.startTime
}

// Outcome is the scope's result so far: error if it was aborted, otherwise fail if anything
// failed, otherwise pass.
func (t *T) Outcome() Outcome {
	switch {
	case t.aborted:
		return OutcomeError
	case t.failed:
		return OutcomeFail
	}
	return OutcomePass
}

// Failed is true if the outcome so far is not a pass.
func (t *T) Failed() bool {
	return t.failed || t.aborted
}

// Errors returns the errors reported so far.
func (t *T) Errors() []error {
	return append([]error(nil), t.errors...)
}

// Run runs a subtest in its own scope and returns its result. A skipped subtest returns a result
// with no Outcome.
//
// This is equivalent to Go's testing.T.Run.
func (t *T) Run(name string, action func(*T)) TestResult {
	return t.RunPath(TestID{name}, action)
}

// RunPath is like Run, but the subtest's ID extends this scope's ID by several components at
// once, without creating scopes for the intermediate IDs.
func (t *T) RunPath(path TestID, action func(*T)) TestResult {
	id := append(append(TestID(nil), t.id...), path...)

	if t.env.config.Filter != nil && !t.env.config.Filter(id) {
		t.env.config.TestLogger.TestSkipped(id, "excluded by filter parameters")
		return TestResult{TestID: id}
	}
	t.env.config.TestLogger.TestStarted(id)
	c1 := &T{
		id:  id,
		env: t.env,
	}
	t.debugLogger.Attach(&c1.debugLogger) // see comments on t.DebugLogger()
	result := c1.run(action)
	t.debugLogger.Detach(&c1.debugLogger)
	if c1.skipped {
		t.env.config.TestLogger.TestSkipped(id, c1.skipReason)
	} else {
		t.env.config.TestLogger.TestFinished(id, result, c1.debugLogger.Output())
	}
	return result
}

// Errorf reports a test failure. It is equivalent to Go's testing.T.Errorf. It does not cause the
// test to terminate, but adds the failure message to the output and marks the test as failed.
//
// You will rarely use this method directly; it is part of this type's implementation of the base
// interfaces testing.T and assert.TestingT, allowing it to be called from assertion helpers.
func (t *T) Errorf(format string, args ...interface{}) {
	t.failed = true
	err := fmt.Errorf(format, args...)

	err = withStacktrace(err, callerFrames(false, t.helperFns))

	t.errors = append(t.errors, err)
	t.env.config.TestLogger.TestError(t.id, err)
}

// FailNow causes the test to immediately terminate and be marked as failed.
func (t *T) FailNow() {
	panic(t)
}

// Abort records that the test could not be carried out, as opposed to an expectation not
// holding. The outcome becomes an error regardless of any earlier failures. If terminate is true,
// the test stops immediately as with FailNow.
func (t *T) Abort(err error, terminate bool) {
	t.aborted = true
	t.errors = append(t.errors, err)
	t.env.config.TestLogger.TestError(t.id, err)
	if terminate {
		panic(t)
	}
}

// Skip causes the test to immediately terminate and be marked as skipped.
func (t *T) Skip() {
	t.skipped = true
	panic(t)
}

// SkipWithReason is equivalent to Skip but provides a message.
func (t *T) SkipWithReason(reason string) {
	t.skipReason = reason
	t.Skip()
}

// Debug writes a message to the output for this test scope.
func (t *T) Debug(message string, args ...interface{}) {
	t.debugLogger.Printf(message, args...)
}

// DebugLogger returns a Logger instance for writing output for this test scope.
//
// The output that is captured for a test will be passed to TestLogger.TestFinished at the end of
// the test. The test runner can choose whether to display this or not based on command-line
// options.
//
// When a test has subtests (created with t.Run), any output sent to the parent test's logger
// while subtests are running goes to the subtests' loggers instead.
func (t *T) DebugLogger() framework.Logger {
	return &t.debugLogger
}

// DebugOutput returns everything logged for this scope so far.
func (t *T) DebugOutput() framework.CapturedOutput {
	return t.debugLogger.Output()
}

// Defer schedules a cleanup function which is guaranteed to be called when this test scope
// exits for any reason, before its result is recorded. Unlike a Go defer statement, Defer can be
// used from within helper functions.
func (t *T) Defer(cleanupFn func()) {
	t.cleanups = append(t.cleanups, cleanupFn)
}

// Context returns the application-defined context value, if any, that was specified in the
// TestConfiguration.
func (t *T) Context() interface{} {
	return t.env.config.Context
}

// Helper marks the function that calls it as a test helper that shouldn't appear in stacktraces.
// Equivalent to Go's testing.T.Helper().
func (t *T) Helper() {
	pcs := make([]uintptr, 1)
	if runtime.Callers(2, pcs) == 0 {
		return
	}
	caller, _ := runtime.CallersFrames(pcs).Next()
	t.helperFns = append(t.helperFns, caller.Function)
}
