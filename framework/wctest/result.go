package wctest

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the terminal state of a test scope.
type Outcome string

const (
	OutcomePass  Outcome = "pass"
	OutcomeFail  Outcome = "fail"
	OutcomeError Outcome = "error"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
	Errors   []TestResult
}

type TestResult struct {
	TestID    TestID
	Outcome   Outcome
	Errors    []error
	StartTime time.Time
	Duration  time.Duration
}

// OK is true if nothing failed or errored.
func (r Results) OK() bool {
	return len(r.Failures) == 0 && len(r.Errors) == 0
}

// Unsuccessful returns the failed and errored results, in the order they finished.
func (r Results) Unsuccessful() []TestResult {
	var ret []TestResult
	for _, t := range r.Tests {
		if t.Outcome != OutcomePass {
			ret = append(ret, t)
		}
	}
	return ret
}

type TestID []string

func (t TestID) String() string {
	return strings.Join(t, "/")
}

func (t TestID) Plus(name string) TestID {
	return append(append(TestID(nil), t...), name)
}

// TestFailure is an error identifying the test it came from.
type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}

func (f TestFailure) Unwrap() error { return f.Err }
