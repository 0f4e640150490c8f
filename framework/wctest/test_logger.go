package wctest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/webcompat/interventions-harness/framework"

	"github.com/fatih/color"
)

var consoleTestErrorColor = color.New(color.FgYellow)              //nolint:gochecknoglobals
var consoleTestFailedColor = color.New(color.FgRed)                //nolint:gochecknoglobals
var consoleTestAbortedColor = color.New(color.FgMagenta)           //nolint:gochecknoglobals
var consoleTestSkippedColor = color.New(color.Faint, color.FgBlue) //nolint:gochecknoglobals
var consoleDebugOutputColor = color.New(color.Faint)               //nolint:gochecknoglobals
var allTestsPassedColor = color.New(color.FgGreen)                 //nolint:gochecknoglobals

type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput)
	TestSkipped(id TestID, reason string)
	EndLog(results Results) error
}

type nullTestLogger struct{}

func (n nullTestLogger) TestStarted(TestID)                                        {}
func (n nullTestLogger) TestError(TestID, error)                                   {}
func (n nullTestLogger) TestFinished(TestID, TestResult, framework.CapturedOutput) {}
func (n nullTestLogger) TestSkipped(TestID, string)                                {}
func (n nullTestLogger) EndLog(Results) error                                      { return nil }

// ConsoleTestLogger writes test progress to standard output. Entries may run concurrently, so
// lines from different tests can interleave; every line carries its test ID.
type ConsoleTestLogger struct {
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
}

func (c ConsoleTestLogger) TestStarted(id TestID) {
	fmt.Printf("[%s]\n", id)
}

func (c ConsoleTestLogger) TestError(id TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		_, _ = consoleTestErrorColor.Printf("  [%s] %s\n", id, line)
	}
}

func (c ConsoleTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	switch result.Outcome {
	case OutcomeFail:
		_, _ = consoleTestFailedColor.Printf("  FAILED: %s (%s)\n", id, result.Duration.Round(time.Millisecond))
	case OutcomeError:
		_, _ = consoleTestAbortedColor.Printf("  ERROR: %s (%s)\n", id, result.Duration.Round(time.Millisecond))
	}
	failed := result.Outcome != OutcomePass
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		_, _ = consoleDebugOutputColor.Println(debugOutput.Format("    DEBUG "))
	}
}

func (c ConsoleTestLogger) TestSkipped(id TestID, reason string) {
	if reason == "" {
		_, _ = consoleTestSkippedColor.Printf("  SKIPPED: %s\n", id)
	} else {
		_, _ = consoleTestSkippedColor.Printf("  SKIPPED: %s (%s)\n", id, reason)
	}
}

func (c ConsoleTestLogger) EndLog(Results) error { return nil }

// MultiTestLogger forwards everything to several loggers.
type MultiTestLogger struct {
	Loggers []TestLogger
}

func (m *MultiTestLogger) TestStarted(id TestID) {
	for _, l := range m.Loggers {
		l.TestStarted(id)
	}
}

func (m *MultiTestLogger) TestError(id TestID, err error) {
	for _, l := range m.Loggers {
		l.TestError(id, err)
	}
}

func (m *MultiTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	for _, l := range m.Loggers {
		l.TestFinished(id, result, debugOutput)
	}
}

func (m *MultiTestLogger) TestSkipped(id TestID, reason string) {
	for _, l := range m.Loggers {
		l.TestSkipped(id, reason)
	}
}

func (m *MultiTestLogger) EndLog(results Results) error {
	var errs []error
	for _, l := range m.Loggers {
		errs = append(errs, l.EndLog(results))
	}
	return errors.Join(errs...)
}

// PrintResults writes a list of failed and errored tests, or a success message.
func PrintResults(results Results) {
	printResults(os.Stdout, os.Stderr, results)
}

func printResults(out, errOut io.Writer, results Results) {
	if results.OK() {
		_, _ = allTestsPassedColor.Fprintln(out, "All tests passed")
		return
	}
	if len(results.Failures) > 0 {
		_, _ = consoleTestFailedColor.Fprintf(errOut, "FAILED TESTS (%d):\n", len(results.Failures))
		for _, f := range results.Failures {
			_, _ = consoleTestFailedColor.Fprintf(errOut, "  * %s\n", f.TestID)
		}
	}
	if len(results.Errors) > 0 {
		_, _ = consoleTestAbortedColor.Fprintf(errOut, "TESTS WITH ERRORS (%d):\n", len(results.Errors))
		for _, f := range results.Errors {
			_, _ = consoleTestAbortedColor.Fprintf(errOut, "  * %s\n", f.TestID)
		}
	}
}
