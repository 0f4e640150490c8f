package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/webcompat/interventions-harness/framework"
	"github.com/webcompat/interventions-harness/framework/browser"
	"github.com/webcompat/interventions-harness/framework/harness"
	"github.com/webcompat/interventions-harness/framework/wctest"
	"github.com/webcompat/interventions-harness/interventiontests"
	"github.com/webcompat/interventions-harness/report"

	"github.com/spf13/cobra"
)

const noInterventionSourceWarning = "Warning: no interventionsExtension or interventionUserAgents " +
	"configured; both intervention states will run the same browser"

type runParams struct {
	selectionParams
	parallel       int
	jUnitFile      string
	recordFailures string
	diagnosticsDir string
	markdown       bool
	debug          bool
	debugAll       bool
}

func newRunCommand() *cobra.Command {
	var params runParams
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the intervention cases in a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runSuite(ctx, params, chromeLauncher, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	params.selectionParams.addFlags(f)
	f.IntVar(&params.parallel, "parallel", interventiontests.DefaultParallelism, "number of entries to run at once")
	f.StringVar(&params.jUnitFile, "junit", "", "write JUnit XML output to the specified path")
	f.StringVar(&params.recordFailures, "record-failures", "",
		"record the IDs of entries that did not pass to a file, for use with --skip-file")
	f.StringVar(&params.diagnosticsDir, "diagnostics", "",
		"write a DOM snapshot and screenshot of each entry that did not pass under this directory")
	f.BoolVar(&params.markdown, "markdown", false, "print the summary as Markdown tables")
	f.BoolVar(&params.debug, "debug", false, "enable debug logging for failed tests")
	f.BoolVar(&params.debugAll, "debug-all", false, "enable debug logging for all tests and the browser")
	return cmd
}

// launcherFactory lets tests run the command without a real browser.
type launcherFactory func(harness.Config, framework.Logger) browser.Launcher

func chromeLauncher(config harness.Config, debugLogger framework.Logger) browser.Launcher {
	return browser.NewChromeLauncher(config.ChromeConfig(debugLogger))
}

func runSuite(ctx context.Context, params runParams, newLauncher launcherFactory, out io.Writer) error {
	config, _, entries, err := params.resolve()
	if err != nil {
		return err
	}
	wctest.PrintFilterDescription(out, params.filters)
	if _, ok := config.InterventionSource().(browser.NoInterventions); ok {
		fmt.Fprintln(out, noInterventionSourceWarning)
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(out, "", log.LstdFlags)
	}

	h, err := harness.NewHarness(newLauncher(config, mainDebugLogger), config, mainDebugLogger, out)
	if err != nil {
		return err
	}

	var testLogger wctest.TestLogger
	var jUnitLogger *wctest.JUnitTestLogger
	consoleLogger := wctest.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	if params.jUnitFile == "" {
		testLogger = consoleLogger
	} else {
		properties := append(wctest.FilterProperties(params.filters),
			wctest.JUnitProperty{Name: "harnessVersion", Value: version()})
		jUnitLogger = wctest.NewJUnitTestLogger(params.jUnitFile, commandName, properties)
		testLogger = &wctest.MultiTestLogger{Loggers: []wctest.TestLogger{consoleLogger, jUnitLogger}}
	}

	result, suiteErr := interventiontests.RunInterventionSuite(ctx, h, entries, interventiontests.SuiteConfig{
		Parallelism:        params.parallel,
		Filter:             params.filters.Match,
		TestLogger:         testLogger,
		CaptureDiagnostics: params.diagnosticsDir != "",
		Output:             out,
	})
	if err := h.Close(); err != nil {
		fmt.Fprintf(out, "Warning: %s\n", err)
	}

	fmt.Fprintln(out)
	if jUnitLogger != nil {
		jUnitLogger.AddProperty("runId", result.Summary.RunID)
	}
	logErr := testLogger.EndLog(result.Results)

	mode := report.ASCII
	if params.markdown {
		mode = report.Markdown
	}
	if result.Summary.Total() > 0 {
		report.PrintSummary(out, result.Summary, mode)
		fmt.Fprintln(out)
	}
	wctest.PrintResults(result.Results)

	if suiteErr != nil {
		return suiteErr
	}
	if logErr != nil {
		return fmt.Errorf("error writing log: %w", logErr)
	}
	if params.recordFailures != "" {
		if err := recordFailures(params.recordFailures, result.Summary); err != nil {
			return err
		}
	}
	if params.diagnosticsDir != "" && !result.Summary.OK() {
		runDir, err := report.WriteBundles(params.diagnosticsDir, result.Summary)
		if err != nil {
			return fmt.Errorf("error writing diagnostics: %w", err)
		}
		fmt.Fprintf(out, "Diagnostics written to %s\n", runDir)
	}
	if !result.OK() {
		return errUnsuccessful
	}
	return nil
}

func recordFailures(path string, summary report.Summary) error {
	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("cannot create suppression file: %w", err)
	}
	defer func() { _ = f.Close() }()
	for _, v := range summary.Unsuccessful() {
		fmt.Fprintln(f, v.Entry.ID())
	}
	return nil
}
