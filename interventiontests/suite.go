package interventiontests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/webcompat/interventions-harness/framework/harness"
	"github.com/webcompat/interventions-harness/framework/wctest"
	"github.com/webcompat/interventions-harness/matrix"
	"github.com/webcompat/interventions-harness/report"

	"golang.org/x/sync/errgroup"
)

// DefaultParallelism is how many entries run at once if the configuration does not say.
const DefaultParallelism = 2

// ErrNoBrowser means that not a single browser session could be launched, so the run says
// nothing about the cases.
var ErrNoBrowser = errors.New("could not launch any browser session")

// SuiteConfig controls a run.
type SuiteConfig struct {
	// Parallelism bounds the number of entries running at once. The harness's own session limit
	// still applies on top of it.
	Parallelism int
	Filter      wctest.Filter
	TestLogger  wctest.TestLogger
	// CaptureDiagnostics takes a snapshot of the page when an entry fails or errors.
	CaptureDiagnostics bool
	// Output receives progress messages; nil means discard them.
	Output io.Writer
}

// SuiteResult is everything a run produced.
type SuiteResult struct {
	Results wctest.Results
	Summary report.Summary
}

// OK is true if every entry that ran passed.
func (r SuiteResult) OK() bool {
	return r.Results.OK() && r.Summary.OK()
}

// RunInterventionSuite runs entries against sessions from h. A failing entry never stops the
// others. The returned error is only non-nil if the run as a whole was meaningless: currently,
// if every attempt to launch a browser failed (ErrNoBrowser).
func RunInterventionSuite(
	ctx context.Context,
	h *harness.Harness,
	entries []matrix.Entry,
	config SuiteConfig,
) (SuiteResult, error) {
	if config.Parallelism <= 0 {
		config.Parallelism = DefaultParallelism
	}
	if config.Output == nil {
		config.Output = io.Discard
	}
	aggregator := report.NewAggregator(entries)
	r := &suiteRunner{harness: h, config: config, aggregator: aggregator}

	fmt.Fprintf(config.Output, "Running %d entries (parallelism %d, run id %s)\n",
		len(entries), config.Parallelism, aggregator.RunID())

	results := wctest.Run(wctest.TestConfiguration{
		Filter:     config.Filter,
		TestLogger: config.TestLogger,
	}, func(t *wctest.T) {
		var g errgroup.Group
		g.SetLimit(config.Parallelism)
		for _, e := range entries {
			e := e
			g.Go(func() error {
				r.runEntry(ctx, t, e)
				return nil
			})
		}
		_ = g.Wait()
	})

	result := SuiteResult{Results: results, Summary: aggregator.Summarize()}
	if err := r.launchFailure(); err != nil {
		return result, err
	}
	return result, nil
}

type suiteRunner struct {
	harness    *harness.Harness
	config     SuiteConfig
	aggregator *report.Aggregator

	launches       int
	launchFailures int
	lastLaunchErr  error
	lock           sync.Mutex
}

func (r *suiteRunner) recordLaunch(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.launches++
	if err != nil {
		r.launchFailures++
		r.lastLaunchErr = err
	}
}

func (r *suiteRunner) launchFailure() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.launches > 0 && r.launchFailures == r.launches {
		return fmt.Errorf("%w (%d attempts, last error: %s)", ErrNoBrowser, r.launches, r.lastLaunchErr)
	}
	return nil
}

func (r *suiteRunner) runEntry(ctx context.Context, parent *wctest.T, e matrix.Entry) {
	run := &entryRun{entry: e, suite: r, phase: PhasePending}
	result := parent.RunPath(e.ID(), func(t *wctest.T) {
		run.t = t
		run.execute(ctx)
	})
	if result.Outcome == "" {
		return // skipped
	}
	r.aggregator.Add(report.Verdict{
		Entry:       e,
		Result:      result,
		Phase:       string(run.phase),
		Diagnostics: run.diagnostics,
	})
}
