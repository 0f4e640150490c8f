// Package report collects the verdicts of a run, summarizes them per case, and writes the
// diagnostic bundles of failed entries.
package report

import (
	"sort"
	"sync"
	"time"

	"github.com/webcompat/interventions-harness/framework/wctest"
	"github.com/webcompat/interventions-harness/matrix"

	"github.com/google/uuid"
)

// Verdict is the result of one matrix entry.
type Verdict struct {
	Entry  matrix.Entry
	Result wctest.TestResult
	// Phase is the last state the entry reached, such as "navigated".
	Phase string
	// Diagnostics is captured for entries that did not pass, if the session got far enough.
	Diagnostics *Diagnostics
}

func (v Verdict) Outcome() wctest.Outcome { return v.Result.Outcome }

// Aggregator collects verdicts from concurrently running entries. It is keyed by entry identity:
// adding a second verdict for the same entry replaces the first.
type Aggregator struct {
	runID    string
	started  time.Time
	order    map[string]int
	verdicts map[string]Verdict
	lock     sync.Mutex
}

// NewAggregator creates an Aggregator for a run over entries. Summaries list verdicts in the
// order of entries, whatever order they complete in.
func NewAggregator(entries []matrix.Entry) *Aggregator {
	a := &Aggregator{
		runID:    uuid.NewString(),
		started:  time.Now(),
		order:    make(map[string]int, len(entries)),
		verdicts: make(map[string]Verdict),
	}
	for i, e := range entries {
		a.order[e.ID().String()] = i
	}
	return a
}

// RunID identifies this run in diagnostic bundles and reports.
func (a *Aggregator) RunID() string { return a.runID }

func (a *Aggregator) Add(v Verdict) {
	key := v.Entry.ID().String()
	a.lock.Lock()
	defer a.lock.Unlock()
	a.verdicts[key] = v
	if _, ok := a.order[key]; !ok {
		a.order[key] = len(a.order)
	}
}

// Len is the number of distinct entries with a verdict.
func (a *Aggregator) Len() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return len(a.verdicts)
}

// CaseBreakdown counts the outcomes of one case's entries.
type CaseBreakdown struct {
	Case  string
	Pass  int
	Fail  int
	Error int
}

func (c CaseBreakdown) Total() int { return c.Pass + c.Fail + c.Error }

func (c *CaseBreakdown) count(outcome wctest.Outcome) {
	switch outcome {
	case wctest.OutcomePass:
		c.Pass++
	case wctest.OutcomeFail:
		c.Fail++
	default:
		c.Error++
	}
}

// Summary is an immutable view of a run's verdicts.
type Summary struct {
	RunID    string
	Started  time.Time
	Elapsed  time.Duration
	Pass     int
	Fail     int
	Error    int
	Verdicts []Verdict
	PerCase  map[string]CaseBreakdown
	// Cases lists case names in the order their first entry appears in Verdicts.
	Cases []string
}

// OK is true if every entry passed.
func (s Summary) OK() bool {
	return s.Fail == 0 && s.Error == 0
}

func (s Summary) Total() int { return s.Pass + s.Fail + s.Error }

// Unsuccessful returns the verdicts that did not pass.
func (s Summary) Unsuccessful() []Verdict {
	var ret []Verdict
	for _, v := range s.Verdicts {
		if v.Outcome() != wctest.OutcomePass {
			ret = append(ret, v)
		}
	}
	return ret
}

func (a *Aggregator) Summarize() Summary {
	a.lock.Lock()
	defer a.lock.Unlock()

	s := Summary{
		RunID:    a.runID,
		Started:  a.started,
		Elapsed:  time.Since(a.started),
		Verdicts: make([]Verdict, 0, len(a.verdicts)),
		PerCase:  make(map[string]CaseBreakdown),
	}
	for _, v := range a.verdicts {
		s.Verdicts = append(s.Verdicts, v)
	}
	sort.Slice(s.Verdicts, func(i, j int) bool {
		return a.order[s.Verdicts[i].Entry.ID().String()] < a.order[s.Verdicts[j].Entry.ID().String()]
	})
	for _, v := range s.Verdicts {
		name := v.Entry.Case.Name()
		b, seen := s.PerCase[name]
		if !seen {
			b.Case = name
			s.Cases = append(s.Cases, name)
		}
		b.count(v.Outcome())
		s.PerCase[name] = b
		switch v.Outcome() {
		case wctest.OutcomePass:
			s.Pass++
		case wctest.OutcomeFail:
			s.Fail++
		default:
			s.Error++
		}
	}
	return s
}
