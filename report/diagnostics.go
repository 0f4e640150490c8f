package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/webcompat/interventions-harness/framework"
	"github.com/webcompat/interventions-harness/framework/browser"
	"github.com/webcompat/interventions-harness/framework/opt"
	"github.com/webcompat/interventions-harness/framework/probe"
)

const (
	domFileName        = "dom.html"
	screenshotFileName = "screenshot.png"
	verdictFileName    = "verdict.json"
)

// Diagnostics is what was known about a session when its entry ended without passing.
type Diagnostics struct {
	Snapshot    browser.Snapshot
	Elapsed     time.Duration
	LastProbe   opt.Maybe[probe.Observation]
	DebugOutput framework.CapturedOutput
	// CaptureErr is set if the snapshot could only be partly taken.
	CaptureErr error
}

type verdictFile struct {
	RunID       string             `json:"runId"`
	ID          string             `json:"id"`
	Case        string             `json:"case"`
	URL         string             `json:"url"`
	Platform    string             `json:"platform"`
	State       string             `json:"interventions"`
	Outcome     string             `json:"outcome"`
	Phase       string             `json:"phase,omitempty"`
	StartTime   time.Time          `json:"startTime"`
	ElapsedMS   int64              `json:"elapsedMs"`
	Errors      []string           `json:"errors"`
	FinalURL    string             `json:"finalUrl,omitempty"`
	LastProbe   *probe.Observation `json:"lastProbe,omitempty"`
	CaptureErr  string             `json:"captureError,omitempty"`
	DebugOutput []string           `json:"debugOutput,omitempty"`
}

// WriteBundles writes a directory for every verdict that did not pass, at
// <dir>/<run id>/<entry>/ containing dom.html, screenshot.png and verdict.json. It returns the
// run directory. Files that have no content (for instance no screenshot because the browser never
// started) are left out, but verdict.json is always written.
func WriteBundles(dir string, summary Summary) (string, error) {
	runDir := filepath.Join(dir, summary.RunID)
	var errs []error
	for _, v := range summary.Unsuccessful() {
		if err := writeBundle(filepath.Join(runDir, bundleDirName(v)), summary.RunID, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.Entry, err))
		}
	}
	return runDir, errors.Join(errs...)
}

func bundleDirName(v Verdict) string {
	r := strings.NewReplacer("/", "_", "#", "_", " ", "-")
	return r.Replace(v.Entry.ID().String())
}

func writeBundle(dir, runID string, v Verdict) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	vf := verdictFile{
		RunID:     runID,
		ID:        v.Entry.ID().String(),
		Case:      v.Entry.Case.Name(),
		URL:       v.Entry.Case.URL,
		Platform:  string(v.Entry.Platform),
		State:     string(v.Entry.State),
		Outcome:   string(v.Outcome()),
		Phase:     v.Phase,
		StartTime: v.Result.StartTime,
		ElapsedMS: v.Result.Duration.Milliseconds(),
		Errors:    make([]string, 0, len(v.Result.Errors)),
	}
	for _, e := range v.Result.Errors {
		vf.Errors = append(vf.Errors, e.Error())
	}
	if d := v.Diagnostics; d != nil {
		vf.FinalURL = d.Snapshot.URL
		if d.LastProbe.IsDefined() {
			obs := d.LastProbe.Value()
			vf.LastProbe = &obs
		}
		if d.CaptureErr != nil {
			vf.CaptureErr = d.CaptureErr.Error()
		}
		for _, m := range d.DebugOutput {
			vf.DebugOutput = append(vf.DebugOutput, m.Time.Format(time.RFC3339Nano)+" "+m.Message)
		}
		if d.Snapshot.DOM != "" {
			if err := os.WriteFile(filepath.Join(dir, domFileName), []byte(d.Snapshot.DOM), 0o644); err != nil { //nolint:gosec
				return err
			}
		}
		if len(d.Snapshot.Screenshot) != 0 {
			if err := os.WriteFile(filepath.Join(dir, screenshotFileName), d.Snapshot.Screenshot, 0o644); err != nil { //nolint:gosec
				return err
			}
		}
	}
	data, err := json.MarshalIndent(vf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, verdictFileName), append(data, '\n'), 0o644) //nolint:gosec
}
