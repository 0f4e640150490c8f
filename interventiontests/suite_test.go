package interventiontests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework"
	"github.com/webcompat/interventions-harness/framework/browser"
	"github.com/webcompat/interventions-harness/framework/browser/browsertest"
	"github.com/webcompat/interventions-harness/framework/harness"
	"github.com/webcompat/interventions-harness/framework/wctest"
	"github.com/webcompat/interventions-harness/matrix"
	"github.com/webcompat/interventions-harness/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	siteURL   = "https://site.test/"
	signupURL = "https://site.test/signup"
)

var (
	unsupportedText = "You are using an unsupported browser"
	loginForm       = browsertest.Element{Selector: "#txtLoginId"}
	unsupported     = browsertest.Element{Text: unsupportedText}
)

func testConfig() harness.Config {
	return harness.Config{
		DefaultProbeTimeout: casedef.Duration(100 * time.Millisecond),
		PollInterval:        casedef.Duration(5 * time.Millisecond),
		LaunchesPerSecond:   -1,
	}
}

func newTestHarness(t *testing.T, launcher browser.Launcher) *harness.Harness {
	h, err := harness.NewHarness(launcher, testConfig(), framework.NullLogger(), nil)
	require.NoError(t, err)
	return h
}

// interventionSite shows the login form only when interventions are enabled.
func interventionSite(_ casedef.Platform, state casedef.InterventionState) browsertest.Document {
	if state == casedef.InterventionsEnabled {
		return browsertest.Document{Elements: []browsertest.Element{loginForm}}
	}
	return browsertest.Document{Elements: []browsertest.Element{unsupported}}
}

// regressedSite ignores the intervention, as if the site changed its detection.
func regressedSite(casedef.Platform, casedef.InterventionState) browsertest.Document {
	return browsertest.Document{Elements: []browsertest.Element{unsupported}}
}

func loginCase() casedef.Case {
	return casedef.Case{
		ID:             "1898926-dgslms-aduacademy-in",
		URL:            siteURL,
		Wait:           casedef.WaitNone,
		Platforms:      []casedef.Platform{casedef.PlatformAndroid},
		EnabledProbes:  []casedef.Probe{casedef.CSSProbe("#txtLoginId")},
		DisabledProbes: []casedef.Probe{casedef.TextProbe(unsupportedText)},
	}
}

func entriesFor(h *harness.Harness, cases ...casedef.Case) []matrix.Entry {
	return matrix.ResolveAll(cases, h.Platforms(), matrix.Selection{})
}

func runSuite(t *testing.T, h *harness.Harness, entries []matrix.Entry, config SuiteConfig) SuiteResult {
	result, err := RunInterventionSuite(context.Background(), h, entries, config)
	require.NoError(t, err)
	return result
}

func verdictFor(t *testing.T, s report.Summary, state casedef.InterventionState) report.Verdict {
	for _, v := range s.Verdicts {
		if v.Entry.State == state {
			return v
		}
	}
	require.Failf(t, "no verdict", "no verdict for %s", state)
	return report.Verdict{}
}

func assertAllSessionsClosed(t *testing.T, h *harness.Harness, launcher *browsertest.Launcher) {
	for _, p := range launcher.Pages() {
		assert.Equal(t, 1, p.CloseCount(), "page for %s/%s", p.Profile.Platform, p.State)
	}
	assert.Equal(t, 0, h.Stats().Open())
	assert.NoError(t, h.Close())
}

func TestMirroredCasePassesInBothStates(t *testing.T) {
	launcher := &browsertest.Launcher{Web: browsertest.Web{siteURL: interventionSite}}
	h := newTestHarness(t, launcher)

	result := runSuite(t, h, entriesFor(h, loginCase()), SuiteConfig{})

	assert.True(t, result.OK())
	assert.Equal(t, 2, result.Summary.Pass)
	assert.Equal(t, 2, result.Summary.Total())
	for _, v := range result.Summary.Verdicts {
		assert.Equal(t, string(PhaseVerdicted), v.Phase)
		assert.Nil(t, v.Diagnostics)
	}
	assertAllSessionsClosed(t, h, launcher)
}

func TestRegressionFailsOnlyTheEnabledBranch(t *testing.T) {
	launcher := &browsertest.Launcher{Web: browsertest.Web{siteURL: regressedSite}}
	h := newTestHarness(t, launcher)

	result := runSuite(t, h, entriesFor(h, loginCase()), SuiteConfig{})

	assert.False(t, result.OK())
	assert.Equal(t, 1, result.Summary.Pass)
	assert.Equal(t, 1, result.Summary.Fail)

	enabled := verdictFor(t, result.Summary, casedef.InterventionsEnabled)
	assert.Equal(t, wctest.OutcomeFail, enabled.Outcome())
	assert.Equal(t, string(PhaseVerdicted), enabled.Phase)
	require.Len(t, enabled.Result.Errors, 2)
	assert.Contains(t, enabled.Result.Errors[0].Error(), "#txtLoginId")
	assert.Contains(t, enabled.Result.Errors[1].Error(), unsupportedText)

	disabled := verdictFor(t, result.Summary, casedef.InterventionsDisabled)
	assert.Equal(t, wctest.OutcomePass, disabled.Outcome())
	assertAllSessionsClosed(t, h, launcher)
}

func TestBothProbesPresentFailsBothBranches(t *testing.T) {
	launcher := &browsertest.Launcher{Web: browsertest.Web{
		siteURL: func(casedef.Platform, casedef.InterventionState) browsertest.Document {
			return browsertest.Document{Elements: []browsertest.Element{loginForm, unsupported}}
		},
	}}
	h := newTestHarness(t, launcher)

	result := runSuite(t, h, entriesFor(h, loginCase()), SuiteConfig{})

	assert.Equal(t, 2, result.Summary.Fail)
	for _, v := range result.Summary.Verdicts {
		require.Len(t, v.Result.Errors, 1)
		assert.Contains(t, v.Result.Errors[0].Error(), "but it was found")
	}
}

func TestProbeTimeoutOverrideAllowsSlowElement(t *testing.T) {
	slowSite := func(_ casedef.Platform, state casedef.InterventionState) browsertest.Document {
		if state == casedef.InterventionsEnabled {
			slow := loginForm
			slow.AppearsAfter = 250 * time.Millisecond
			return browsertest.Document{Elements: []browsertest.Element{slow}}
		}
		return browsertest.Document{Elements: []browsertest.Element{unsupported}}
	}

	t.Run("default timeout is too short", func(t *testing.T) {
		launcher := &browsertest.Launcher{Web: browsertest.Web{siteURL: slowSite}}
		h := newTestHarness(t, launcher)
		result := runSuite(t, h, entriesFor(h, loginCase()), SuiteConfig{})
		assert.Equal(t, wctest.OutcomeFail, verdictFor(t, result.Summary, casedef.InterventionsEnabled).Outcome())
		assert.Equal(t, wctest.OutcomePass, verdictFor(t, result.Summary, casedef.InterventionsDisabled).Outcome())
	})

	t.Run("override", func(t *testing.T) {
		launcher := &browsertest.Launcher{Web: browsertest.Web{siteURL: slowSite}}
		h := newTestHarness(t, launcher)
		c := loginCase()
		c.EnabledProbes[0] = c.EnabledProbes[0].WithTimeout(casedef.Duration(5 * time.Second))

		result := runSuite(t, h, entriesFor(h, c), SuiteConfig{})
		assert.True(t, result.OK())

		for _, p := range launcher.Pages() {
			navs := p.Navigations()
			require.Len(t, navs, 1)
			assert.Equal(t, browsertest.Navigation{URL: siteURL, Wait: casedef.WaitNone}, navs[0])
		}
	})
}

func TestCaseWithoutWaitModeWaitsForLoad(t *testing.T) {
	launcher := &browsertest.Launcher{Web: browsertest.Web{siteURL: interventionSite}}
	h := newTestHarness(t, launcher)
	c := loginCase()
	c.Wait = ""

	result := runSuite(t, h, entriesFor(h, c), SuiteConfig{})

	assert.True(t, result.OK())
	for _, p := range launcher.Pages() {
		assert.Equal(t, casedef.WaitLoad, p.Navigations()[0].Wait)
	}
}

func TestSessionsAreClosedExactlyOnceWhateverHappens(t *testing.T) {
	launcher := &browsertest.Launcher{Web: browsertest.Web{
		siteURL: func(_ casedef.Platform, state casedef.InterventionState) browsertest.Document {
			if state == casedef.InterventionsDisabled {
				panic("site exploded")
			}
			return interventionSite(casedef.PlatformAndroid, state)
		},
	}}
	h := newTestHarness(t, launcher)

	result := runSuite(t, h, entriesFor(h, loginCase()), SuiteConfig{})

	assert.Equal(t, wctest.OutcomePass, verdictFor(t, result.Summary, casedef.InterventionsEnabled).Outcome())
	crashed := verdictFor(t, result.Summary, casedef.InterventionsDisabled)
	assert.Equal(t, wctest.OutcomeError, crashed.Outcome())
	require.NotEmpty(t, crashed.Result.Errors)
	assert.Contains(t, crashed.Result.Errors[0].Error(), "site exploded")
	assert.Equal(t, string(PhaseSessionOpen), crashed.Phase)

	require.Len(t, launcher.Pages(), 2)
	assertAllSessionsClosed(t, h, launcher)
}

func TestLaunchFailureIsAnErrorVerdict(t *testing.T) {
	launcher := &browsertest.Launcher{
		Web: browsertest.Web{siteURL: interventionSite},
		LaunchErr: func(_ casedef.Platform, state casedef.InterventionState) error {
			if state == casedef.InterventionsDisabled {
				return errors.New("no such binary")
			}
			return nil
		},
	}
	h := newTestHarness(t, launcher)

	result := runSuite(t, h, entriesFor(h, loginCase()), SuiteConfig{})

	assert.Equal(t, 1, result.Summary.Pass)
	assert.Equal(t, 1, result.Summary.Error)
	failed := verdictFor(t, result.Summary, casedef.InterventionsDisabled)
	assert.Equal(t, string(PhasePending), failed.Phase)
	var launchErr *browser.SessionLaunchError
	require.NotEmpty(t, failed.Result.Errors)
	assert.ErrorAs(t, failed.Result.Errors[0], &launchErr)
	assertAllSessionsClosed(t, h, launcher)
}

func TestRunFailsIfNoBrowserCanBeLaunched(t *testing.T) {
	launcher := &browsertest.Launcher{
		LaunchErr: func(casedef.Platform, casedef.InterventionState) error {
			return errors.New("chrome not found")
		},
	}
	h := newTestHarness(t, launcher)

	result, err := RunInterventionSuite(context.Background(), h, entriesFor(h, loginCase()), SuiteConfig{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoBrowser)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.Equal(t, 2, result.Summary.Error)
}

func TestNavigationFailureIsAnErrorVerdict(t *testing.T) {
	launcher := &browsertest.Launcher{Web: browsertest.Web{
		siteURL: func(casedef.Platform, casedef.InterventionState) browsertest.Document {
			return browsertest.Document{NavigateErr: &browser.NavigationTimeoutError{URL: siteURL, Timeout: time.Second}}
		},
	}}
	h := newTestHarness(t, launcher)

	result := runSuite(t, h, entriesFor(h, loginCase()), SuiteConfig{})

	assert.Equal(t, 2, result.Summary.Error)
	for _, v := range result.Summary.Verdicts {
		assert.Equal(t, string(PhaseSessionOpen), v.Phase)
		var timeoutErr *browser.NavigationTimeoutError
		require.NotEmpty(t, v.Result.Errors)
		assert.ErrorAs(t, v.Result.Errors[0], &timeoutErr)
	}
	assertAllSessionsClosed(t, h, launcher)
}

func TestClickStep(t *testing.T) {
	const condition = "elem.innerText.includes('Try for free')"
	launcher := &browsertest.Launcher{Web: browsertest.Web{
		siteURL: func(casedef.Platform, casedef.InterventionState) browsertest.Document {
			return browsertest.Document{Elements: []browsertest.Element{
				{Selector: "a", Text: "Pricing"},
				{Selector: "a", Condition: condition, Text: "Try for free", ClickURL: signupURL},
			}}
		},
		signupURL: func(_ casedef.Platform, state casedef.InterventionState) browsertest.Document {
			if state == casedef.InterventionsEnabled {
				return browsertest.Document{Elements: []browsertest.Element{{Text: "Continue with Microsoft"}}}
			}
			return browsertest.Document{Elements: []browsertest.Element{{Selector: "a[href*='google.com/chrome']"}}}
		},
	}}
	h := newTestHarness(t, launcher)
	c := casedef.Case{
		ID:             "1800880-clipchamp-com",
		URL:            siteURL,
		Wait:           casedef.WaitNone,
		Platforms:      []casedef.Platform{casedef.PlatformDesktop},
		Steps:          []casedef.Step{{Click: &casedef.ClickStep{CSS: "a", Condition: condition}}},
		EnabledProbes:  []casedef.Probe{casedef.TextProbe("Continue with Microsoft")},
		DisabledProbes: []casedef.Probe{casedef.CSSProbe("a[href*='google.com/chrome']")},
	}

	result := runSuite(t, h, entriesFor(h, c), SuiteConfig{})

	assert.True(t, result.OK())
	for _, p := range launcher.Pages() {
		assert.Equal(t, []string{"a"}, p.Clicks())
		assert.Equal(t, signupURL, p.URL())
	}
}

func TestClickStepOnMissingElementIsAnError(t *testing.T) {
	launcher := &browsertest.Launcher{Web: browsertest.Web{siteURL: interventionSite}}
	h := newTestHarness(t, launcher)
	c := loginCase()
	c.Steps = []casedef.Step{{Click: &casedef.ClickStep{CSS: "#missing"}}}

	result := runSuite(t, h, entriesFor(h, c), SuiteConfig{})

	assert.Equal(t, 2, result.Summary.Error)
	for _, v := range result.Summary.Verdicts {
		assert.Equal(t, string(PhaseSessionOpen), v.Phase)
		assert.Contains(t, v.Result.Errors[0].Error(), "step 1")
	}
}

func TestFollowSteps(t *testing.T) {
	const (
		titleURL  = "https://site.test/title/1"
		viewerURL = "https://site.test/viewer"
	)
	launcher := &browsertest.Launcher{Web: browsertest.Web{
		siteURL: func(casedef.Platform, casedef.InterventionState) browsertest.Document {
			return browsertest.Document{Elements: []browsertest.Element{
				{Selector: "[data-bookid] a", Attributes: map[string]string{"href": titleURL}, AppearsAfter: 20 * time.Millisecond},
			}}
		},
		titleURL: func(casedef.Platform, casedef.InterventionState) browsertest.Document {
			return browsertest.Document{Elements: []browsertest.Element{
				{Selector: "a.viewer", Hidden: true, Attributes: map[string]string{"data-target": viewerURL}},
			}}
		},
		viewerURL: func(_ casedef.Platform, state casedef.InterventionState) browsertest.Document {
			if state == casedef.InterventionsEnabled {
				return browsertest.Document{Elements: []browsertest.Element{{Selector: ".nv-pvImageCanvas"}}}
			}
			return browsertest.Document{Elements: []browsertest.Element{{Text: "お使いのブラウザでは閲覧できません"}}}
		},
	}}
	h := newTestHarness(t, launcher)
	c := casedef.Case{
		ID:        "1975651-comic-k-manga-jp",
		URL:       siteURL,
		Wait:      casedef.WaitNone,
		Platforms: []casedef.Platform{casedef.PlatformAndroid},
		Steps: []casedef.Step{
			{Follow: &casedef.FollowStep{CSS: "[data-bookid] a", Wait: casedef.WaitNone}},
			{Follow: &casedef.FollowStep{CSS: "a.viewer", Attribute: "data-target"}},
		},
		EnabledProbes:  []casedef.Probe{casedef.CSSProbe(".nv-pvImageCanvas")},
		DisabledProbes: []casedef.Probe{casedef.TextProbe("お使いのブラウザでは閲覧できません")},
	}

	result := runSuite(t, h, entriesFor(h, c), SuiteConfig{})

	assert.True(t, result.OK())
	for _, p := range launcher.Pages() {
		assert.Equal(t, []browsertest.Navigation{
			{URL: siteURL, Wait: casedef.WaitNone},
			{URL: titleURL, Wait: casedef.WaitNone},
			{URL: viewerURL, Wait: casedef.WaitLoad},
		}, p.Navigations())
	}
}

func TestFilterSkipsEntries(t *testing.T) {
	launcher := &browsertest.Launcher{Web: browsertest.Web{siteURL: interventionSite}}
	h := newTestHarness(t, launcher)
	pattern, err := wctest.ParseTestIDPattern(".*/.*/interventions disabled")
	require.NoError(t, err)
	skip := wctest.TestIDPatternList{pattern}

	result := runSuite(t, h, entriesFor(h, loginCase()), SuiteConfig{
		Filter: func(id wctest.TestID) bool { return !skip.AnyMatch(id, false) },
	})

	require.Len(t, result.Summary.Verdicts, 1)
	assert.Equal(t, casedef.InterventionsEnabled, result.Summary.Verdicts[0].Entry.State)
	assert.Len(t, launcher.Pages(), 1)
}

func TestDiagnosticsAreCapturedBeforeTheSessionCloses(t *testing.T) {
	launcher := &browsertest.Launcher{Web: browsertest.Web{siteURL: regressedSite}}
	h := newTestHarness(t, launcher)

	result := runSuite(t, h, entriesFor(h, loginCase()), SuiteConfig{CaptureDiagnostics: true})

	failed := verdictFor(t, result.Summary, casedef.InterventionsEnabled)
	require.NotNil(t, failed.Diagnostics)
	d := failed.Diagnostics
	assert.NoError(t, d.CaptureErr)
	assert.Equal(t, siteURL, d.Snapshot.URL)
	assert.Contains(t, d.Snapshot.DOM, unsupportedText)
	assert.NotEmpty(t, d.Snapshot.Screenshot)
	assert.True(t, d.LastProbe.IsDefined())
	assert.NotEmpty(t, d.DebugOutput)
	assert.Greater(t, d.Elapsed, time.Duration(0))

	assert.Nil(t, verdictFor(t, result.Summary, casedef.InterventionsDisabled).Diagnostics)
	assertAllSessionsClosed(t, h, launcher)
}

func TestVerdictsFollowEntryOrder(t *testing.T) {
	launcher := &browsertest.Launcher{Web: browsertest.Web{siteURL: interventionSite}}
	h := newTestHarness(t, launcher)
	c := loginCase()
	c.Platforms = nil
	entries := entriesFor(h, c)
	require.Len(t, entries, 6)

	result := runSuite(t, h, entries, SuiteConfig{Parallelism: 6})

	require.Len(t, result.Summary.Verdicts, len(entries))
	for i, v := range result.Summary.Verdicts {
		assert.Equal(t, entries[i].ID(), v.Entry.ID())
	}
	assertAllSessionsClosed(t, h, launcher)
}
