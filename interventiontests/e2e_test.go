//go:build e2e

package interventiontests

import (
	"context"
	"errors"
	"log"
	"os"
	"regexp"
	"net/http"
	"testing"
	"time"

	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework"
	"github.com/webcompat/interventions-harness/framework/browser"
	"github.com/webcompat/interventions-harness/framework/harness"
	"github.com/webcompat/interventions-harness/framework/probe"
	"github.com/webcompat/interventions-harness/sitefixture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests start real Chrome processes. Run them with "go test -tags e2e ./interventiontests"
// on a machine where chromedp can find a browser (or set CHROME_PATH).

const fixedUserAgent = "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/130.0.0.0 Mobile Safari/537.36 FixedBySiteIntervention"

func newChromeHarness(t *testing.T, configure ...func(*harness.Config)) *harness.Harness {
	config := harness.Config{
		DefaultProbeTimeout:    casedef.Duration(5 * time.Second),
		NavigationTimeout:      casedef.Duration(20 * time.Second),
		MaxSessions:            2,
		InterventionUserAgents: map[casedef.Platform]string{casedef.PlatformAndroid: fixedUserAgent},
		Chrome: harness.ChromeSettings{
			ExecPath:  os.Getenv("CHROME_PATH"),
			NoSandbox: os.Getuid() == 0,
		},
	}
	for _, f := range configure {
		f(&config)
	}
	var debugLogger framework.Logger = framework.NullLogger()
	if testing.Verbose() {
		debugLogger = log.New(os.Stdout, "[chrome] ", log.LstdFlags)
	}
	h, err := harness.NewHarness(browser.NewChromeLauncher(config.ChromeConfig(debugLogger)), config, debugLogger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, h.Close()) })
	return h
}

func TestUserAgentInterventionInChrome(t *testing.T) {
	server := sitefixture.NewServer(framework.NullLogger())
	defer server.Close()
	site := server.AddSite("user agent sniffing site", sitefixture.UserAgentGate(
		regexp.MustCompile("FixedBySiteIntervention"),
		`<form><input id="txtLoginId"></form>`,
		`<p>You are using an unsupported browser</p>`,
	))
	defer site.Close()

	h := newChromeHarness(t)
	c := casedef.Case{
		ID:             "1000001-sniffing-site",
		URL:            site.BaseURL(),
		Wait:           casedef.WaitNone,
		Platforms:      []casedef.Platform{casedef.PlatformAndroid},
		EnabledProbes:  []casedef.Probe{casedef.CSSProbe("#txtLoginId")},
		DisabledProbes: []casedef.Probe{casedef.TextProbe("You are using an unsupported browser")},
	}
	require.NoError(t, c.Validate())

	result, err := RunInterventionSuite(context.Background(), h, entriesFor(h, c), SuiteConfig{})

	require.NoError(t, err)
	assert.True(t, result.OK(), "%+v", result.Summary.Unsuccessful())
	assert.Equal(t, 2, result.Summary.Pass)
	assert.Equal(t, 0, h.Stats().Open())
}

func TestProbesAgainstRealPages(t *testing.T) {
	server := sitefixture.NewServer(framework.NullLogger())
	defer server.Close()
	target := server.AddSite("target", sitefixture.Page(
		sitefixture.Delayed(`<div class="viewer">ready</div>`, 500*time.Millisecond)+
			sitefixture.Hidden(`<span id="secret">hidden text</span>`),
	))
	defer target.Close()
	start := server.AddSite("start", sitefixture.Page(sitefixture.Link("go", target.BaseURL(), "Open the viewer")))
	defer start.Close()

	h := newChromeHarness(t)
	c := casedef.Case{
		ID:            "1000002-real-pages",
		URL:           start.BaseURL(),
		Platforms:     []casedef.Platform{casedef.PlatformDesktop},
		Interventions: []casedef.InterventionState{casedef.InterventionsEnabled},
		Steps: []casedef.Step{
			{Click: &casedef.ClickStep{CSS: "a", Condition: "elem.innerText.includes('Open the viewer')"}},
		},
		EnabledProbes: []casedef.Probe{
			casedef.CSSProbe(".viewer"),
			casedef.ScriptProbe("return document.querySelectorAll('.viewer').length === 1"),
			casedef.CSSProbe("#secret").WithDisplayed(false),
		},
		DisabledProbes: []casedef.Probe{
			casedef.TextProbe("hidden text"),
		},
	}
	require.NoError(t, c.Validate())

	result, err := RunInterventionSuite(context.Background(), h, entriesFor(h, c), SuiteConfig{CaptureDiagnostics: true})

	require.NoError(t, err)
	assert.True(t, result.OK(), "%+v", result.Summary.Unsuccessful())
	_, err = target.AwaitRequest(context.Background(), time.Second)
	assert.NoError(t, err)
}

// newFixtureServer closes the server in a cleanup so that it runs after the browser sessions
// holding stalled requests have gone away.
func newFixtureServer(t *testing.T) *sitefixture.Server {
	server := sitefixture.NewServer(framework.NullLogger())
	t.Cleanup(server.Close)
	return server
}

func openChromeSession(t *testing.T, h *harness.Harness, platform casedef.Platform) *harness.Session {
	session, err := h.OpenSession(context.Background(), platform, casedef.InterventionsDisabled, framework.NullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, session.Close()) })
	return session
}

func TestNavigationTimeoutInChrome(t *testing.T) {
	server := newFixtureServer(t)
	stalled := server.AddSite("stalled response", sitefixture.Slow(30*time.Second, sitefixture.Page("too late")))
	defer stalled.Close()
	stalledImage := server.AddSite("stalled subresource", sitefixture.Routes(map[string]http.Handler{
		"/":          sitefixture.Page(`<p id="text">text</p><img src="image.png">`),
		"/image.png": sitefixture.Slow(30*time.Second, http.NotFoundHandler()),
	}))
	defer stalledImage.Close()

	h := newChromeHarness(t, func(c *harness.Config) {
		c.NavigationTimeout = casedef.Duration(time.Second)
	})
	session := openChromeSession(t, h, casedef.PlatformDesktop)

	t.Run("no response", func(t *testing.T) {
		err := session.Navigate(context.Background(), stalled.BaseURL(), casedef.WaitNone)
		var timeoutErr *browser.NavigationTimeoutError
		require.True(t, errors.As(err, &timeoutErr), "unexpected error: %v", err)
		assert.Equal(t, stalled.BaseURL(), timeoutErr.URL)
		assert.Equal(t, time.Second, timeoutErr.Timeout)
	})

	t.Run("no load event", func(t *testing.T) {
		err := session.Navigate(context.Background(), stalledImage.BaseURL(), casedef.WaitLoad)
		var timeoutErr *browser.NavigationTimeoutError
		require.True(t, errors.As(err, &timeoutErr), "unexpected error: %v", err)
		assert.Equal(t, casedef.WaitLoad, timeoutErr.Wait)

		require.NoError(t, session.Navigate(context.Background(), stalledImage.BaseURL(), casedef.WaitNone))
		ok, err := session.AwaitCSS(context.Background(), "#text", probe.Displayed())
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestWaitIdleOutlastsLateRequests(t *testing.T) {
	server := newFixtureServer(t)
	site := server.AddSite("late request", sitefixture.Routes(map[string]http.Handler{
		"/":     sitefixture.Page(sitefixture.FetchThenInsert("data", `<div id="late">loaded</div>`)),
		"/data": sitefixture.Slow(1500*time.Millisecond, sitefixture.Page("")),
	}))
	defer site.Close()

	h := newChromeHarness(t)
	session := openChromeSession(t, h, casedef.PlatformDesktop)

	require.NoError(t, session.Navigate(context.Background(), site.BaseURL(), casedef.WaitLoad))
	ok, err := session.FindCSS(context.Background(), "#late", probe.Options{})
	require.NoError(t, err)
	assert.False(t, ok, "load should not wait for the request made by the page")

	require.NoError(t, session.Navigate(context.Background(), site.BaseURL(), casedef.WaitIdle))
	ok, err = session.FindCSS(context.Background(), "#late", probe.Displayed())
	require.NoError(t, err)
	assert.True(t, ok, "idle should wait for the request made by the page")
}

func TestCoveredElementIsNotDisplayed(t *testing.T) {
	server := newFixtureServer(t)
	covered := server.AddSite("covered", sitefixture.Page(sitefixture.Covered(`<button id="buy">Buy now</button>`)))
	defer covered.Close()
	uncovered := server.AddSite("uncovered", sitefixture.Page(`<button id="buy">Buy now</button>`))
	defer uncovered.Close()

	h := newChromeHarness(t)
	session := openChromeSession(t, h, casedef.PlatformAndroid)

	require.NoError(t, session.Navigate(context.Background(), covered.BaseURL(), casedef.WaitLoad))
	for _, find := range []func(probe.Options) (bool, error){
		func(opts probe.Options) (bool, error) { return session.FindCSS(context.Background(), "#buy", opts) },
		func(opts probe.Options) (bool, error) { return session.FindText(context.Background(), "Buy now", opts) },
	} {
		ok, err := find(probe.Displayed())
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = find(probe.Options{})
		require.NoError(t, err)
		assert.True(t, ok)
	}

	require.NoError(t, session.Navigate(context.Background(), uncovered.BaseURL(), casedef.WaitLoad))
	ok, err := session.FindCSS(context.Background(), "#buy", probe.Displayed())
	require.NoError(t, err)
	assert.True(t, ok)
}
