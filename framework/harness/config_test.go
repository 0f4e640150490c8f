package harness

import (
	"testing"
	"time"

	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework"
	"github.com/webcompat/interventions-harness/framework/browser"
	"github.com/webcompat/interventions-harness/framework/probe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(`
defaultProbeTimeout: 15s
pollInterval: 100ms
navigationTimeout: 90
maxSessions: 8
launchesPerSecond: 0.5
chrome:
  execPath: /usr/bin/chromium
  headless: false
  noSandbox: true
interventionsExtension: /opt/webcompat
platforms:
  - name: android
    width: 412
    height: 915
    scale: 2.625
    mobile: true
    touch: true
`))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, c.probeTimeout())
	assert.Equal(t, 100*time.Millisecond, c.pollInterval())
	assert.Equal(t, 8, c.maxSessions())
	assert.Equal(t, 0.5, c.launchesPerSecond())
	assert.Equal(t, []browser.Profile{{Platform: casedef.PlatformAndroid, Width: 412, Height: 915,
		Scale: 2.625, Mobile: true, Touch: true}}, c.Profiles())

	cc := c.ChromeConfig(framework.NullLogger())
	assert.Equal(t, "/usr/bin/chromium", cc.ExecPath)
	assert.False(t, cc.Headless)
	assert.True(t, cc.NoSandbox)
	assert.Equal(t, 90*time.Second, cc.NavigationTimeout)
	assert.Equal(t, browser.ExtensionInterventions{Dir: "/opt/webcompat"}, cc.Interventions)
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	c, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, probe.DefaultTimeout, c.probeTimeout())
	assert.Equal(t, probe.DefaultInterval, c.pollInterval())
	assert.Equal(t, DefaultMaxSessions, c.maxSessions())
	assert.Equal(t, DefaultLaunchesPerSecond, c.launchesPerSecond())
	assert.Equal(t, browser.DefaultProfiles(), c.Profiles())
	assert.True(t, c.ChromeConfig(nil).Headless)
	assert.Equal(t, browser.NoInterventions{}, c.InterventionSource())
}

func TestConfigRejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfig([]byte("maxSesions: 3\n"))
	assert.Error(t, err)
}

func TestConfigRejectsDuplicatePlatforms(t *testing.T) {
	_, err := ParseConfig([]byte(`
platforms:
  - {name: desktop, width: 1, height: 1}
  - {name: desktop, width: 2, height: 2}
`))
	assert.ErrorContains(t, err, `platform "desktop" is defined twice`)
}

func TestUserAgentInterventionSource(t *testing.T) {
	c, err := ParseConfig([]byte(`
interventionUserAgents:
  android: Mozilla/5.0 (Android 14) Firefox/128.0
`))
	require.NoError(t, err)
	assert.Equal(t, browser.UserAgentInterventions{UserAgents: map[casedef.Platform]string{
		casedef.PlatformAndroid: "Mozilla/5.0 (Android 14) Firefox/128.0",
	}}, c.InterventionSource())
}
