package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework"
	"github.com/webcompat/interventions-harness/framework/browser"
	"github.com/webcompat/interventions-harness/framework/opt"
	"github.com/webcompat/interventions-harness/framework/probe"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxSessions       = 4
	DefaultLaunchesPerSecond = 2.0
)

// Config is the harness configuration file. Zero values mean "use the default".
type Config struct {
	DefaultProbeTimeout casedef.Duration `yaml:"defaultProbeTimeout,omitempty"`
	PollInterval        casedef.Duration `yaml:"pollInterval,omitempty"`
	NavigationTimeout   casedef.Duration `yaml:"navigationTimeout,omitempty"`

	// MaxSessions bounds the number of browser sessions open at once.
	MaxSessions int `yaml:"maxSessions,omitempty"`
	// LaunchesPerSecond throttles browser startup; a negative value disables throttling.
	LaunchesPerSecond float64 `yaml:"launchesPerSecond,omitempty"`

	Chrome ChromeSettings `yaml:"chrome,omitempty"`

	// InterventionsExtension is the directory of an unpacked interventions extension. If empty,
	// sessions with interventions enabled only get the user agent overrides in
	// InterventionUserAgents.
	InterventionsExtension string                      `yaml:"interventionsExtension,omitempty"`
	InterventionUserAgents map[casedef.Platform]string `yaml:"interventionUserAgents,omitempty"`

	// Platforms replaces the built-in platform profiles if non-empty.
	Platforms []browser.Profile `yaml:"platforms,omitempty"`
}

type ChromeSettings struct {
	ExecPath  string          `yaml:"execPath,omitempty"`
	Headless  opt.Maybe[bool] `yaml:"headless,omitempty"`
	NoSandbox bool            `yaml:"noSandbox,omitempty"`
}

// LoadConfig reads a YAML configuration file. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	var c Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("malformed harness configuration: %w", err)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("maxSessions must not be negative"))
	}
	seen := make(map[casedef.Platform]bool)
	for _, p := range c.Platforms {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[p.Platform] {
			errs = append(errs, fmt.Errorf("platform %q is defined twice", p.Platform))
		}
		seen[p.Platform] = true
	}
	return errors.Join(errs...)
}

func (c Config) probeTimeout() time.Duration {
	if c.DefaultProbeTimeout > 0 {
		return c.DefaultProbeTimeout.Std()
	}
	return probe.DefaultTimeout
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval.Std()
	}
	return probe.DefaultInterval
}

func (c Config) maxSessions() int {
	if c.MaxSessions > 0 {
		return c.MaxSessions
	}
	return DefaultMaxSessions
}

func (c Config) launchesPerSecond() float64 {
	if c.LaunchesPerSecond == 0 {
		return DefaultLaunchesPerSecond
	}
	return c.LaunchesPerSecond
}

// Profiles returns the configured platform profiles, or the built-in ones.
func (c Config) Profiles() []browser.Profile {
	if len(c.Platforms) > 0 {
		return c.Platforms
	}
	return browser.DefaultProfiles()
}

// InterventionSource chooses how sessions switch interventions on.
func (c Config) InterventionSource() browser.InterventionSource {
	if c.InterventionsExtension != "" {
		return browser.ExtensionInterventions{Dir: c.InterventionsExtension}
	}
	if len(c.InterventionUserAgents) > 0 {
		return browser.UserAgentInterventions{UserAgents: c.InterventionUserAgents}
	}
	return browser.NoInterventions{}
}

// ChromeConfig derives the settings for a browser.ChromeLauncher.
func (c Config) ChromeConfig(debugLogger framework.Logger) browser.ChromeConfig {
	return browser.ChromeConfig{
		ExecPath:          c.Chrome.ExecPath,
		Headless:          c.Chrome.Headless.OrElse(true),
		NoSandbox:         c.Chrome.NoSandbox,
		NavigationTimeout: c.NavigationTimeout.Std(),
		Interventions:     c.InterventionSource(),
		DebugLogger:       debugLogger,
	}
}
