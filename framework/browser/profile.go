package browser

import (
	"fmt"

	"github.com/webcompat/interventions-harness/casedef"
)

// Profile describes how a session emulates a platform.
type Profile struct {
	Platform  casedef.Platform `yaml:"name" json:"name"`
	UserAgent string           `yaml:"userAgent,omitempty" json:"userAgent,omitempty"`
	// Width and Height are the CSS viewport size.
	Width  int64   `yaml:"width" json:"width"`
	Height int64   `yaml:"height" json:"height"`
	Scale  float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
	Mobile bool    `yaml:"mobile,omitempty" json:"mobile,omitempty"`
	Touch  bool    `yaml:"touch,omitempty" json:"touch,omitempty"`
}

const (
	androidUserAgent = "Mozilla/5.0 (Linux; Android 14; Pixel 7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36"
	desktopUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	iosUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"
)

// DefaultProfiles returns the platforms registered when no configuration overrides them.
func DefaultProfiles() []Profile {
	return []Profile{
		{Platform: casedef.PlatformAndroid, UserAgent: androidUserAgent, Width: 412, Height: 915,
			Scale: 2.625, Mobile: true, Touch: true},
		{Platform: casedef.PlatformDesktop, UserAgent: desktopUserAgent, Width: 1366, Height: 768, Scale: 1},
		{Platform: casedef.PlatformIOS, UserAgent: iosUserAgent, Width: 390, Height: 844,
			Scale: 3, Mobile: true, Touch: true},
	}
}

func (p Profile) Validate() error {
	if p.Platform == "" {
		return fmt.Errorf("platform profile has no name")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("platform %q: viewport must be positive, got %dx%d", p.Platform, p.Width, p.Height)
	}
	if p.Scale < 0 {
		return fmt.Errorf("platform %q: negative scale", p.Platform)
	}
	return nil
}

// DeviceScale returns Scale, treating 0 as 1.
func (p Profile) DeviceScale() float64 {
	if p.Scale == 0 {
		return 1
	}
	return p.Scale
}
