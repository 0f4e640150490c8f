package casedef

import (
	"errors"
	"fmt"

	"github.com/webcompat/interventions-harness/framework/opt"
)

// ProbeKind says what a Probe looks for.
type ProbeKind string

const (
	ProbeCSS    ProbeKind = "css"
	ProbeText   ProbeKind = "text"
	ProbeScript ProbeKind = "script"
)

// Probe is a predicate over page state. Exactly one of CSS, Text or Script is set.
type Probe struct {
	// CSS matches if any element selected by this selector is present (and, if Displayed,
	// visible). Condition optionally narrows the match with a JS expression over "elem".
	CSS       string `yaml:"css,omitempty" json:"css,omitempty"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`

	// Text matches if the text appears in the document.
	Text string `yaml:"text,omitempty" json:"text,omitempty"`

	// Script is the body of a JS function whose truthy return value means the probe holds,
	// such as "return document.body.scrollWidth > window.innerWidth".
	Script string `yaml:"script,omitempty" json:"script,omitempty"`

	// Displayed defaults to true: presence in the DOM without being laid out and visible does
	// not count. Ignored for script probes.
	Displayed opt.Maybe[bool] `yaml:"displayed,omitempty" json:"displayed"`

	// Timeout overrides the harness default for awaiting this probe.
	Timeout opt.Maybe[Duration] `yaml:"timeout,omitempty" json:"timeout"`
}

// CSSProbe and TextProbe are shorthands used mostly by tests.
func CSSProbe(selector string) Probe { return Probe{CSS: selector} }

func TextProbe(text string) Probe { return Probe{Text: text} }

func ScriptProbe(script string) Probe { return Probe{Script: script} }

// WithTimeout returns a copy of the probe with a timeout override.
func (p Probe) WithTimeout(d Duration) Probe {
	p.Timeout = opt.Some(d)
	return p
}

// WithDisplayed returns a copy of the probe with the visibility requirement set explicitly.
func (p Probe) WithDisplayed(displayed bool) Probe {
	p.Displayed = opt.Some(displayed)
	return p
}

func (p Probe) Kind() ProbeKind {
	switch {
	case p.CSS != "":
		return ProbeCSS
	case p.Text != "":
		return ProbeText
	case p.Script != "":
		return ProbeScript
	}
	return ""
}

func (p Probe) IsDisplayed() bool {
	return p.Kind() != ProbeScript && p.Displayed.OrElse(true)
}

func (p Probe) String() string {
	var s string
	switch p.Kind() {
	case ProbeCSS:
		s = fmt.Sprintf("css %q", p.CSS)
		if p.Condition != "" {
			s += fmt.Sprintf(" where %s", p.Condition)
		}
	case ProbeText:
		s = fmt.Sprintf("text %q", p.Text)
	case ProbeScript:
		return fmt.Sprintf("script %q", p.Script)
	default:
		return "empty probe"
	}
	if p.IsDisplayed() {
		s += " (displayed)"
	}
	return s
}

func (p Probe) Validate() error {
	set := 0
	for _, v := range []string{p.CSS, p.Text, p.Script} {
		if v != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return errors.New("probe must set one of css, text or script")
	case set > 1:
		return errors.New("probe must set only one of css, text or script")
	case p.Condition != "" && p.CSS == "":
		return errors.New("probe condition is only allowed with css")
	}
	return nil
}
