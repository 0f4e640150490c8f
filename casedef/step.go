package casedef

import (
	"errors"
	"fmt"

	"github.com/webcompat/interventions-harness/framework/opt"
)

// Step is a setup action run after the case's initial navigation and before its probes.
// Exactly one field is set.
type Step struct {
	Navigate *NavigateStep `yaml:"navigate,omitempty" json:"navigate,omitempty"`
	Follow   *FollowStep   `yaml:"follow,omitempty" json:"follow,omitempty"`
	Click    *ClickStep    `yaml:"click,omitempty" json:"click,omitempty"`
}

// NavigateStep loads another URL.
type NavigateStep struct {
	URL  string   `yaml:"url" json:"url"`
	Wait WaitMode `yaml:"wait,omitempty" json:"wait,omitempty"`
}

// FollowStep awaits an element and navigates to the URL held in one of its attributes, which
// is how a case reaches a page whose address is only known at run time.
type FollowStep struct {
	CSS       string              `yaml:"css" json:"css"`
	Attribute string              `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Wait      WaitMode            `yaml:"wait,omitempty" json:"wait,omitempty"`
	Timeout   opt.Maybe[Duration] `yaml:"timeout,omitempty" json:"timeout"`
}

// ClickStep awaits a displayed element matching CSS and Condition and clicks it.
type ClickStep struct {
	CSS       string              `yaml:"css" json:"css"`
	Condition string              `yaml:"condition,omitempty" json:"condition,omitempty"`
	Timeout   opt.Maybe[Duration] `yaml:"timeout,omitempty" json:"timeout"`
}

// FollowAttribute is the attribute read by a FollowStep that does not name one.
const FollowAttribute = "href"

func (f FollowStep) AttributeName() string {
	if f.Attribute == "" {
		return FollowAttribute
	}
	return f.Attribute
}

func (s Step) String() string {
	switch {
	case s.Navigate != nil:
		return fmt.Sprintf("navigate to %s (wait=%s)", s.Navigate.URL, s.Navigate.Wait.OrDefault())
	case s.Follow != nil:
		return fmt.Sprintf("follow %s of %q (wait=%s)", s.Follow.AttributeName(), s.Follow.CSS, s.Follow.Wait.OrDefault())
	case s.Click != nil:
		if s.Click.Condition != "" {
			return fmt.Sprintf("click %q where %s", s.Click.CSS, s.Click.Condition)
		}
		return fmt.Sprintf("click %q", s.Click.CSS)
	}
	return "empty step"
}

func (s Step) Validate() error {
	set := 0
	var err error
	if s.Navigate != nil {
		set++
		if s.Navigate.URL == "" {
			err = errors.New("navigate step needs a url")
		} else if w := s.Navigate.Wait; w != "" && !w.Valid() {
			err = fmt.Errorf("navigate step has unknown wait mode %q", w)
		}
	}
	if s.Follow != nil {
		set++
		if s.Follow.CSS == "" {
			err = errors.New("follow step needs a css selector")
		} else if w := s.Follow.Wait; w != "" && !w.Valid() {
			err = fmt.Errorf("follow step has unknown wait mode %q", w)
		}
	}
	if s.Click != nil {
		set++
		if s.Click.CSS == "" {
			err = errors.New("click step needs a css selector")
		}
	}
	if set != 1 {
		return errors.New("step must set exactly one of navigate, follow or click")
	}
	return err
}
