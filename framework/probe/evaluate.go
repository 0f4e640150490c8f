package probe

import (
	"context"
	"fmt"

	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework/opt"
)

// Prober is implemented by Engine and by harness sessions.
type Prober interface {
	AwaitCSS(ctx context.Context, selector string, opts Options) (bool, error)
	AwaitText(ctx context.Context, text string, opts Options) (bool, error)
	AwaitScript(ctx context.Context, script string, opts Options) (bool, error)
	FindCSS(ctx context.Context, selector string, opts Options) (bool, error)
	FindText(ctx context.Context, text string, opts Options) (bool, error)
	FindScript(ctx context.Context, script string) (bool, error)
}

// OptionsFor converts the settings of a declared probe.
func OptionsFor(p casedef.Probe) Options {
	o := Options{IsDisplayed: p.IsDisplayed(), Condition: p.Condition}
	if p.Timeout.IsDefined() {
		o.Timeout = opt.Some(p.Timeout.Value().Std())
	}
	return o
}

// Evaluate runs a declared probe, awaiting it if await is true and otherwise checking it once.
func Evaluate(ctx context.Context, prober Prober, p casedef.Probe, await bool) (bool, error) {
	opts := OptionsFor(p)
	switch p.Kind() {
	case casedef.ProbeCSS:
		if await {
			return prober.AwaitCSS(ctx, p.CSS, opts)
		}
		return prober.FindCSS(ctx, p.CSS, opts)
	case casedef.ProbeText:
		if await {
			return prober.AwaitText(ctx, p.Text, opts)
		}
		return prober.FindText(ctx, p.Text, opts)
	case casedef.ProbeScript:
		if await {
			return prober.AwaitScript(ctx, p.Script, opts)
		}
		return prober.FindScript(ctx, p.Script)
	}
	return false, fmt.Errorf("cannot evaluate %s", p)
}
