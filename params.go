package main

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/webcompat/interventions-harness/casedata"
	"github.com/webcompat/interventions-harness/casedef"
	"github.com/webcompat/interventions-harness/framework/harness"
	"github.com/webcompat/interventions-harness/framework/wctest"
	"github.com/webcompat/interventions-harness/matrix"

	"github.com/spf13/pflag"
)

// selectionParams are the flags shared by every command that resolves the matrix.
type selectionParams struct {
	configFile    string
	casesDirs     []string
	noBuiltin     bool
	platforms     []string
	interventions string
	filters       wctest.RegexFilters
	skipFile      string
}

func (p *selectionParams) addCaseFlags(f *pflag.FlagSet) {
	f.StringSliceVar(&p.casesDirs, "cases", nil, "directory of additional case files (may be repeated)")
	f.BoolVar(&p.noBuiltin, "no-builtin", false, "do not load the built-in cases")
}

func (p *selectionParams) addFlags(f *pflag.FlagSet) {
	p.addCaseFlags(f)
	f.StringVar(&p.configFile, "config", "", "harness configuration file (YAML)")
	f.StringSliceVar(&p.platforms, "platform", nil, "only run on these platforms (may be repeated)")
	f.StringVar(&p.interventions, "interventions", "both", "intervention states to check: enabled, disabled or both")
	f.Var(&p.filters.MustMatch, "run", "regex pattern(s) for test IDs to run")
	f.Var(&p.filters.MustNotMatch, "skip", "regex pattern(s) for test IDs to skip")
	f.StringVar(&p.skipFile, "skip-file", "", "file listing test IDs to skip, one per line")
}

func (p *selectionParams) loadRegistry() (*casedata.Registry, error) {
	var fileSystems []fs.FS
	if !p.noBuiltin {
		fileSystems = append(fileSystems, casedata.Builtin())
	}
	for _, dir := range p.casesDirs {
		fileSystems = append(fileSystems, os.DirFS(dir))
	}
	if len(fileSystems) == 0 {
		return nil, fmt.Errorf("no cases to load: --no-builtin was given without --cases")
	}
	return casedata.LoadRegistry(fileSystems...)
}

func (p *selectionParams) loadConfig() (harness.Config, error) {
	if p.configFile == "" {
		return harness.Config{}, nil
	}
	config, err := harness.LoadConfig(p.configFile)
	if err != nil {
		return harness.Config{}, fmt.Errorf("cannot load %s: %w", p.configFile, err)
	}
	return config, nil
}

func (p *selectionParams) loadSuppressions() error {
	if p.skipFile == "" {
		return nil
	}
	file, err := os.Open(p.skipFile)
	if err != nil {
		return fmt.Errorf("cannot open provided suppression file: %w", err)
	}
	defer func() { _ = file.Close() }()
	if err := p.filters.MustNotMatch.AddLiterals(file); err != nil {
		return fmt.Errorf("while processing suppression file: %w", err)
	}
	return nil
}

// resolve loads everything a run needs and expands the matrix. The --run and --skip filters are
// not applied here.
func (p *selectionParams) resolve() (harness.Config, *casedata.Registry, []matrix.Entry, error) {
	config, err := p.loadConfig()
	if err != nil {
		return config, nil, nil, err
	}
	registry, err := p.loadRegistry()
	if err != nil {
		return config, nil, nil, err
	}
	if err := p.loadSuppressions(); err != nil {
		return config, nil, nil, err
	}
	selection, err := matrix.ParseSelection(p.platforms, p.interventions)
	if err != nil {
		return config, nil, nil, err
	}
	registered := registeredPlatforms(config)
	if err := selection.CheckPlatforms(registered); err != nil {
		return config, nil, nil, err
	}
	return config, registry, matrix.ResolveAll(registry.Cases(), registered, selection), nil
}

func registeredPlatforms(config harness.Config) []casedef.Platform {
	profiles := config.Profiles()
	ret := make([]casedef.Platform, 0, len(profiles))
	for _, p := range profiles {
		ret = append(ret, p.Platform)
	}
	return ret
}
