package casedata

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/webcompat/interventions-harness/casedef"
)

// Registry holds the validated set of cases known to a run, keyed by case name. Cases are
// returned by value so callers cannot change what another part of the run sees.
type Registry struct {
	sources []SourceInfo
	byName  map[string]int
}

// NewRegistry validates the cases and rejects duplicate names.
func NewRegistry(sources ...SourceInfo) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(sources))}
	var errs []error
	for _, s := range sources {
		if err := s.Case.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.FilePath, err))
			continue
		}
		name := s.Case.Name()
		if prev, ok := r.byName[name]; ok {
			errs = append(errs, fmt.Errorf("%s: case %q was already declared in %s",
				s.FilePath, name, r.sources[prev].FilePath))
			continue
		}
		r.byName[name] = len(r.sources)
		r.sources = append(r.sources, s)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadRegistry loads all case files from each file system, in order, and builds a Registry.
func LoadRegistry(fileSystems ...fs.FS) (*Registry, error) {
	var all []SourceInfo
	for _, fsys := range fileSystems {
		sources, err := LoadAllDataFiles(fsys, ".")
		if err != nil {
			return nil, err
		}
		all = append(all, sources...)
	}
	return NewRegistry(all...)
}

func (r *Registry) Len() int { return len(r.sources) }

// Cases returns every case in load order.
func (r *Registry) Cases() []casedef.Case {
	ret := make([]casedef.Case, 0, len(r.sources))
	for _, s := range r.sources {
		ret = append(ret, s.Case)
	}
	return ret
}

// Lookup finds a case by its name (ID, or ID#variant).
func (r *Registry) Lookup(name string) (casedef.Case, bool) {
	i, ok := r.byName[name]
	if !ok {
		return casedef.Case{}, false
	}
	return r.sources[i].Case, true
}

// Source reports which file a case was loaded from.
func (r *Registry) Source(name string) string {
	if i, ok := r.byName[name]; ok {
		return r.sources[i].FilePath
	}
	return ""
}
