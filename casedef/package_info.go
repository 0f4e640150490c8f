// Package casedef contains the data model for intervention cases: the per-site declarations
// that say which URL to load, on which platforms, and which probes must hold when the site's
// intervention is enabled or disabled.
//
// These types are what case files (YAML or JSON) are decoded into. Once loaded, a Case is
// treated as immutable by the rest of the harness.
package casedef
