// Package framework contains the browser-independent parts of the interventions harness that
// can be reused by any suite of site checks. The base package holds shared types such as
// Logger; the subpackages hold the rest:
//
// 1. browser launches one browser process per session and exposes a small Page API for
// navigating and querying the DOM.
//
// 2. probe polls a Page until a CSS or text predicate holds or a timeout elapses.
//
// 3. harness owns the pool of live sessions, guarantees that every session is released exactly
// once, and detects leaks.
//
// 4. wctest is a test scope runner similar to Go's testing.T, which turns each matrix entry into
// a pass, fail or error verdict with captured debug output.
//
// The code that knows which sites are being checked (case declarations, matrix resolution and
// the per-entry state machine) lives outside this package tree.
package framework
