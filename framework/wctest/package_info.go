// Package wctest contains a test runner framework that is similar to Go's testing package, but
// is run as regular application code rather than as Go tests. Unlike testing.T, a scope can end
// in one of three outcomes: pass, fail (an expectation did not hold) or error (the test could
// not be carried out, for instance because the browser did not start).
package wctest
