// Package internal contains test helpers for wctest.
package internal

// RunAction is used only in unit tests, but exported because it has to be in a separate package
// for stacktrace filtering to see it.
func RunAction(action func()) {
	action()
}
