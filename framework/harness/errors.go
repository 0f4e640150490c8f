package harness

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by Session methods called after Close.
var ErrSessionClosed = errors.New("session is closed")

// ResourceLeakError is returned by Harness.Close if sessions were never closed.
type ResourceLeakError struct {
	Open int
}

func (e *ResourceLeakError) Error() string {
	return fmt.Sprintf("%d browser session(s) still open when harness was closed", e.Open)
}
