package wctest

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// TracedError is a failure recorded with the call stack of the assertion that reported it,
// from the test body down.
type TracedError struct {
	Message string
	Frames  []Frame
}

func (e TracedError) Error() string { return e.Message }

// Frame is one call in a TracedError's stack. File is a base name.
type Frame struct {
	File     string
	Package  string
	Function string
	Line     int
}

func (f Frame) String() string {
	pkg := strings.TrimPrefix(f.Package, moduleOf(ownPackage)+"/")
	return fmt.Sprintf("%s.%s (%s:%d)", pkg, f.Function, f.File, f.Line)
}

// ownPackage is this package's import path as it appears in function names.
var ownPackage = func() string {
	pc, _, _, _ := runtime.Caller(0)
	pkg, _ := splitFunctionName(runtime.FuncForPC(pc).Name())
	return pkg
}()

// scopeRunner is the function every test body is called from.
const scopeRunner = "(*T).run"

var testifyTracePrefix = regexp.MustCompile(`^(?s:\s*Error Trace:.*\sError:\s*)`)

// withStacktrace attaches frames to err. testify's assert and require put their own trace at
// the front of the message; that part is dropped.
func withStacktrace(err error, frames []Frame) error {
	message := err.Error()
	if strings.Contains(message, "Error Trace:") {
		message = strings.TrimSpace(testifyTracePrefix.ReplaceAllLiteralString(message, ""))
	}
	if len(frames) == 0 {
		return errors.New(message)
	}
	return TracedError{Message: message, Frames: frames}
}

// callerFrames returns the stack of its caller up to the test body. Frames inside this package
// are left out unless includeScopeCode is set, and so are the functions named in helperFns
// (full names, as registered with T.Helper).
func callerFrames(includeScopeCode bool, helperFns []string) []Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var ret []Frame
	for {
		rf, more := frames.Next()
		pkg, fn := splitFunctionName(rf.Function)
		frame := Frame{File: filepath.Base(rf.File), Package: pkg, Function: fn, Line: rf.Line}
		switch {
		case pkg == ownPackage && fn == scopeRunner:
			if includeScopeCode {
				ret = append(ret, frame)
			}
			return ret
		case pkg == ownPackage && !includeScopeCode:
		case isHelper(rf.Function, helperFns):
		default:
			ret = append(ret, frame)
		}
		if !more {
			return ret
		}
	}
}

func isHelper(fullName string, helperFns []string) bool {
	for _, h := range helperFns {
		if h == fullName {
			return true
		}
	}
	return false
}

// splitFunctionName turns "example.com/a/b.(*T).Run" into "example.com/a/b" and "(*T).Run".
func splitFunctionName(fullName string) (pkg, fn string) {
	lastSlash := strings.LastIndex(fullName, "/")
	dot := strings.Index(fullName[lastSlash+1:], ".")
	if dot < 0 {
		return fullName, ""
	}
	return fullName[:lastSlash+1+dot], fullName[lastSlash+2+dot:]
}

// moduleOf keeps the first three elements of an import path, which is the module path for
// anything hosted the way this module is.
func moduleOf(pkg string) string {
	parts := strings.SplitN(pkg, "/", 4)
	if len(parts) < 3 {
		return pkg
	}
	return strings.Join(parts[:3], "/")
}
