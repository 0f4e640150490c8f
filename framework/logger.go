package framework

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Logger is what the harness writes debug output to. *log.Logger satisfies it, and so does
// chromedp's logging hook.
type Logger interface {
	Printf(format string, args ...interface{})
}

type discardLogger struct{}

func (discardLogger) Printf(string, ...interface{}) {}

// NullLogger returns a Logger that discards everything.
func NullLogger() Logger { return discardLogger{} }

// CapturedMessage is one line of output recorded by a CapturingLogger.
type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

// Format renders the output one message per line, each starting with prefix and a timestamp.
func (output CapturedOutput) Format(prefix string) string {
	var b strings.Builder
	for i, m := range output {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s[%s] %s", prefix, m.Time.Format(timestampFormat), m.Message)
	}
	return b.String()
}

// CapturingLogger keeps everything logged in a test scope so it can go into the verdict. Scopes
// nest: see wctest.(*T).DebugLogger.
type CapturingLogger struct {
	lock     sync.Mutex
	messages []CapturedMessage
	attached []*CapturingLogger
}

func (l *CapturingLogger) Printf(format string, args ...interface{}) {
	l.record(CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(format, args...)})
}

// record keeps m here, unless loggers are attached, in which case each of them gets it instead.
func (l *CapturingLogger) record(m CapturedMessage) {
	l.lock.Lock()
	targets := append([]*CapturingLogger(nil), l.attached...)
	if len(targets) == 0 {
		l.messages = append(l.messages, m)
	}
	l.lock.Unlock()
	for _, target := range targets {
		target.record(m)
	}
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append(CapturedOutput(nil), l.messages...)
}

// Attach starts forwarding messages to child, which first receives a copy of everything
// recorded here so far.
func (l *CapturingLogger) Attach(child *CapturingLogger) {
	l.lock.Lock()
	l.attached = append(l.attached, child)
	history := append([]CapturedMessage(nil), l.messages...)
	l.lock.Unlock()

	child.lock.Lock()
	child.messages = append(history, child.messages...)
	child.lock.Unlock()
}

func (l *CapturingLogger) Detach(child *CapturingLogger) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for i, c := range l.attached {
		if c == child {
			l.attached = append(l.attached[:i], l.attached[i+1:]...)
			return
		}
	}
}

type prefixedLogger struct {
	base   Logger
	prefix string
}

// LoggerWithPrefix returns a Logger that puts prefix, such as "[android/enabled] ", in front of
// every message.
func LoggerWithPrefix(base Logger, prefix string) Logger {
	if base == nil {
		return NullLogger()
	}
	return prefixedLogger{base: base, prefix: prefix}
}

func (p prefixedLogger) Printf(format string, args ...interface{}) {
	p.base.Printf(p.prefix+format, args...)
}
