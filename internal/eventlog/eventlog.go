// Package eventlog appends timestamped lifecycle lines to the droid's
// persisted log. The file is write-only for this process.
package eventlog

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02 15:04:05"

// Log writes "<timestamp> : <message>" lines.
type Log struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// Open returns a log rotated by size at path.
func Open(path string) *Log {
	return New(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
	})
}

// New writes to w. A nil w discards everything.
func New(w io.Writer) *Log {
	if w == nil {
		w = io.Discard
	}
	return &Log{w: w, now: time.Now}
}

// Printf appends one line. Write errors are ignored; the log is advisory.
func (l *Log) Printf(format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s : %s\n", l.now().Format(timeLayout), msg)
}

// Started marks a new process run.
func (l *Log) Started() {
	l.Printf("****** PS3 Start ******")
}

// Initialised records that startup completed and the loop is about to run.
func (l *Log) Initialised() {
	l.Printf("System Initialised")
}

// Shutdown records the end of a Safe-Shutdown sequence.
func (l *Log) Shutdown(reason string) {
	l.Printf("****** PS3 Shutdown ****** (%s)", reason)
}

// Close closes the underlying writer when it is closable.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
