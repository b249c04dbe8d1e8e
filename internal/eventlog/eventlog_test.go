package eventlog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedLog(buf *bytes.Buffer) *Log {
	l := New(buf)
	l.now = func() time.Time { return time.Date(2024, 5, 4, 13, 7, 9, 0, time.Local) }
	return l
}

func TestPrintf_Format(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLog(&buf)
	l.Printf("Speed Increase : %.2f\n", 0.4)
	if got, want := buf.String(), "2024-05-04 13:07:09 : Speed Increase : 0.40\n"; got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestLifecycle(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLog(&buf)
	l.Started()
	l.Initialised()
	l.Shutdown("joystick lost")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	for i, want := range []string{"****** PS3 Start ******", "System Initialised", "****** PS3 Shutdown ****** (joystick lost)"} {
		if !strings.HasSuffix(lines[i], " : "+want) {
			t.Errorf("line %d = %q, want suffix %q", i, lines[i], want)
		}
	}
}

func TestNew_NilDiscards(t *testing.T) {
	l := New(nil)
	l.Printf("dropped")
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpen_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ps3.log")
	l := Open(path)
	l.Printf("first")
	l.Printf("second")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l = Open(path)
	l.Printf("third")
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 3 {
		t.Errorf("log has %d lines, want 3:\n%s", n, data)
	}
}
