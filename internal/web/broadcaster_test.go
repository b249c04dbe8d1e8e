package web

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan string) LogLine {
	t.Helper()
	select {
	case msg := <-ch:
		var l LogLine
		if err := json.Unmarshal([]byte(msg), &l); err != nil {
			t.Fatalf("unmarshal %q: %v", msg, err)
		}
		return l
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for line")
	}
	return LogLine{}
}

func TestHub_PublishToAllSubscribers(t *testing.T) {
	h := NewHub()
	ch1, unsub1 := h.Subscribe()
	defer unsub1()
	ch2, unsub2 := h.Subscribe()
	defer unsub2()

	h.Publish("live", "Buttons pressed: 0001")

	for i, ch := range []<-chan string{ch1, ch2} {
		l := recv(t, ch)
		if l.Msg != "Buttons pressed: 0001" || l.Level != "live" {
			t.Errorf("subscriber %d got %+v", i, l)
		}
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe()
	unsub()
	unsub()

	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	if h.Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", h.Clients())
	}
	h.Publish("info", "nobody listening")
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, unsub := h.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Publish("trace", fmt.Sprintf("frame %d", i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full client")
	}
}

func TestParseLine(t *testing.T) {
	cases := []struct {
		line  string
		level string
		msg   string
	}{
		{"[droidctl] 2024/05/04 13:07:09.123456 [INFO] Joystick found (count 1)\n", "info", "Joystick found (count 1)"},
		{"[droidctl] 2024/05/04 13:07:09.123456 [LIVE] *** NEW SPEED 0.40", "live", "*** NEW SPEED 0.40"},
		{"[droidctl] 2024/05/04 13:07:09.123456 [SERIAL] drive 80 00 40 40", "serial", "drive 80 00 40 40"},
		{"plain text", "", "plain text"},
	}
	for _, tc := range cases {
		level, msg := ParseLine(tc.line)
		if level != tc.level || msg != tc.msg {
			t.Errorf("ParseLine(%q) = %q, %q, want %q, %q", tc.line, level, msg, tc.level, tc.msg)
		}
	}
}

func TestWriter_SplitsLines(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe()
	defer unsub()

	p := []byte("[droidctl] x [WARN] notify audio/x: refused\n\n[droidctl] x [ERROR] serial write\n")
	n, err := h.Writer().Write(p)
	if err != nil || n != len(p) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if l := recv(t, ch); l.Level != "warn" || l.Msg != "notify audio/x: refused" {
		t.Errorf("first line = %+v", l)
	}
	if l := recv(t, ch); l.Level != "error" || l.Msg != "serial write" {
		t.Errorf("second line = %+v", l)
	}
}
