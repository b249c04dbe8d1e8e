package web

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"
)

// LogLine is one console line pushed to SSE clients.
type LogLine struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// Hub fans console lines out to every connected stream.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[chan string]struct{}),
		now:     time.Now,
	}
}

// Subscribe registers a client. The returned func unregisters it and
// closes the channel.
func (h *Hub) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Clients returns the number of subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends a line to every client. A client whose buffer is full
// misses the line; the control loop is never held up by a slow browser.
func (h *Hub) Publish(level, msg string) {
	data, err := json.Marshal(LogLine{
		Time:  h.now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	})
	if err != nil {
		return
	}
	payload := string(data)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// levelTag matches the tag the debug package puts after the timestamp.
var levelTag = regexp.MustCompile(`\[(INFO|LIVE|VERBOSE|TRACE|ERROR|WARN|SERIAL|GPIO)\]\s*`)

// ParseLine splits a debug line into level and message.
func ParseLine(line string) (level, msg string) {
	line = strings.TrimSpace(line)
	loc := levelTag.FindStringSubmatchIndex(line)
	if loc == nil {
		return "", line
	}
	return strings.ToLower(line[loc[2]:loc[3]]), strings.TrimSpace(line[loc[1]:])
}

// Writer returns an io.Writer that publishes each written line.
func (h *Hub) Writer() *hubWriter {
	return &hubWriter{h: h}
}

type hubWriter struct {
	h *Hub
}

func (w *hubWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		w.h.Publish(ParseLine(line))
	}
	return len(p), nil
}
