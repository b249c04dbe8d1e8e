package web

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"time"

	"github.com/r2-control/droidctl/internal/debug"
)

// StatusFunc returns the current loop snapshot. It must not block.
type StatusFunc func() any

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	hub       *Hub
	status    StatusFunc
	staticFS  fs.FS
	heartbeat time.Duration
	interval  time.Duration
}

// NewHandlers creates handlers. A nil status reports 503 on /status.
func NewHandlers(hub *Hub, status StatusFunc, staticFS fs.FS) *Handlers {
	return &Handlers{
		hub:       hub,
		status:    status,
		staticFS:  staticFS,
		heartbeat: 30 * time.Second,
		interval:  time.Second,
	}
}

// HandleStatus returns the latest snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		http.Error(w, "control loop not running", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(h.status()); err != nil {
		debug.Warn("web: encode status: %v", err)
	}
}

// ServeIndex serves the status page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStatusStream streams console lines as "log" events and the loop
// snapshot as "status" events.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	lines, unsub := h.hub.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	status := time.NewTicker(h.interval)
	defer status.Stop()

	for {
		select {
		case msg, ok := <-lines:
			if !ok {
				return
			}
			w.Write([]byte("event: log\ndata: " + msg + "\n\n"))
			flusher.Flush()

		case <-status.C:
			if h.status == nil {
				continue
			}
			data, err := json.Marshal(h.status())
			if err != nil {
				continue
			}
			w.Write([]byte("event: status\ndata: " + string(data) + "\n\n"))
			flusher.Flush()

		case <-heartbeat.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
