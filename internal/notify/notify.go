// Package notify sends fire-and-forget requests to the droid's remote
// actuation service (audio cues, servo channels). Callers only log the
// outcome; nothing in the control loop branches on it.
package notify

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/r2-control/droidctl/internal/debug"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 250 * time.Millisecond

// Result is the outcome of one request.
type Result struct {
	Path    string
	Status  int
	Err     error
	Elapsed time.Duration
}

// OK reports whether the service answered with a 2xx status.
func (r Result) OK() bool {
	return r.Err == nil && r.Status >= 200 && r.Status < 300
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v (%s)", r.Path, r.Err, r.Elapsed)
	}
	return fmt.Sprintf("%s: %d (%s)", r.Path, r.Status, r.Elapsed)
}

// Sink accepts path suffixes such as "audio/Happy001".
type Sink interface {
	Send(ctx context.Context, path string) Result
}

// HTTPSink issues GET baseURL+path.
type HTTPSink struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSink returns a sink for baseURL. A non-positive timeout uses
// DefaultTimeout.
func NewHTTPSink(baseURL string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTPSink{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Send performs the request and drains the response. It never panics
// and never returns early on a slow service beyond the client timeout.
func (s *HTTPSink) Send(ctx context.Context, path string) Result {
	start := time.Now()
	res := Result{Path: path}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+strings.TrimPrefix(path, "/"), nil)
	if err != nil {
		res.Err = fmt.Errorf("build request: %w", err)
		res.Elapsed = time.Since(start)
		return res
	}
	resp, err := s.client.Do(req)
	if err != nil {
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	res.Status = resp.StatusCode
	res.Elapsed = time.Since(start)
	debug.Trace("notify %s", res)
	return res
}

// Nop drops every request.
type Nop struct{}

func (Nop) Send(_ context.Context, path string) Result {
	debug.Trace("notify (nop) %s", path)
	return Result{Path: path, Status: http.StatusOK}
}

// Audio returns the path that plays clip.
func Audio(clip string) string {
	return "audio/" + clip
}

// BodyServo returns the path addressing a body servo channel, e.g.
// BodyServo("ENABLE_DRIVE", 0, 0) = "servo/body/ENABLE_DRIVE/0/0".
func BodyServo(channel string, args ...any) string {
	var sb strings.Builder
	sb.WriteString("servo/body/")
	sb.WriteString(channel)
	for _, a := range args {
		fmt.Fprintf(&sb, "/%v", a)
	}
	return sb.String()
}

// Guarded sends path and logs a failure. It is the only way the control
// loop talks to the service.
func Guarded(ctx context.Context, s Sink, path string) Result {
	if path == "" {
		return Result{}
	}
	res := s.Send(ctx, path)
	if !res.OK() {
		debug.Warn("notify %s", res)
	}
	return res
}
