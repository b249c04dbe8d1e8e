package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type recordingPublisher struct {
	mu       sync.Mutex
	open     bool
	err      error
	topics   []string
	payloads [][]byte
}

func (p *recordingPublisher) IsConnectionOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *recordingPublisher) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload.([]byte))
	return doneToken{err: p.err}
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

type status struct {
	State       string  `json:"state"`
	SpeedFactor float64 `json:"speed_factor"`
}

func TestPublishOnce(t *testing.T) {
	pub := &recordingPublisher{open: true}
	r := NewReporter(pub, "r2/ps3/status", time.Second, func() any {
		return status{State: "RUNNING", SpeedFactor: 0.35}
	})
	if err := r.PublishOnce(); err != nil {
		t.Fatalf("PublishOnce: %v", err)
	}
	if len(pub.topics) != 1 || pub.topics[0] != "r2/ps3/status" {
		t.Fatalf("topics = %v", pub.topics)
	}
	var got status
	if err := json.Unmarshal(pub.payloads[0], &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.State != "RUNNING" || got.SpeedFactor != 0.35 {
		t.Errorf("payload = %+v", got)
	}
}

func TestPublishOnce_NotConnected(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewReporter(pub, "t", time.Second, func() any { return status{} })
	if err := r.PublishOnce(); err == nil {
		t.Error("expected error while disconnected")
	}
	if pub.count() != 0 {
		t.Error("published while disconnected")
	}
}

func TestPublishOnce_TokenError(t *testing.T) {
	pub := &recordingPublisher{open: true, err: errors.New("not authorised")}
	r := NewReporter(pub, "t", time.Second, func() any { return status{} })
	if err := r.PublishOnce(); err == nil {
		t.Error("expected publish error")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	pub := &recordingPublisher{open: true}
	r := NewReporter(pub, "t", 5*time.Millisecond, func() any { return status{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for pub.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d publishes", pub.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
