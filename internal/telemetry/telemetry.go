// Package telemetry publishes the control loop status to an MQTT broker.
// It runs beside the loop and never blocks it.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/r2-control/droidctl/internal/config"
	"github.com/r2-control/droidctl/internal/debug"
)

// Publisher is the part of mqtt.Client the reporter uses.
type Publisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	debug.Info("Connected to MQTT broker")
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	debug.Warn("MQTT connection lost: %v", err)
}

// Connect starts connecting to the broker in the background and returns
// the client immediately. The client retries until the broker is up.
func Connect(cfg config.MQTTConfig) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWriteTimeout(time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			debug.Warn("MQTT connect %s: %v", cfg.Broker, err)
		}
	}()
	return client
}

// Reporter publishes snapshot() as JSON every interval.
type Reporter struct {
	pub      Publisher
	topic    string
	interval time.Duration
	snapshot func() any
}

func NewReporter(pub Publisher, topic string, interval time.Duration, snapshot func() any) *Reporter {
	return &Reporter{
		pub:      pub,
		topic:    topic,
		interval: interval,
		snapshot: snapshot,
	}
}

// Run publishes until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.PublishOnce(); err != nil {
				debug.Verbose("telemetry: %v", err)
			}
		}
	}
}

// PublishOnce sends the current snapshot. Nothing is sent while the
// broker is unreachable.
func (r *Reporter) PublishOnce() error {
	if !r.pub.IsConnectionOpen() {
		return fmt.Errorf("broker not connected")
	}
	payload, err := json.Marshal(r.snapshot())
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	token := r.pub.Publish(r.topic, 0, false, payload)
	if !token.WaitTimeout(r.interval) {
		return fmt.Errorf("publish %s: timed out", r.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", r.topic, err)
	}
	debug.Trace("telemetry %s %s", r.topic, payload)
	return nil
}
