package joystick

import (
	"context"
	"fmt"

	"github.com/kenshaw/evdev"

	"github.com/r2-control/droidctl/internal/debug"
)

// eventQueue bounds events buffered between two ticks.
const eventQueue = 256

// Evdev reads a controller through the Linux input event interface.
type Evdev struct {
	path   string
	dev    *evdev.Evdev
	cancel context.CancelFunc

	// dec is owned by the pump goroutine.
	dec   *decoder
	queue chan Event
}

// OpenEvdev opens the device at path. buttonOrder lists key codes in
// bitmask order; empty means ascending device key codes.
func OpenEvdev(path string, buttonOrder []int) (*Evdev, error) {
	dev, err := evdev.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open joystick %s: %w", path, err)
	}

	axes := make(map[uint16]AxisRange)
	for typ, info := range dev.AbsoluteTypes() {
		axes[uint16(typ)] = AxisRange{Min: info.Min, Max: info.Max}
	}
	var keys []uint16
	for typ := range dev.KeyTypes() {
		keys = append(keys, uint16(typ))
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Evdev{
		path:   path,
		dev:    dev,
		cancel: cancel,
		dec:    newDecoder(axes, keys, buttonOrder),
		queue:  make(chan Event, eventQueue),
	}
	debug.Info("Joystick %q: %d axes, %d buttons", dev.Name(), len(axes), len(e.dec.pressed))

	go e.pump(dev.Poll(ctx))
	return e, nil
}

// pump decodes envelopes until the device goes away. Events that do not
// fit in the queue are dropped.
func (e *Evdev) pump(envelopes <-chan *evdev.EventEnvelope) {
	defer close(e.queue)
	for env := range envelopes {
		if env == nil {
			continue
		}
		var (
			ev Event
			ok bool
		)
		switch env.Type.(type) {
		case evdev.KeyType:
			ev, ok = e.dec.key(env.Event.Code, env.Event.Value)
		case evdev.AbsoluteType:
			ev, ok = e.dec.abs(env.Event.Code, env.Event.Value)
		}
		if !ok {
			continue
		}
		select {
		case e.queue <- ev:
		default:
			debug.Warn("joystick queue full, dropping %s event", ev.Kind)
		}
	}
}

func (e *Evdev) Present() bool {
	return PathExists(e.path)
}

func (e *Evdev) Drain() ([]Event, error) {
	var out []Event
	for {
		select {
		case ev, ok := <-e.queue:
			if !ok {
				return out, ErrDeviceClosed
			}
			out = append(out, ev)
		default:
			return out, nil
		}
	}
}

func (e *Evdev) Close() error {
	e.cancel()
	return e.dev.Close()
}
