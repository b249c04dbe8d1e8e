package joystick

import "sort"

// AxisRange is the raw extent reported by the device for one axis.
type AxisRange struct {
	Min int32
	Max int32
}

// Normalize maps raw into [-1, 1] over r.
func (r AxisRange) Normalize(raw int32) float64 {
	if r.Max <= r.Min {
		return 0
	}
	v := float64(raw-r.Min)/float64(r.Max-r.Min)*2 - 1
	switch {
	case v < -1:
		return -1
	case v > 1:
		return 1
	}
	return v
}

// decoder holds button order and state. It is independent of the evdev
// transport.
type decoder struct {
	axes    map[uint16]AxisRange
	index   map[uint16]int
	pressed []bool
}

// newDecoder orders buttons by the configured key codes, or ascending
// device key codes when order is empty.
func newDecoder(axes map[uint16]AxisRange, keys []uint16, order []int) *decoder {
	d := &decoder{axes: axes, index: make(map[uint16]int)}
	if len(order) == 0 {
		sorted := append([]uint16(nil), keys...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		for _, k := range sorted {
			order = append(order, int(k))
		}
	}
	for i, code := range order {
		d.index[uint16(code)] = i
	}
	d.pressed = make([]bool, len(order))
	return d
}

// key handles a key event. Autorepeat (value 2) and unmapped codes yield
// no event.
func (d *decoder) key(code uint16, value int32) (Event, bool) {
	i, ok := d.index[code]
	if !ok {
		return Event{}, false
	}
	switch value {
	case 1:
		d.pressed[i] = true
		return Event{Kind: ButtonDown, Button: i, State: d.buttons()}, true
	case 0:
		d.pressed[i] = false
		return Event{Kind: ButtonUp, Button: i, State: d.buttons()}, true
	}
	return Event{}, false
}

// abs handles an absolute axis event.
func (d *decoder) abs(code uint16, value int32) (Event, bool) {
	r, ok := d.axes[code]
	if !ok {
		return Event{}, false
	}
	return Event{Kind: AxisMotion, Axis: int(code), Value: r.Normalize(value)}, true
}

func (d *decoder) buttons() []bool {
	return append([]bool(nil), d.pressed...)
}
