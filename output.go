// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package outdev

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// OutputDevice represents a generic device driven by a single output pin.
//
// An OutputDevice is not safe for concurrent use.  Use a DigitalOutputDevice
// where the device is shared between goroutines.
type OutputDevice struct {
	line Line
	log  logrus.FieldLogger

	// active and inactive encode the polarity and are always complementary.
	active   Level
	inactive Level

	closed bool
}

// OpenOutputDevice acquires the pin from the backend and configures it as an
// output.
//
// If the pin cannot be acquired or configured then no device is returned.
func OpenOutputDevice(b Backend, pin int, opts ...Option) (*OutputDevice, error) {
	oo := defaultOptions()
	for _, o := range opts {
		o.applyOption(&oo)
	}
	l, err := b.Acquire(pin)
	if err != nil {
		return nil, fmt.Errorf("pin %d: %w: %v", pin, ErrAcquire, err)
	}
	if err = l.Output(); err != nil {
		l.Close()
		return nil, fmt.Errorf("pin %d: %w: %v", pin, ErrConfigure, err)
	}
	d := &OutputDevice{
		line:     l,
		log:      oo.logger.WithField("pin", l.Pin()),
		active:   High,
		inactive: Low,
	}
	d.SetActiveHigh(!oo.activeLow)
	if oo.initial != nil {
		d.writeValue(*oo.initial)
	}
	d.log.WithField("active_high", !oo.activeLow).Debug("output device opened")
	return d, nil
}

// NewOutputDevice creates an OutputDevice on the pin.
//
// Failing to acquire or configure the pin indicates the hardware is unusable,
// so NewOutputDevice panics rather than return an error.
func NewOutputDevice(b Backend, pin int, opts ...Option) *OutputDevice {
	d, err := OpenOutputDevice(b, pin, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// SetActiveHigh sets the polarity of the device.
//
// This does not change the level of the pin, so changing it inverts the
// current value of the device.
func (d *OutputDevice) SetActiveHigh(v bool) {
	d.active = Level(v)
	d.inactive = !d.active
}

// ActiveHigh returns true if the device is active when its pin is high.
func (d *OutputDevice) ActiveHigh() bool {
	return bool(d.active)
}

// On turns the device on.
func (d *OutputDevice) On() {
	d.writeValue(true)
}

// Off turns the device off.
func (d *OutputDevice) Off() {
	d.writeValue(false)
}

// Toggle reverses the state of the device.
func (d *OutputDevice) Toggle() {
	if d.IsActive() {
		d.Off()
	} else {
		d.On()
	}
}

// Value returns true if the device is currently active.
func (d *OutputDevice) Value() bool {
	return d.stateToValue(d.line.Read())
}

// IsActive returns true if the device is currently active.
func (d *OutputDevice) IsActive() bool {
	return d.Value()
}

// Pin returns the number of the pin driving the device.
func (d *OutputDevice) Pin() int {
	return d.line.Pin()
}

// Close releases the pin.
func (d *OutputDevice) Close() error {
	if d.closed {
		return ErrClosed
	}
	d.closed = true
	d.log.Debug("output device closed")
	return d.line.Close()
}

func (d *OutputDevice) valueToState(v bool) Level {
	if v {
		return d.active
	}
	return d.inactive
}

func (d *OutputDevice) stateToValue(l Level) bool {
	return l == d.active
}

func (d *OutputDevice) writeValue(v bool) {
	d.writeLevel(d.valueToState(v))
}

func (d *OutputDevice) writeLevel(l Level) {
	if l == High {
		d.line.High()
	} else {
		d.line.Low()
	}
}
