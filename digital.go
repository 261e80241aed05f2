// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package outdev

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Forever is the blink count that blinks until the blink is stopped.
const Forever = -1

// DigitalOutputDevice represents an output device with simple on/off
// behaviour, plus a Blink that toggles the device in the background.
//
// All methods are safe to call from multiple goroutines.  Each pin access is
// atomic with respect to the others, but the order of calls from independent
// goroutines, including a running blink, is not defined.
type DigitalOutputDevice struct {
	mu       sync.Mutex // Guards the following, and all access to dev.
	dev      *OutputDevice
	poisoned bool
	closed   bool
	// generation of the current blink task.
	gen uint64
	// closed to interrupt the sleeps of the current blink task.
	wake chan struct{}
	// closed when the most recent blink task exits.
	done chan struct{}

	// blinking is the cancellation flag of the current blink task.
	// It may be read without holding mu.
	blinking atomic.Bool

	log logrus.FieldLogger
}

// OpenDigitalOutputDevice acquires the pin from the backend and configures it
// as an output.
//
// If the pin cannot be acquired or configured then no device is returned.
func OpenDigitalOutputDevice(b Backend, pin int, opts ...Option) (*DigitalOutputDevice, error) {
	dev, err := OpenOutputDevice(b, pin, opts...)
	if err != nil {
		return nil, err
	}
	return &DigitalOutputDevice{dev: dev, log: dev.log}, nil
}

// NewDigitalOutputDevice creates a DigitalOutputDevice on the pin.
//
// Panics if the pin cannot be acquired or configured.
func NewDigitalOutputDevice(b Backend, pin int, opts ...Option) *DigitalOutputDevice {
	d, err := OpenDigitalOutputDevice(b, pin, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// On stops any blink and turns the device on.
//
// Stopping drives the pin low first, so an active high device that is
// already on sees a brief low pulse.
func (d *DigitalOutputDevice) On() {
	d.Stop()
	d.withDevice((*OutputDevice).On)
}

// Off stops any blink and turns the device off.
func (d *DigitalOutputDevice) Off() {
	d.Stop()
	d.withDevice((*OutputDevice).Off)
}

// Toggle reverses the state of the device.
//
// Unlike On and Off, Toggle does not stop a running blink.
func (d *DigitalOutputDevice) Toggle() {
	d.withDevice((*OutputDevice).Toggle)
}

// Value returns true if the device is currently active.
func (d *DigitalOutputDevice) Value() (v bool) {
	d.withDevice(func(dev *OutputDevice) {
		v = dev.Value()
	})
	return
}

// IsActive returns true if the device is currently active.
func (d *DigitalOutputDevice) IsActive() bool {
	return d.Value()
}

// ActiveHigh returns true if the device is active when its pin is high.
func (d *DigitalOutputDevice) ActiveHigh() (v bool) {
	d.withDevice(func(dev *OutputDevice) {
		v = dev.ActiveHigh()
	})
	return
}

// SetActiveHigh sets the polarity of the device.
//
// This does not change the level of the pin.
func (d *DigitalOutputDevice) SetActiveHigh(v bool) {
	d.withDevice(func(dev *OutputDevice) {
		dev.SetActiveHigh(v)
	})
}

// Pin returns the number of the pin driving the device.
func (d *DigitalOutputDevice) Pin() (pin int) {
	d.withDevice(func(dev *OutputDevice) {
		pin = dev.Pin()
	})
	return
}

// IsBlinking returns true while a blink is running.
func (d *DigitalOutputDevice) IsBlinking() bool {
	return d.blinking.Load()
}

// Stop stops any running blink and drives the pin low.
//
// The pin is driven low whether a blink was running or not, and regardless
// of the polarity of the device.
func (d *DigitalOutputDevice) Stop() {
	d.withDevice(func(dev *OutputDevice) {
		d.cancelBlink()
		dev.writeLevel(Low)
	})
}

// Blink turns the device on and off repeatedly in the background.
//
// The device is on for onTime and off for offTime, for n cycles, or until
// stopped if n is Forever.  Durations have millisecond granularity, and
// negative durations are treated as zero.
//
// Any running blink is stopped first.  Blink returns immediately.
func (d *DigitalOutputDevice) Blink(onTime, offTime time.Duration, n int) {
	onTime = blinkDuration(onTime)
	offTime = blinkDuration(offTime)
	t := &blinkTask{
		wake: make(chan struct{}),
		done: make(chan struct{}),
	}
	// stop and start as one step so a concurrent Blink cannot interleave.
	d.withDevice(func(dev *OutputDevice) {
		d.cancelBlink()
		dev.writeLevel(Low)
		t.gen = d.gen
		d.wake = t.wake
		d.done = t.done
		d.blinking.Store(true)
	})
	d.log.WithFields(logrus.Fields{
		"on_time":  onTime,
		"off_time": offTime,
		"count":    n,
	}).Debug("blink started")
	go d.blink(t, onTime, offTime, n)
}

// Wait blocks until the most recently started blink has finished, or the
// context is done.
//
// Returns immediately if no blink has been started.
func (d *DigitalOutputDevice) Wait(ctx context.Context) error {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops any blink and releases the pin.
//
// The device cannot be used after it is closed.
func (d *DigitalOutputDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.cancelBlink()
	if !d.poisoned {
		d.dev.writeLevel(Low)
	}
	d.closed = true
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
	return d.dev.Close()
}

// withDevice calls fn with the device locked.
//
// Panics if the device is closed or poisoned, and poisons the device if fn
// panics.
func (d *DigitalOutputDevice) withDevice(fn func(dev *OutputDevice)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checkUsable()
	defer d.poisonOnPanic()
	fn(d.dev)
}

// checkUsable panics if the device can no longer be used.
// Must be called with mu held.
func (d *DigitalOutputDevice) checkUsable() {
	if d.closed {
		panic(ErrClosed)
	}
	if d.poisoned {
		panic(ErrPoisoned)
	}
}

// poisonOnPanic must be deferred while mu is held.
func (d *DigitalOutputDevice) poisonOnPanic() {
	if r := recover(); r != nil {
		d.poisoned = true
		d.log.WithField("panic", r).Error("device poisoned")
		panic(r)
	}
}

// cancelBlink signals the current blink task, if any, to exit.
// Must be called with mu held.
func (d *DigitalOutputDevice) cancelBlink() {
	if d.blinking.Swap(false) {
		d.log.Debug("blink stopped")
	}
	d.gen++
	if d.wake != nil {
		close(d.wake)
		d.wake = nil
	}
}

type blinkTask struct {
	gen  uint64
	wake chan struct{}
	done chan struct{}
}

func (d *DigitalOutputDevice) blink(t *blinkTask, onTime, offTime time.Duration, n int) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("panic", r).Error("blink aborted")
			d.finish(t)
		}
	}()
	for i := 0; n < 0 || i < n; i++ {
		if !d.pulse(t, true) || !t.sleep(onTime) {
			return
		}
		if !d.pulse(t, false) || !t.sleep(offTime) {
			return
		}
	}
	if d.finish(t) {
		d.log.Debug("blink finished")
	}
}

// pulse sets the value of the device, so long as t is still the current blink
// task and has not been stopped.
func (d *DigitalOutputDevice) pulse(t *blinkTask, v bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.gen != d.gen || !d.blinking.Load() {
		return false
	}
	d.checkUsable()
	defer d.poisonOnPanic()
	d.dev.writeValue(v)
	return true
}

// finish clears the flag when t exits of its own accord, so long as t is
// still the current blink task.
func (d *DigitalOutputDevice) finish(t *blinkTask) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.gen != d.gen {
		return false
	}
	d.blinking.Store(false)
	d.wake = nil
	return true
}

// sleep returns false if the task is woken before the duration expires.
func (t *blinkTask) sleep(period time.Duration) bool {
	if period <= 0 {
		select {
		case <-t.wake:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(period)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-t.wake:
		return false
	}
}

func blinkDuration(period time.Duration) time.Duration {
	if period < 0 {
		return 0
	}
	return period.Truncate(time.Millisecond)
}
