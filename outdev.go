// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package outdev provides logical output devices, such as LEDs and relays,
// driven by a single GPIO output pin.
//
// An OutputDevice maps a logical value (is the device active) onto the
// physical level of its pin, taking the polarity of the device into account.
// A DigitalOutputDevice adds safe sharing between goroutines and a background
// blink that can be preempted by any other call.
//
// Example of use:
//
// 	b, err := cdev.Open("gpiochip0")
// 	if err != nil {
// 		panic(err)
// 	}
// 	defer b.Close()
//
// 	led := outdev.NewDigitalOutputDevice(b, 4)
// 	defer led.Close()
//
// 	led.Blink(500*time.Millisecond, 500*time.Millisecond, outdev.Forever)
//
// The package does not acquire pins itself. That is left to a Backend, such as
// the rpi or cdev packages.
package outdev

import "errors"

// Level represents the high (true) or low (false) physical level of a pin.
type Level bool

// Level of pin, High / Low
const (
	Low  Level = false
	High Level = true
)

// Backend provides access to the physical pins of a platform.
type Backend interface {
	// Acquire claims exclusive control of the numbered pin.
	Acquire(pin int) (Line, error)
}

// Line is a single physical pin claimed from a Backend.
//
// Writes and reads are assumed to succeed.  Backends that can fail at
// runtime are expected to report that themselves.
type Line interface {
	// Output places the line in output mode.
	Output() error
	// High drives the line high.
	High()
	// Low drives the line low.
	Low()
	// Read returns the current level of the line.
	Read() Level
	// Pin returns the number that identifies the line.
	Pin() int
	// Close releases the line.
	Close() error
}

var (
	// ErrAcquire indicates the backend could not provide the pin.
	ErrAcquire = errors.New("unable to acquire pin")

	// ErrConfigure indicates the pin could not be placed in output mode.
	ErrConfigure = errors.New("unable to configure pin as output")

	// ErrClosed indicates the device has already been closed.
	ErrClosed = errors.New("device closed")

	// ErrPoisoned indicates an earlier operation on the device panicked while
	// holding the device lock, so the device state can no longer be trusted.
	ErrPoisoned = errors.New("device poisoned")
)
