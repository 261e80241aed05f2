// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package gpiotest provides a simulated GPIO backend for testing devices
// without hardware.
//
// Lines record every level change, with timestamps, so tests can count the
// pulses generated by a device.
package gpiotest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/outdev"
)

// Mode of a simulated line.
type Mode int

// Line modes
const (
	Input Mode = iota
	Output
)

var (
	// ErrBusy indicates the pin is already claimed.
	ErrBusy = errors.New("pin busy")

	// ErrUnknownPin indicates the pin is outside the range of the chip.
	ErrUnknownPin = errors.New("unknown pin")
)

// Chip is a simulated Backend with a fixed number of pins.
//
// All pins start as inputs at level Low unless set otherwise.
type Chip struct {
	mu          sync.Mutex // Guards the following.
	numPins     int
	levels      map[int]outdev.Level
	claimed     map[int]*Line
	acquireErrs map[int]error
	outputErrs  map[int]error
}

// New creates a Chip with the given number of pins.
func New(numPins int) *Chip {
	return &Chip{
		numPins:     numPins,
		levels:      make(map[int]outdev.Level),
		claimed:     make(map[int]*Line),
		acquireErrs: make(map[int]error),
		outputErrs:  make(map[int]error),
	}
}

// SetLevel sets the level a pin presents when it is next acquired.
func (c *Chip) SetLevel(pin int, l outdev.Level) {
	c.mu.Lock()
	c.levels[pin] = l
	c.mu.Unlock()
}

// FailAcquire causes subsequent attempts to acquire the pin to return err.
func (c *Chip) FailAcquire(pin int, err error) {
	c.mu.Lock()
	c.acquireErrs[pin] = err
	c.mu.Unlock()
}

// FailOutput causes subsequent attempts to configure the pin as an output to
// return err.
func (c *Chip) FailOutput(pin int, err error) {
	c.mu.Lock()
	c.outputErrs[pin] = err
	c.mu.Unlock()
}

// Acquire claims the pin.
func (c *Chip) Acquire(pin int) (outdev.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pin < 0 || pin >= c.numPins {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	if err := c.acquireErrs[pin]; err != nil {
		return nil, err
	}
	if _, ok := c.claimed[pin]; ok {
		return nil, ErrBusy
	}
	l := &Line{
		chip:  c,
		pin:   pin,
		level: c.levels[pin],
	}
	c.claimed[pin] = l
	return l, nil
}

// Line returns the claimed line for the pin, or nil if the pin is not
// currently claimed.
func (c *Chip) Line(pin int) *Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimed[pin]
}

func (c *Chip) release(l *Line, level outdev.Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed[l.pin] == l {
		delete(c.claimed, l.pin)
		c.levels[l.pin] = level
	}
}

func (c *Chip) outputErr(pin int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputErrs[pin]
}

// Transition is a change in the level of a line.
type Transition struct {
	Level outdev.Level
	Time  time.Time
}

// Line is a simulated pin claimed from a Chip.
type Line struct {
	chip *Chip
	pin  int

	mu         sync.Mutex // Guards the following.
	level      outdev.Level
	mode       Mode
	closed     bool
	writes     int
	lateWrites int
	history    []Transition
	writePanic interface{}
}

// Output places the line in output mode.
func (l *Line) Output() error {
	if err := l.chip.outputErr(l.pin); err != nil {
		return err
	}
	l.mu.Lock()
	l.mode = Output
	l.mu.Unlock()
	return nil
}

// High drives the line high.
func (l *Line) High() {
	l.write(outdev.High)
}

// Low drives the line low.
func (l *Line) Low() {
	l.write(outdev.Low)
}

func (l *Line) write(v outdev.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writePanic != nil {
		panic(l.writePanic)
	}
	if l.closed {
		l.lateWrites++
		return
	}
	l.writes++
	if v != l.level {
		l.level = v
		l.history = append(l.history, Transition{Level: v, Time: time.Now()})
	}
}

// Read returns the current level of the line.
func (l *Line) Read() outdev.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Pin returns the pin number of the line.
func (l *Line) Pin() int {
	return l.pin
}

// Close reverts the line to an input and releases it back to the chip.
func (l *Line) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return outdev.ErrClosed
	}
	l.closed = true
	l.mode = Input
	level := l.level
	l.mu.Unlock()
	l.chip.release(l, level)
	return nil
}

// Level returns the current level of the line without going through a
// device.
func (l *Line) Level() outdev.Level {
	return l.Read()
}

// Mode returns the current mode of the line.
func (l *Line) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// Closed returns true once the line has been released.
func (l *Line) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Writes returns the number of writes to the line, including those that did
// not change its level.
func (l *Line) Writes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes
}

// LateWrites returns the number of writes made after the line was closed.
func (l *Line) LateWrites() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lateWrites
}

// History returns a copy of the level changes of the line.
func (l *Line) History() []Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := make([]Transition, len(l.history))
	copy(h, l.history)
	return h
}

// Rises returns the number of Low to High transitions seen by the line.
func (l *Line) Rises() int {
	n := 0
	for _, t := range l.History() {
		if t.Level == outdev.High {
			n++
		}
	}
	return n
}

// Falls returns the number of High to Low transitions seen by the line.
func (l *Line) Falls() int {
	n := 0
	for _, t := range l.History() {
		if t.Level == outdev.Low {
			n++
		}
	}
	return n
}

// ResetHistory discards the recorded level changes and write counts.
func (l *Line) ResetHistory() {
	l.mu.Lock()
	l.history = nil
	l.writes = 0
	l.mu.Unlock()
}

// PanicOnWrite causes subsequent writes to the line to panic with v.
//
// Passing nil restores normal behaviour.
func (l *Line) PanicOnWrite(v interface{}) {
	l.mu.Lock()
	l.writePanic = v
	l.mu.Unlock()
}
