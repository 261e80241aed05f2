// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

// Package cdev provides an outdev.Backend using the Linux GPIO character
// device, so it works on any platform with a GPIO chip, not only the
// Raspberry Pi.
package cdev

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
	"github.com/warthog618/outdev"
)

// Chip is a GPIO chip opened as an outdev.Backend.
type Chip struct {
	c        *gpiocdev.Chip
	consumer string
	log      logrus.FieldLogger
}

// Option modifies the behaviour of a Chip.
type Option func(*Chip)

// WithConsumer sets the consumer label applied to requested lines.
//
// The default is "outdev".
func WithConsumer(consumer string) Option {
	return func(c *Chip) {
		c.consumer = consumer
	}
}

// WithLogger sets the logger used to report line failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Chip) {
		c.log = l
	}
}

// Open opens the named GPIO chip, e.g. "gpiochip0" or "/dev/gpiochip0".
func Open(name string, opts ...Option) (*Chip, error) {
	c := &Chip{
		consumer: "outdev",
		log:      logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	gc, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(c.consumer))
	if err != nil {
		return nil, fmt.Errorf("cdev: unable to open chip %q: %w", name, err)
	}
	c.c = gc
	c.log = c.log.WithField("chip", gc.Name)
	return c, nil
}

// Close closes the chip.
//
// Lines already acquired remain usable until they are closed.
func (c *Chip) Close() error {
	return c.c.Close()
}

// Acquire requests the line at the given offset on the chip.
//
// The line is requested as is, so its level is unchanged until it is
// configured as an output.
func (c *Chip) Acquire(offset int) (outdev.Line, error) {
	l, err := c.c.RequestLine(offset, gpiocdev.WithConsumer(c.consumer))
	if err != nil {
		return nil, fmt.Errorf("cdev: unable to request line %d: %w", offset, err)
	}
	line := &Line{
		l:   l,
		log: c.log.WithField("offset", offset),
	}
	if v, err := l.Value(); err == nil {
		line.last = v != 0
	}
	return line, nil
}

// Line is a requested GPIO line.
//
// A Line is not safe for concurrent use.
type Line struct {
	l   *gpiocdev.Line
	log logrus.FieldLogger
	// last level read or written, reported if the line cannot be read.
	last outdev.Level
}

// Output reconfigures the line as an output, preserving its current level.
func (l *Line) Output() error {
	v := 0
	if l.last {
		v = 1
	}
	return l.l.Reconfigure(gpiocdev.AsOutput(v))
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
	iv := 0
	if v {
		iv = 1
	}
	if err := l.l.SetValue(iv); err != nil {
		l.log.WithError(err).Error("unable to set line value")
		return
	}
	l.last = v
}

// Read returns the level of the line.
//
// If the line cannot be read the last known level is returned.
func (l *Line) Read() outdev.Level {
	v, err := l.l.Value()
	if err != nil {
		l.log.WithError(err).Error("unable to read line value")
		return l.last
	}
	l.last = v != 0
	return l.last
}

// Pin returns the offset of the line on its chip.
func (l *Line) Pin() int {
	return l.l.Offset()
}

// Close reverts the line to an input and releases it.
func (l *Line) Close() error {
	if err := l.l.Reconfigure(gpiocdev.AsInput); err != nil {
		l.log.WithError(err).Warn("unable to revert line to input")
	}
	return l.l.Close()
}
