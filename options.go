// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package outdev

import "github.com/sirupsen/logrus"

// Option modifies the configuration of a device as it is opened.
type Option interface {
	applyOption(*options)
}

type options struct {
	activeLow bool
	initial   *bool
	logger    logrus.FieldLogger
}

func defaultOptions() options {
	return options{logger: logrus.StandardLogger()}
}

// ActiveLowOption inverts the polarity of the device.
type ActiveLowOption struct{}

func (o ActiveLowOption) applyOption(opts *options) {
	opts.activeLow = true
}

// AsActiveLow indicates the device is active when its pin is low.
//
// The default is active high.
var AsActiveLow = ActiveLowOption{}

// InitialValueOption sets the logical value of the device once it is opened.
type InitialValueOption bool

func (o InitialValueOption) applyOption(opts *options) {
	v := bool(o)
	opts.initial = &v
}

// WithInitialValue drives the device to the logical value v once the pin is
// configured as an output.
//
// Without this option the level of the pin is left untouched.
func WithInitialValue(v bool) InitialValueOption {
	return InitialValueOption(v)
}

// LoggerOption sets the logger used by the device.
type LoggerOption struct {
	logger logrus.FieldLogger
}

func (o LoggerOption) applyOption(opts *options) {
	opts.logger = o.logger
}

// WithLogger sets the logger used to report device activity.
//
// The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) LoggerOption {
	return LoggerOption{l}
}
