// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Test suite for the OutputDevice.
package outdev_test

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/outdev"
	"github.com/warthog618/outdev/gpiotest"
)

const testPin = 4

func newOutput(t *testing.T, opts ...outdev.Option) (*outdev.OutputDevice, *gpiotest.Line) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	opts = append([]outdev.Option{outdev.WithLogger(logger)}, opts...)
	c := gpiotest.New(8)
	d, err := outdev.OpenOutputDevice(c, testPin, opts...)
	require.Nil(t, err)
	require.NotNil(t, d)
	l := c.Line(testPin)
	require.NotNil(t, l)
	t.Cleanup(func() { d.Close() })
	return d, l
}

func TestOpenOutputDevice(t *testing.T) {
	c := gpiotest.New(8)
	c.SetLevel(testPin, outdev.High)
	d, err := outdev.OpenOutputDevice(c, testPin)
	require.Nil(t, err)
	defer d.Close()
	l := c.Line(testPin)
	require.NotNil(t, l)
	assert.Equal(t, gpiotest.Output, l.Mode())
	assert.True(t, d.ActiveHigh())
	assert.Equal(t, testPin, d.Pin())
	// level is left untouched
	assert.Equal(t, outdev.High, l.Level())
	assert.Zero(t, l.Writes())
	assert.True(t, d.Value())
}

func TestOpenOutputDeviceAcquireFail(t *testing.T) {
	c := gpiotest.New(8)
	d, err := outdev.OpenOutputDevice(c, 9)
	assert.Nil(t, d)
	assert.True(t, errors.Is(err, outdev.ErrAcquire))

	c.FailAcquire(testPin, errors.New("permission denied"))
	d, err = outdev.OpenOutputDevice(c, testPin)
	assert.Nil(t, d)
	assert.True(t, errors.Is(err, outdev.ErrAcquire))
	assert.Contains(t, err.Error(), "permission denied")
}

func TestOpenOutputDeviceBusy(t *testing.T) {
	c := gpiotest.New(8)
	d, err := outdev.OpenOutputDevice(c, testPin)
	require.Nil(t, err)
	defer d.Close()
	d2, err := outdev.OpenOutputDevice(c, testPin)
	assert.Nil(t, d2)
	assert.True(t, errors.Is(err, outdev.ErrAcquire))
}

func TestOpenOutputDeviceConfigureFail(t *testing.T) {
	c := gpiotest.New(8)
	c.FailOutput(testPin, errors.New("input only"))
	d, err := outdev.OpenOutputDevice(c, testPin)
	assert.Nil(t, d)
	assert.True(t, errors.Is(err, outdev.ErrConfigure))
	// the pin must not be left claimed
	assert.Nil(t, c.Line(testPin))
	c.FailOutput(testPin, nil)
	d, err = outdev.OpenOutputDevice(c, testPin)
	assert.Nil(t, err)
	assert.NotNil(t, d)
}

func TestNewOutputDevicePanics(t *testing.T) {
	c := gpiotest.New(8)
	c.FailAcquire(testPin, errors.New("no such pin"))
	assert.Panics(t, func() {
		outdev.NewOutputDevice(c, testPin)
	})
	c.FailAcquire(testPin, nil)
	assert.NotPanics(t, func() {
		d := outdev.NewOutputDevice(c, testPin)
		d.Close()
	})
}

func TestPolarityInverse(t *testing.T) {
	d, _ := newOutput(t)
	for _, ah := range []bool{true, false} {
		d.SetActiveHigh(ah)
		for _, s := range []outdev.Level{outdev.Low, outdev.High} {
			assert.Equal(t, s, outdev.ValueToState(d, outdev.StateToValue(d, s)))
		}
		for _, v := range []bool{false, true} {
			assert.Equal(t, v, outdev.StateToValue(d, outdev.ValueToState(d, v)))
		}
		assert.Equal(t, outdev.Level(ah), outdev.ValueToState(d, true))
		assert.Equal(t, outdev.Level(!ah), outdev.ValueToState(d, false))
	}
}

func TestOnOff(t *testing.T) {
	d, l := newOutput(t)
	d.On()
	assert.Equal(t, outdev.High, l.Level())
	assert.True(t, d.Value())
	assert.True(t, d.IsActive())
	d.On()
	assert.Equal(t, outdev.High, l.Level())
	d.Off()
	assert.Equal(t, outdev.Low, l.Level())
	assert.False(t, d.Value())
	d.Off()
	assert.Equal(t, outdev.Low, l.Level())
	assert.False(t, d.IsActive())
	assert.Equal(t, 4, l.Writes())
	assert.Equal(t, 2, len(l.History()))
}

func TestToggle(t *testing.T) {
	d, l := newOutput(t)
	for _, ah := range []bool{true, false} {
		d.SetActiveHigh(ah)
		for _, initial := range []bool{false, true} {
			if initial {
				d.On()
			} else {
				d.Off()
			}
			d.Toggle()
			assert.Equal(t, !initial, d.Value())
			assert.Equal(t, outdev.Level(initial != ah), l.Level())
			d.Toggle()
			assert.Equal(t, initial, d.Value())
		}
	}
}

func TestActiveHighRoundTrip(t *testing.T) {
	d, l := newOutput(t)
	d.On()
	writes := l.Writes()
	d.SetActiveHigh(true)
	assert.True(t, d.ActiveHigh())
	assert.True(t, d.Value())
	d.SetActiveHigh(false)
	assert.False(t, d.ActiveHigh())
	assert.False(t, d.Value())
	d.SetActiveHigh(true)
	assert.True(t, d.ActiveHigh())
	assert.True(t, d.Value())
	assert.Equal(t, outdev.ValueToState(d, true), outdev.High)
	assert.Equal(t, outdev.ValueToState(d, false), outdev.Low)
	// polarity changes never touch the pin
	assert.Equal(t, writes, l.Writes())
	assert.Equal(t, outdev.High, l.Level())
}

func TestPolarityScenario(t *testing.T) {
	d, l := newOutput(t)
	require.Equal(t, outdev.Low, l.Level())
	require.True(t, d.ActiveHigh())

	d.On()
	assert.True(t, d.Value())
	assert.Equal(t, outdev.High, l.Level())

	d.SetActiveHigh(false)
	assert.False(t, d.Value())
	assert.Equal(t, outdev.High, l.Level())

	d.On()
	assert.Equal(t, outdev.Low, l.Level())
	assert.True(t, d.Value())
}

func TestAsActiveLow(t *testing.T) {
	d, l := newOutput(t, outdev.AsActiveLow)
	assert.False(t, d.ActiveHigh())
	assert.True(t, d.Value())
	d.Off()
	assert.Equal(t, outdev.High, l.Level())
	d.On()
	assert.Equal(t, outdev.Low, l.Level())
}

func TestWithInitialValue(t *testing.T) {
	d, l := newOutput(t, outdev.WithInitialValue(true))
	assert.True(t, d.Value())
	assert.Equal(t, outdev.High, l.Level())

	d, l = newOutputOn(t, 5, outdev.AsActiveLow, outdev.WithInitialValue(false))
	assert.False(t, d.Value())
	assert.Equal(t, outdev.High, l.Level())
}

func newOutputOn(t *testing.T, pin int, opts ...outdev.Option) (*outdev.OutputDevice, *gpiotest.Line) {
	t.Helper()
	c := gpiotest.New(8)
	d, err := outdev.OpenOutputDevice(c, pin, opts...)
	require.Nil(t, err)
	t.Cleanup(func() { d.Close() })
	return d, c.Line(pin)
}

func TestOutputDeviceClose(t *testing.T) {
	c := gpiotest.New(8)
	d, err := outdev.OpenOutputDevice(c, testPin)
	require.Nil(t, err)
	l := c.Line(testPin)
	d.On()
	assert.Nil(t, d.Close())
	assert.True(t, l.Closed())
	assert.Equal(t, gpiotest.Input, l.Mode())
	assert.Nil(t, c.Line(testPin))
	assert.Equal(t, outdev.ErrClosed, d.Close())
	// pin can be reacquired once released
	d, err = outdev.OpenOutputDevice(c, testPin)
	require.Nil(t, err)
	assert.True(t, d.Value())
	d.Close()
}
