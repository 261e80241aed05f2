// SPDX-License-Identifier: MIT
//
// Copyright © 2017 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/outdev"
	"github.com/warthog618/outdev/rpi"
)

// This example drives GPIO 4, which is pin J8 7.
// The pin is blinked at 1Hz with a 50% duty cycle, in the background, while
// the main goroutine reports the value of the LED.
// Do not run this on a Raspberry Pi which has this pin externally driven.
func main() {
	g, err := rpi.Open()
	if err != nil {
		panic(err)
	}
	defer g.Close()
	logrus.SetLevel(logrus.DebugLevel)
	led := outdev.NewDigitalOutputDevice(g, rpi.GPIO4)
	defer led.Close()
	led.Blink(500*time.Millisecond, 500*time.Millisecond, outdev.Forever)
	// capture exit signals to ensure the pin is released on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	for {
		select {
		case <-time.After(250 * time.Millisecond):
			fmt.Println("LED", led.Value())
		case <-quit:
			return
		}
	}
}
