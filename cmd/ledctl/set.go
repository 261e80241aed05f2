// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/outdev"
)

func init() {
	for _, c := range []*cobra.Command{onCmd, offCmd, toggleCmd} {
		c.Flags().DurationP("hold", "t", 0, "exit after holding the value for this long (0 waits for a signal)")
		c.SetHelpTemplate(c.HelpTemplate() + extendedSetHelp)
		rootCmd.AddCommand(c)
	}
}

var (
	onCmd = &cobra.Command{
		Use:     "on <pin>",
		Short:   "Turn on the device on a pin",
		Args:    cobra.ExactArgs(1),
		RunE:    setter((*outdev.DigitalOutputDevice).On),
		Example: "  ledctl on J8p7",
	}
	offCmd = &cobra.Command{
		Use:     "off <pin>",
		Short:   "Turn off the device on a pin",
		Args:    cobra.ExactArgs(1),
		RunE:    setter((*outdev.DigitalOutputDevice).Off),
		Example: "  ledctl off -l GPIO4",
	}
	toggleCmd = &cobra.Command{
		Use:     "toggle <pin>",
		Short:   "Reverse the state of the device on a pin",
		Args:    cobra.ExactArgs(1),
		RunE:    setter((*outdev.DigitalOutputDevice).Toggle),
		Example: "  ledctl toggle 17",
	}
)

var extendedSetHelp = `
The value is held until the hold time expires or the command is interrupted,
after which the pin is released.
`

func setter(fn func(*outdev.DigitalOutputDevice)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		d, err := s.openDevice()
		if err != nil {
			return err
		}
		defer func() {
			if err := d.Close(); err != nil {
				logErr(cmd, err)
			}
		}()
		fn(d)
		fmt.Printf("pin %2d: %t\n", d.Pin(), d.Value())
		hold(s.cfg.MustGet("hold").Duration())
		return nil
	}
}

// hold waits for the hold time to expire, or for a signal.
func hold(period time.Duration) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if period > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, period)
		defer cancel()
	}
	<-ctx.Done()
}
