// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	blinkCmd.Flags().Duration("on-time", defaultBlinkPeriod, "the time the device is on in each cycle")
	blinkCmd.Flags().Duration("off-time", defaultBlinkPeriod, "the time the device is off in each cycle")
	blinkCmd.Flags().IntP("count", "n", -1, "the number of cycles (negative blinks until interrupted)")
	blinkCmd.SetHelpTemplate(blinkCmd.HelpTemplate() + extendedBlinkHelp)
	rootCmd.AddCommand(blinkCmd)
}

var blinkCmd = &cobra.Command{
	Use:     "blink <pin>",
	Short:   "Blink the device on a pin",
	Long:    `Turn the device on and off repeatedly until the count is reached or the command is interrupted.`,
	Args:    cobra.ExactArgs(1),
	RunE:    blink,
	Example: "  ledctl blink --on-time 100ms --off-time 900ms -n 10 J8p7",
}

var extendedBlinkHelp = `
Times have millisecond resolution.
The device is turned off when the command exits.
`

const defaultBlinkPeriod = 500 * time.Millisecond

func blink(cmd *cobra.Command, args []string) error {
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
		d.Off()
		if err := d.Close(); err != nil {
			logErr(cmd, err)
		}
	}()

	onTime := s.cfg.MustGet("on.time").Duration()
	offTime := s.cfg.MustGet("off.time").Duration()
	count := s.cfg.MustGet("count").Int()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	d.Blink(onTime, offTime, int(count))
	err = d.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		s.log.WithFields(logrus.Fields{"pin": s.pin}).Info("interrupted")
		return nil
	}
	return err
}
