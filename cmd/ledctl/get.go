// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warthog618/outdev"
)

func init() {
	getCmd.Flags().BoolVarP(&getOpts.Short, "short", "s", false, "single line output format")
	getCmd.SetHelpTemplate(getCmd.HelpTemplate() + extendedGetHelp)
	rootCmd.AddCommand(getCmd)
}

var (
	getCmd = &cobra.Command{
		Use:     "get <pin>",
		Short:   "Read the value of the device on a pin",
		Args:    cobra.ExactArgs(1),
		RunE:    get,
		Example: "  ledctl get J8p15",
	}
	getOpts = struct {
		Short bool
	}{}
)

var extendedGetHelp = `
The pin is read as is.  Its mode is not changed.
`

func get(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close()
	l, err := s.b.Acquire(s.pin)
	if err != nil {
		return err
	}
	defer l.Close()
	v := l.Read()
	if s.cfg.MustGet("active.low").Bool() {
		v = !v
	}
	if getOpts.Short {
		fmt.Println(level2Int(v))
	} else {
		fmt.Printf("pin %2d: %t\n", s.pin, v)
	}
	return nil
}

func level2Int(l outdev.Level) int {
	if l == outdev.Low {
		return 0
	}
	return 1
}
