// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"strings"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/outdev"
	"github.com/warthog618/outdev/cdev"
	"github.com/warthog618/outdev/rpi"
)

var version = "undefined"

const (
	configFileFlag    = "config-file"
	defaultConfigFile = "ledctl.json"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("backend", "b", "cdev", "the GPIO backend [cdev|gpiomem]")
	pf.StringP("chip", "c", "gpiochip0", "the GPIO chip used by the cdev backend")
	pf.BoolP("active-low", "l", false, "treat the line as active low")
	pf.String(configFileFlag, defaultConfigFile, "the JSON config file")
	pf.String("log-level", "info", "the log level [debug|info|warn|error]")
	rootCmd.SetHelpTemplate(rootCmd.HelpTemplate() + extendedRootHelp)
}

var rootCmd = &cobra.Command{
	Use:   "ledctl",
	Short: "ledctl is a utility to drive LEDs and other output devices on GPIO pins",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	Version: version,
}

var extendedRootHelp = `
Pins:
  Pins may be identified by J8 name (J8pXX), GPIO name (GPIOxx) or number.

Configuration:
  Settings may also be provided by environment variables prefixed with
  LEDCTL_, e.g. LEDCTL_ACTIVE_LOW=1, or in the JSON config file.
  The default config file, ledctl.json, is read only if present.
  Command line flags take precedence over both.
`

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig layers the command line flags over the environment, the config
// file and the defaults.
func loadConfig(cmd *cobra.Command) *config.Config {
	defaultConfig := map[string]interface{}{}
	flags := map[string]interface{}{}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// an unset config file falls back to the optional default file,
		// while an explicit one must load.
		if f.Name == configFileFlag {
			return
		}
		setPath(defaultConfig, f.Name, f.DefValue)
	})
	cmd.Flags().Visit(func(f *pflag.Flag) {
		setPath(flags, f.Name, f.Value.String())
	})
	def := dict.New(dict.WithMap(defaultConfig))
	cfg := config.New(
		dict.New(dict.WithMap(flags)),
		env.New(env.WithEnvPrefix("LEDCTL_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", defaultConfigFile, json.NewDecoder()))
	return cfg.GetConfig("", config.WithMust)
}

// setPath stores the value in the map tree, splitting the flag name into
// nested keys, so active-low becomes active.low.
func setPath(m map[string]interface{}, name string, v interface{}) {
	keys := strings.Split(name, "-")
	for _, k := range keys[:len(keys)-1] {
		sm, ok := m[k].(map[string]interface{})
		if !ok {
			sm = map[string]interface{}{}
			m[k] = sm
		}
		m = sm
	}
	m[keys[len(keys)-1]] = v
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.MustGet("log.level").String())
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	customFormatter := new(prefixed.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	customFormatter.PrefixPadding = 20
	customFormatter.SpacePadding = 50
	logger.SetFormatter(customFormatter)
	return logger, nil
}

type backend interface {
	outdev.Backend
	Close() error
}

func openBackend(cfg *config.Config, logger logrus.FieldLogger) (backend, error) {
	switch name := cfg.MustGet("backend").String(); name {
	case "cdev":
		c, err := cdev.Open(
			cfg.MustGet("chip").String(),
			cdev.WithConsumer("ledctl"),
			cdev.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return c, nil
	case "gpiomem":
		g, err := rpi.Open()
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown backend '%s'", name)
	}
}

// session holds the resources shared by the commands that drive a pin.
type session struct {
	cfg    *config.Config
	log    *logrus.Logger
	b      backend
	pin    int
	devOpt []outdev.Option
}

func newSession(cmd *cobra.Command, pinArg string) (*session, error) {
	pin, err := rpi.ParsePin(pinArg)
	if err != nil {
		return nil, err
	}
	cfg := loadConfig(cmd)
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	b, err := openBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:    cfg,
		log:    logger,
		b:      b,
		pin:    pin,
		devOpt: []outdev.Option{outdev.WithLogger(logger)},
	}
	if cfg.MustGet("active.low").Bool() {
		s.devOpt = append(s.devOpt, outdev.AsActiveLow)
	}
	return s, nil
}

func (s *session) Close() error {
	return s.b.Close()
}

func (s *session) openDevice() (*outdev.DigitalOutputDevice, error) {
	return outdev.OpenDigitalOutputDevice(s.b, s.pin, s.devOpt...)
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "ledctl %s: %s\n", cmd.Name(), err)
}
