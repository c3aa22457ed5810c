// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Radiance Authors

package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zbanks/radiance-sub001/pkg/host"
	"github.com/zbanks/radiance-sub001/pkg/logger"
	"github.com/zbanks/radiance-sub001/pkg/lux"
)

var (
	cfgFile string

	// Resolved configuration and logger, set before any command runs
	cfg *Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "luxctl",
	Short: "Lux LED strip protocol tool",
	Long: `luxctl - A CLI tool for talking to Lux LED strip nodes.

Provides commands for monitoring the bus, querying and configuring nodes,
streaming frames, updating firmware through the bootloader, and running a
simulated node.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 3000000] [--rts]
  UDP:       --udp 192.168.1.50:1337
  WebSocket: --url ws://host/path [--username user]

Settings may also come from luxctl.yaml (in ., $HOME/.luxctl or /etc/luxctl)
or LUX_* environment variables, e.g. LUX_PORT, LUX_DEST, LUX_LOG_LEVEL.

For WebSocket authentication, the password is read from the LUX_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default luxctl.yaml)")

	// Serial connection flags
	flags.StringP("port", "p", "", "Serial port device")
	flags.IntP("baud", "b", lux.DefaultBaudRate, "Baud rate (serial only)")
	flags.Bool("rts", false, "Assert RTS while transmitting (RS-485 driver enable)")

	// UDP connection flags
	flags.String("udp", "", "Node UDP address (host:port)")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Driver flags
	flags.StringP("dest", "d", "", "Destination node address (e.g. 0x42)")
	flags.Duration("timeout", host.DefaultTimeout, "Response timeout per attempt")
	flags.Int("retries", host.DefaultRetries, "Attempts per command")

	// Logging flags
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", logger.FormatConsole, "Log format (console, json)")

	_ = viper.BindPFlags(flags)
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	l, err := logger.New(os.Stderr, logger.Options{Level: c.LogLevel, Format: c.LogFormat})
	if err != nil {
		return err
	}
	slog.SetDefault(l)

	cfg, log = c, l
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
