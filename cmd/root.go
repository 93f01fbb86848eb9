// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

var (
	// settings holds the flag values, merged with --config in PersistentPreRunE
	settings = defaultConfig()

	configPath string

	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "optvstat",
	Short: "Power telemetry poller",
	Long: `Optvstat - A CLI tool for reading statistics from power telemetry devices.

Talks to the device over a serial line: every request is a single command
byte that the device echoes back before the response frame. Commands cover
one-shot reads, continuous polling, a live dashboard and MQTT publishing.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the OPTV_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also be read from a YAML file with --config. Flags given on the
command line take precedence over the file.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	flags := rootCmd.PersistentFlags()

	// Serial connection flags
	flags.StringVarP(&settings.Port, "port", "p", "", "Serial port device")
	flags.IntVarP(&settings.Baud, "baud", "b", optv.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringVarP(&settings.URL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&settings.Username, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&settings.NoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Protocol flags
	flags.DurationVar(&settings.ReadTimeout, "read-timeout", optv.DefaultReadTimeout, "Read timeout per byte wait")
	flags.IntVar(&settings.Retry.MaxAttempts, "max-attempts", 0, "Command writes before giving up on an echo (0 = unlimited)")
	flags.DurationVar(&settings.Retry.BackoffMin, "backoff-min", 0, "Initial delay between echo attempts (0 = no delay)")
	flags.DurationVar(&settings.Retry.BackoffMax, "backoff-max", 0, "Maximum delay between echo attempts")

	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&settings.LogLevel, "log-level", "warn", "Diagnostics level (debug, info, warn, error)")
}

// loadSettings merges the config file into the flag values and sets up logging
func loadSettings(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		file, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		mergeConfig(&settings, file, cmd.Flags())
	}

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := newLogger(settings.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// addIntervalFlag registers --interval on a polling command
func addIntervalFlag(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&settings.Interval, "interval", settings.Interval, "Time between statistics requests")
}
