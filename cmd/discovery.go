// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

var (
	discoveryTimeout time.Duration
	discoveryUSBOnly bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find devices on the local serial ports",
	Long: `Probe every serial port for a device that answers the device info command.

Each port is opened with the configured baud rate and read timeout and given
--timeout to echo the command. Ports that are busy or silent are skipped.

Examples:
  # Probe all ports
  optvstat discovery

  # Only USB adapters, at 57600 baud
  optvstat discovery --usb --baud 57600

Exit codes:
  0 - At least one device found
  1 - No device answered
  2 - Ports could not be listed`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().DurationVar(&discoveryTimeout, "timeout", 2*time.Second, "Time each port is given to answer")
	discoveryCmd.Flags().BoolVar(&discoveryUSBOnly, "usb", false, "Only probe USB serial adapters")
}

// discoveredDevice is a port that answered the device info command
type discoveredDevice struct {
	port     string
	info     optv.DeviceInfo
	attempts int
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list serial ports: %v\n", err)
		os.Exit(2)
	}

	names := make([]string, 0, len(ports))
	for _, p := range ports {
		if discoveryUSBOnly && !p.IsUSB {
			continue
		}
		names = append(names, p.Name)
	}

	fmt.Printf("Optvstat - Device Discovery\n")
	fmt.Printf("Baud rate: %d\n", settings.Baud)
	fmt.Printf("Timeout: %s per port\n", discoveryTimeout)
	fmt.Printf("Ports: %d\n\n", len(names))

	devices := discoverDevices(cmd.Context(), names, optv.SerialOpener(settings.SerialConfig()), discoveryTimeout, os.Stdout)

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Devices found: %d\n", len(devices))
	if len(devices) == 0 {
		fmt.Printf("No devices discovered. Check connection, baud rate and device power.\n")
		os.Exit(1)
	}
	return nil
}

// discoverDevices probes each port in turn and returns those that answered
func discoverDevices(ctx context.Context, ports []string, open optv.OpenFunc, timeout time.Duration, w io.Writer) []discoveredDevice {
	devices := make([]discoveredDevice, 0)

	for _, port := range ports {
		if ctx.Err() != nil {
			break
		}

		fmt.Fprintf(w, "Probing %s... ", port)
		dev, err := probePort(ctx, port, open, timeout)
		if err != nil {
			fmt.Fprintf(w, "no device (%v)\n", err)
			logger.Debug().Err(err).Str("port", port).Msg("probe failed")
			continue
		}

		fmt.Fprintf(w, "found serial number %d (%d attempts)\n", dev.info.SerialNumber, dev.attempts)
		devices = append(devices, dev)
	}

	return devices
}

func probePort(ctx context.Context, port string, open optv.OpenFunc, timeout time.Duration) (discoveredDevice, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctrl := newController(open)
	var dev discoveredDevice
	err := ctrl.Session(ctx, port, func(ctx context.Context, c *optv.Controller) error {
		info, _ := c.Info()
		dev = discoveredDevice{port: port, info: info, attempts: c.LastAttempts()}
		return nil
	})
	return dev, err
}
