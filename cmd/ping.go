// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

// Exit codes of the ping command
const (
	pingOK        = 0
	pingTimeout   = 1
	pingConnError = 2
)

var pingWait time.Duration

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the connection by waiting for a device info echo",
	Long: `Send the device info command until the device echoes it, or until the
timeout elapses.

Exit codes:
  0 - Device answered before timeout
  1 - Timeout reached without an echo
  2 - Connection error

Useful for testing connectivity to the device or a WebSocket bridge.`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().DurationVar(&pingWait, "timeout", 10*time.Second, "Time to wait for the device to answer")
}

func runPing(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(&settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(pingConnError)
	}

	fmt.Printf("Optvstat - Ping\n")
	fmt.Printf("Connection: %s\n", t.info)
	fmt.Printf("Timeout: %s\n", pingWait)
	fmt.Printf("Waiting for device info echo...\n\n")

	os.Exit(pingDevice(cmd.Context(), newController(t.open), t.name, pingWait, os.Stdout, os.Stderr))
	return nil
}

// pingDevice connects with a deadline and returns the exit code
func pingDevice(ctx context.Context, ctrl *optv.Controller, name string, timeout time.Duration, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := ctrl.Connect(ctx, name)
	elapsed := time.Since(start)
	opened := ctrl.Connected()

	if cerr := ctrl.Disconnect(); cerr != nil {
		fmt.Fprintf(stderr, "Close error: %v\n", cerr)
	}

	switch {
	case err == nil:
		serial, _ := ctrl.SerialNumber()
		fmt.Fprintf(stdout, "SUCCESS: Device answered\n")
		fmt.Fprintf(stdout, "  Serial number: %d\n", serial)
		fmt.Fprintf(stdout, "  Attempts: %d\n", ctrl.LastAttempts())
		fmt.Fprintf(stdout, "  Time: %s\n", elapsed.Round(time.Millisecond))
		return pingOK

	case !opened:
		fmt.Fprintf(stderr, "Connection error: %v\n", err)
		return pingConnError

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, optv.ErrSyncExhausted):
		fmt.Fprintf(stderr, "TIMEOUT: No echo within %s (%d attempts)\n", timeout, ctrl.LastAttempts())
		return pingTimeout

	case errors.Is(err, optv.ErrShortRead):
		fmt.Fprintf(stderr, "TIMEOUT: Device echoed but the frame was incomplete: %v\n", err)
		return pingTimeout

	default:
		fmt.Fprintf(stderr, "Read error: %v\n", err)
		return pingConnError
	}
}
