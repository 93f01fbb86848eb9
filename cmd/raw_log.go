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

var (
	rawLogCommand  string
	rawLogDuration time.Duration
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Send one command byte and hex dump whatever comes back",
	Long: `Write a single command byte without waiting for the echo, then print every
byte received until --duration elapses or Ctrl+C is pressed.

Useful for checking firmware responses and line noise when the handshake
in the other commands does not succeed.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogCommand, "command", "b", "Command byte to send: a (device info), b (statistics) or none")
	rawLogCmd.Flags().DurationVar(&rawLogDuration, "duration", 2*time.Second, "How long to capture")
}

func parseRawCommand(s string) ([]byte, error) {
	switch s {
	case "a":
		return []byte{optv.CmdDeviceInfo}, nil
	case "b":
		return []byte{optv.CmdStatistics}, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown command %q (use a, b or none)", s)
	}
}

func runRawLog(cmd *cobra.Command, args []string) error {
	command, err := parseRawCommand(rawLogCommand)
	if err != nil {
		return err
	}

	t, err := resolveTarget(&settings)
	if err != nil {
		return err
	}

	port, err := t.open(t.name)
	if err != nil {
		return err
	}
	defer port.Close()

	fmt.Printf("Optvstat - Raw Log\n")
	fmt.Printf("Connection: %s\n", t.info)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, cancel := context.WithTimeout(cmd.Context(), rawLogDuration)
	defer cancel()

	n, err := captureRaw(ctx, port, command, os.Stdout)
	fmt.Printf("\n%d bytes received\n", n)
	return err
}

// captureRaw writes command (if any) and dumps every chunk read until ctx
// is done. Returns the number of bytes received.
func captureRaw(ctx context.Context, port optv.Port, command []byte, w io.Writer) (int, error) {
	if len(command) > 0 {
		if _, err := port.Write(command); err != nil {
			return 0, fmt.Errorf("failed to write command: %w", err)
		}
		fmt.Fprintf(w, "[%s] TX % X\n", time.Now().Format("15:04:05.000"), command)
	}

	total := 0
	buf := make([]byte, 256)
	for ctx.Err() == nil {
		n, err := port.Read(buf)
		if n > 0 {
			total += n
			fmt.Fprintf(w, "[%s] RX % X\n", time.Now().Format("15:04:05.000"), buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
				fmt.Fprintf(w, "Connection closed\n")
				return total, nil
			}
			return total, fmt.Errorf("read error: %w", err)
		}
	}
	return total, nil
}
