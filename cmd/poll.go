// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

var (
	pollCount     int
	pollKeepGoing bool
	pollRecord    string
	pollStats     bool
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Print statistics samples continuously",
	Long: `Connect to the device, print its serial number and then request a
statistics sample every --interval until interrupted.

Each sample is printed as one line: input count, per-input voltages and
currents, output voltage, load current and battery current.

A short read stops polling unless --keep-going is given. Samples can be
recorded to a file with --record and played back with the replay command.`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	addIntervalFlag(pollCmd)
	pollCmd.Flags().IntVarP(&pollCount, "count", "n", 0, "Stop after this many polls (0 = until interrupted)")
	pollCmd.Flags().BoolVarP(&pollKeepGoing, "keep-going", "k", false, "Continue after short reads and failed handshakes")
	pollCmd.Flags().StringVarP(&pollRecord, "record", "r", "", "Append samples to a CBOR recording")
	pollCmd.Flags().BoolVarP(&pollStats, "stats", "s", false, "Print poll statistics on exit")
}

func runPoll(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(&settings)
	if err != nil {
		return err
	}

	var rec *optv.Recorder
	if pollRecord != "" {
		f, err := os.OpenFile(pollRecord, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open recording: %w", err)
		}
		defer f.Close()

		rec, err = optv.NewRecorder(f)
		if err != nil {
			return err
		}
	}

	fmt.Printf("Optvstat - Statistics Poll\n")
	fmt.Printf("Connection: %s\n", t.info)

	ctrl := newController(t.open)
	p := newPoller(ctrl, t.name, settings.Interval)
	p.count = pollCount
	p.keepGoing = pollKeepGoing
	p.log = logger

	err = ctrl.Session(cmd.Context(), t.name, func(ctx context.Context, c *optv.Controller) error {
		return pollSamples(ctx, p, os.Stdout, rec)
	})

	if pollStats {
		fmt.Print(p.stats.String())
	}
	return ignoreCanceled(err)
}

// pollSamples prints the serial number and then every sample p reads
func pollSamples(ctx context.Context, p *poller, w io.Writer, rec *optv.Recorder) error {
	serial, _ := p.ctrl.SerialNumber()
	fmt.Fprintf(w, "Serial number: %d\n\n", serial)

	return p.Run(ctx, func(r pollResult) error {
		fmt.Fprint(w, optv.FormatSample(r.at, r.sample))
		if rec == nil {
			return nil
		}
		return rec.Write(optv.Record{Time: r.at, SerialNumber: serial, Sample: *r.sample})
	})
}

// ignoreCanceled treats an interrupt as a clean exit
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
