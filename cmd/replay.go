// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

var replayJSON bool

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Print a recording made with poll --record",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print one JSON object per record")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	n, err := replayRecords(f, os.Stdout, replayJSON)
	if err != nil {
		return err
	}
	logger.Info().Int("records", n).Str("file", args[0]).Msg("replay finished")
	return nil
}

// replayRecords writes every record of a recording to w and returns the count
func replayRecords(r io.Reader, w io.Writer, asJSON bool) (int, error) {
	enc := json.NewEncoder(w)

	count := 0
	var serial uint32
	err := optv.ReadRecords(r, func(rec optv.Record) error {
		count++
		if asJSON {
			return enc.Encode(rec)
		}

		if count == 1 || rec.SerialNumber != serial {
			serial = rec.SerialNumber
			fmt.Fprintf(w, "Serial number: %d\n", serial)
		}
		_, err := fmt.Fprint(w, optv.FormatSample(rec.Time, &rec.Sample))
		return err
	})
	return count, err
}
