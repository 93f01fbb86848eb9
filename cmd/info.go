// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

var infoRaw bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Read the device serial number",
	Long: `Connect to the device, request its info frame and print the serial number.

With --raw the undocumented reserved word of the info frame is shown too.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&infoRaw, "raw", false, "Also show the reserved field")
}

func runInfo(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(&settings)
	if err != nil {
		return err
	}

	ctrl := newController(t.open)
	return ctrl.Session(cmd.Context(), t.name, func(ctx context.Context, c *optv.Controller) error {
		info, _ := c.Info()
		fmt.Printf("Connection: %s\n", t.info)
		fmt.Print(optv.FormatDeviceInfo(info, infoRaw))
		return nil
	})
}
