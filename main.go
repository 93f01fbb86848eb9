// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Optvstat - Power telemetry poller
//
// A CLI tool for reading device info and statistics samples from power
// telemetry devices over a serial line or a WebSocket bridge.

package main

import (
	"os"

	"github.com/Thermoquad/optvstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
