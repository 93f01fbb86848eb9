// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of device statistics",
	Long: `Poll the device and show the latest sample in an interactive terminal UI.

The dashboard shows the serial number, per-input voltages and currents, the
output voltage, load and battery currents, poll statistics and an event log.
Short reads are counted and skipped; a lost connection is reopened with
backoff. Press 'q' to quit.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	addIntervalFlag(monitorCmd)
}

// programWriter turns log lines into messages for the event log
type programWriter struct {
	send func(tea.Msg)
}

func (w programWriter) Write(p []byte) (int, error) {
	w.send(logLineMsg(strings.TrimRight(string(p), "\n")))
	return len(p), nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(&settings)
	if err != nil {
		return err
	}

	prog := tea.NewProgram(newMonitorModel(t.info, settings.Interval), tea.WithAltScreen())

	// Diagnostics go to the event log; stderr would tear the screen
	tuiLog, err := newConsoleLogger(settings.LogLevel, zerolog.ConsoleWriter{
		Out:          programWriter{send: prog.Send},
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	})
	if err != nil {
		return err
	}

	ctrl := optv.NewController(t.open,
		optv.WithRetryPolicy(settings.RetryPolicy()),
		optv.WithLogger(tuiLog),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := monitorLoop(ctx, ctrl, t.name, settings.Interval, prog.Send, tuiLog)
		if !errors.Is(err, context.Canceled) {
			prog.Send(monitorDoneMsg{err: err})
		}
		done <- err
	}()

	_, runErr := prog.Run()
	cancel()
	loopErr := <-done

	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return ignoreCanceled(loopErr)
}

// monitorLoop connects and polls until ctx is done, reporting to the TUI
// through send. The controller is disconnected on return.
func monitorLoop(ctx context.Context, ctrl *optv.Controller, name string, interval time.Duration, send func(tea.Msg), log zerolog.Logger) error {
	defer func() {
		if err := ctrl.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("disconnect")
		}
	}()

	p := newPoller(ctrl, name, interval)
	p.keepGoing = true
	p.reconnect = true
	p.log = log
	p.onError = func(err error) {
		send(pollErrorMsg{err: err, stats: *p.stats})
	}
	p.onReconnect = func() {
		serial, _ := ctrl.SerialNumber()
		send(connectedMsg{serial: serial})
	}

	if err := ctrl.Connect(ctx, name); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		send(pollErrorMsg{err: err, stats: *p.stats})
		if err := p.reconnectLoop(ctx, err); err != nil {
			return err
		}
	} else {
		p.onReconnect()
	}

	return p.Run(ctx, func(r pollResult) error {
		send(sampleMsg{result: r, stats: *p.stats})
		return nil
	})
}
