// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// newLogger returns a console logger writing to w at the named level
func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	l, err := newConsoleLogger(level, out)
	if err != nil {
		return l, err
	}
	return l.With().Timestamp().Logger(), nil
}

func newConsoleLogger(level string, out zerolog.ConsoleWriter) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(out).Level(lvl), nil
}
