// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

// pollResult is one successful statistics read
type pollResult struct {
	at        time.Time
	sample    *optv.StatisticsSample
	anomalies []optv.ValidationError
	attempts  int
}

// poller reads statistics from a connected controller at a fixed interval
type poller struct {
	ctrl     *optv.Controller
	name     string
	stats    *optv.PollStatistics
	interval time.Duration
	count    int // 0 = until cancelled
	log      zerolog.Logger

	// keepGoing continues after short reads and exhausted handshakes
	keepGoing bool

	// reconnect reopens the port after other errors instead of stopping
	reconnect bool
	backoff   *backoff.Backoff

	onError     func(error)
	onReconnect func()
}

func newPoller(ctrl *optv.Controller, name string, interval time.Duration) *poller {
	return &poller{
		ctrl:     ctrl,
		name:     name,
		stats:    optv.NewPollStatistics(),
		interval: interval,
		log:      zerolog.Nop(),
		backoff:  &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2},
	}
}

// Run polls until ctx is done, count polls were made, handle fails or a
// poll error is not recoverable
func (p *poller) Run(ctx context.Context, handle func(pollResult) error) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for n := 0; p.count == 0 || n < p.count; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		sample, err := p.ctrl.Statistics(ctx)
		attempts := p.ctrl.LastAttempts()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.stats.Update(attempts, err, nil)
			if p.onError != nil {
				p.onError(err)
			}
			if err := p.recover(ctx, err); err != nil {
				return err
			}
			continue
		}

		anomalies := optv.ValidateSample(sample)
		p.stats.Update(attempts, nil, anomalies)
		for _, a := range anomalies {
			p.log.Warn().Str("anomaly", optv.FormatAnomalyType(a.Type)).Msg(a.Message)
		}

		if err := handle(pollResult{at: time.Now(), sample: sample, anomalies: anomalies, attempts: attempts}); err != nil {
			return err
		}
	}
	return nil
}

// recover returns nil if polling may continue after err
func (p *poller) recover(ctx context.Context, err error) error {
	if errors.Is(err, optv.ErrShortRead) || errors.Is(err, optv.ErrSyncExhausted) {
		if p.keepGoing {
			p.log.Warn().Err(err).Msg("poll failed, continuing")
			return nil
		}
		return err
	}

	if !p.reconnect {
		return err
	}
	return p.reconnectLoop(ctx, err)
}

// reconnectLoop closes the port and connects again with exponential backoff
func (p *poller) reconnectLoop(ctx context.Context, cause error) error {
	p.log.Warn().Err(cause).Msg("connection lost, reconnecting")
	if err := p.ctrl.Disconnect(); err != nil {
		p.log.Debug().Err(err).Msg("close after failure")
	}

	p.backoff.Reset()
	for {
		timer := time.NewTimer(p.backoff.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err := p.ctrl.Connect(ctx, p.name)
		if err == nil {
			p.log.Info().Str("port", p.name).Msg("reconnected")
			if p.onReconnect != nil {
				p.onReconnect()
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.log.Warn().Err(err).Msg("reconnect failed")
		if derr := p.ctrl.Disconnect(); derr != nil {
			p.log.Debug().Err(derr).Msg("close after failed reconnect")
		}
	}
}
