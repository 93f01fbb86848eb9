// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/optvstat/pkg/optv"
	"github.com/Thermoquad/optvstat/pkg/telemetry"
)

var publishCount int

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Poll statistics and publish them to an MQTT broker",
	Long: `Poll the device and publish every sample as JSON.

Topics (prefix from --topic-prefix or mqtt.topic_prefix):
  <prefix>/<serial>/info        device info, retained
  <prefix>/<serial>/statistics  one message per sample
  <prefix>/<serial>/status      online/offline, retained (offline is the last will)

Short reads are skipped and a lost connection is reopened with backoff, so
the command runs until interrupted.`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	addIntervalFlag(publishCmd)
	publishCmd.Flags().StringVar(&settings.MQTT.Broker, "broker", "", "MQTT broker URL (tcp://host:1883)")
	publishCmd.Flags().StringVar(&settings.MQTT.TopicPrefix, "topic-prefix", settings.MQTT.TopicPrefix, "MQTT topic prefix")
	publishCmd.Flags().IntVarP(&publishCount, "count", "n", 0, "Stop after this many polls (0 = until interrupted)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	if err := settings.MQTT.Validate(); err != nil {
		return err
	}

	t, err := resolveTarget(&settings)
	if err != nil {
		return err
	}

	ctrl := newController(t.open)
	err = ctrl.Session(cmd.Context(), t.name, func(ctx context.Context, c *optv.Controller) error {
		info, _ := c.Info()
		fmt.Printf("Connection: %s\n", t.info)
		fmt.Printf("Serial number: %d\n", info.SerialNumber)
		fmt.Printf("Broker: %s\n", settings.MQTT.Broker)

		pub := telemetry.NewPublisher(settings.MQTT, info.SerialNumber, logger)
		if err := pub.Connect(ctx); err != nil {
			return err
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Warn().Err(err).Msg("MQTT close")
			}
		}()

		p := newPoller(c, t.name, settings.Interval)
		p.count = publishCount
		p.keepGoing = true
		p.reconnect = true
		p.log = logger
		return publishSamples(ctx, p, pub, info)
	})
	return ignoreCanceled(err)
}

// samplePublisher is the part of telemetry.Publisher used while polling
type samplePublisher interface {
	PublishInfo(ctx context.Context, info optv.DeviceInfo) error
	PublishSample(ctx context.Context, at time.Time, s *optv.StatisticsSample) error
}

// publishSamples publishes the device info and then every sample p reads.
// Publish failures are logged and polling continues.
func publishSamples(ctx context.Context, p *poller, pub samplePublisher, info optv.DeviceInfo) error {
	if err := pub.PublishInfo(ctx, info); err != nil {
		return err
	}

	p.onReconnect = func() {
		current, ok := p.ctrl.Info()
		if !ok {
			return
		}
		if current.SerialNumber != info.SerialNumber {
			logger.Warn().
				Uint32("expected", info.SerialNumber).
				Uint32("got", current.SerialNumber).
				Msg("a different device answered after reconnect")
		}
		if err := pub.PublishInfo(ctx, current); err != nil {
			logger.Warn().Err(err).Msg("failed to republish device info")
		}
	}

	return p.Run(ctx, func(r pollResult) error {
		if err := pub.PublishSample(ctx, r.at, r.sample); err != nil {
			logger.Warn().Err(err).Msg("failed to publish sample")
		}
		return nil
	})
}
