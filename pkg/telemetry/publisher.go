// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry publishes device readings to an MQTT broker.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

// Availability payloads
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Config holds the broker settings
type Config struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

// DefaultConfig returns the defaults used when the config file is silent
func DefaultConfig() Config {
	return Config{
		ClientID:    "optvstat",
		TopicPrefix: "optv",
		QoS:         1,
	}
}

// Validate checks the settings needed to publish
func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("mqtt broker is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos %d (must be 0, 1 or 2)", c.QoS)
	}
	if c.TopicPrefix == "" {
		return errors.New("mqtt topic prefix is required")
	}
	return nil
}

// Topic joins prefix, serial number and leaf into a topic name
func Topic(prefix string, serial uint32, leaf string) string {
	return prefix + "/" + strconv.FormatUint(uint64(serial), 10) + "/" + leaf
}

// client is the part of paho.Client the publisher uses
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// Publisher sends the readings of one device to the broker
type Publisher struct {
	client client
	cfg    Config
	serial uint32
	log    zerolog.Logger

	retry *backoff.Backoff
}

// NewPublisher creates a publisher for the device with the given serial
// number. The broker marks the device offline if the connection drops.
func NewPublisher(cfg Config, serial uint32, log zerolog.Logger) *Publisher {
	status := Topic(cfg.TopicPrefix, serial, "status")

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWill(status, StatusOffline, cfg.QoS, true)

	opts.SetOnConnectHandler(func(c paho.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("connected to MQTT broker")
		if token := c.Publish(status, cfg.QoS, true, StatusOnline); token.Wait() && token.Error() != nil {
			log.Warn().Err(token.Error()).Msg("failed to publish online status")
		}
	})
	opts.SetConnectionLostHandler(func(c paho.Client, err error) {
		log.Error().Err(err).Msg("MQTT connection lost")
	})

	return newPublisher(paho.NewClient(opts), cfg, serial, log)
}

func newPublisher(c client, cfg Config, serial uint32, log zerolog.Logger) *Publisher {
	return &Publisher{
		client: c,
		cfg:    cfg,
		serial: serial,
		log:    log,
		retry:  &backoff.Backoff{Min: 500 * time.Millisecond, Max: 30 * time.Second, Factor: 2},
	}
}

// Connect connects to the broker, retrying until ctx is done
func (p *Publisher) Connect(ctx context.Context) error {
	p.retry.Reset()
	for attempt := 1; ; attempt++ {
		err := wait(ctx, p.client.Connect())
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("mqtt connect cancelled: %w", ctx.Err())
		}

		delay := p.retry.Duration()
		p.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("MQTT connection failed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("mqtt connect cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// PublishInfo publishes the device info as a retained message
func (p *Publisher) PublishInfo(ctx context.Context, info optv.DeviceInfo) error {
	return p.publishJSON(ctx, Topic(p.cfg.TopicPrefix, p.serial, "info"), true, info)
}

// PublishSample publishes one statistics reading
func (p *Publisher) PublishSample(ctx context.Context, at time.Time, s *optv.StatisticsSample) error {
	rec := optv.Record{Time: at, SerialNumber: p.serial, Sample: *s}
	return p.publishJSON(ctx, Topic(p.cfg.TopicPrefix, p.serial, "statistics"), p.cfg.Retain, rec)
}

// Close marks the device offline and disconnects
func (p *Publisher) Close() error {
	if !p.client.IsConnected() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := Topic(p.cfg.TopicPrefix, p.serial, "status")
	err := wait(ctx, p.client.Publish(status, p.cfg.QoS, true, StatusOffline))
	p.client.Disconnect(250)
	if err != nil {
		return fmt.Errorf("failed to publish offline status: %w", err)
	}
	return nil
}

func (p *Publisher) publishJSON(ctx context.Context, topic string, retain bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", topic, err)
	}

	if err := wait(ctx, p.client.Publish(topic, p.cfg.QoS, retain, payload)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	p.log.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("published")
	return nil
}

// wait blocks until the token completes or ctx is done
func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
