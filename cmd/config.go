// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/optvstat/pkg/optv"
	"github.com/Thermoquad/optvstat/pkg/telemetry"
)

// Config is the full set of settings, from flags or a YAML file
type Config struct {
	Port        string           `yaml:"port"`
	Baud        int              `yaml:"baud"`
	URL         string           `yaml:"url"`
	Username    string           `yaml:"username"`
	NoSSLVerify bool             `yaml:"no_ssl_verify"`
	ReadTimeout time.Duration    `yaml:"read_timeout"`
	Interval    time.Duration    `yaml:"interval"`
	LogLevel    string           `yaml:"log_level"`
	Retry       RetryConfig      `yaml:"retry"`
	MQTT        telemetry.Config `yaml:"mqtt"`
}

// RetryConfig controls the echo handshake
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	BackoffMin    time.Duration `yaml:"backoff_min"`
	BackoffMax    time.Duration `yaml:"backoff_max"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

func defaultConfig() Config {
	return Config{
		Baud:        optv.DefaultBaudRate,
		ReadTimeout: optv.DefaultReadTimeout,
		Interval:    time.Second,
		LogLevel:    "warn",
		Retry:       RetryConfig{BackoffFactor: 2},
		MQTT:        telemetry.DefaultConfig(),
	}
}

// LoadConfig reads a YAML config file. Keys missing from the file keep
// their defaults; unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	return decodeConfig(f, path)
}

func decodeConfig(r io.Reader, name string) (*Config, error) {
	cfg := defaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return &cfg, nil
}

// Validate checks the settings for values the poller cannot work with
func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got %s", c.ReadTimeout)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must be non-negative, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BackoffMin < 0 || c.Retry.BackoffMax < 0 {
		return errors.New("retry backoff durations must be non-negative")
	}
	if c.Retry.BackoffMax != 0 && c.Retry.BackoffMax < c.Retry.BackoffMin {
		return fmt.Errorf("retry.backoff_max (%s) is less than retry.backoff_min (%s)", c.Retry.BackoffMax, c.Retry.BackoffMin)
	}
	if c.Retry.BackoffFactor < 0 {
		return fmt.Errorf("retry.backoff_factor must be non-negative, got %g", c.Retry.BackoffFactor)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// RetryPolicy converts the retry settings for the controller
func (c *Config) RetryPolicy() optv.RetryPolicy {
	policy := optv.RetryPolicy{MaxAttempts: c.Retry.MaxAttempts}
	if c.Retry.BackoffMin > 0 {
		policy.Backoff = &backoff.Backoff{
			Min:    c.Retry.BackoffMin,
			Max:    c.Retry.BackoffMax,
			Factor: c.Retry.BackoffFactor,
		}
	}
	return policy
}

// SerialConfig returns the serial line settings
func (c *Config) SerialConfig() optv.SerialConfig {
	return optv.SerialConfig{BaudRate: c.Baud, ReadTimeout: c.ReadTimeout}
}

// mergeConfig copies file values into dst for every setting whose flag was
// not given on the command line
func mergeConfig(dst, file *Config, flags *pflag.FlagSet) {
	fromFile := func(name string) bool { return !flags.Changed(name) }

	if fromFile("port") {
		dst.Port = file.Port
	}
	if fromFile("baud") {
		dst.Baud = file.Baud
	}
	if fromFile("url") {
		dst.URL = file.URL
	}
	if fromFile("username") {
		dst.Username = file.Username
	}
	if fromFile("no-ssl-verify") {
		dst.NoSSLVerify = file.NoSSLVerify
	}
	if fromFile("read-timeout") {
		dst.ReadTimeout = file.ReadTimeout
	}
	if fromFile("interval") {
		dst.Interval = file.Interval
	}
	if fromFile("log-level") {
		dst.LogLevel = file.LogLevel
	}
	if fromFile("max-attempts") {
		dst.Retry.MaxAttempts = file.Retry.MaxAttempts
	}
	if fromFile("backoff-min") {
		dst.Retry.BackoffMin = file.Retry.BackoffMin
	}
	if fromFile("backoff-max") {
		dst.Retry.BackoffMax = file.Retry.BackoffMax
	}
	dst.Retry.BackoffFactor = file.Retry.BackoffFactor

	broker, prefix := dst.MQTT.Broker, dst.MQTT.TopicPrefix
	dst.MQTT = file.MQTT
	if flags.Changed("broker") {
		dst.MQTT.Broker = broker
	}
	if flags.Changed("topic-prefix") {
		dst.MQTT.TopicPrefix = prefix
	}
}
