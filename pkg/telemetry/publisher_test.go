// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

// fakeToken is a completed token
type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	connectErrs  []error
	connects     int
	publishErr   error
	published    []message
	connected    bool
	disconnected bool
}

func (c *fakeClient) Connect() paho.Token {
	c.connects++
	if len(c.connectErrs) > 0 {
		err := c.connectErrs[0]
		c.connectErrs = c.connectErrs[1:]
		return newToken(err)
	}
	c.connected = true
	return newToken(nil)
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	}
	c.published = append(c.published, message{topic, qos, retained, data})
	return newToken(c.publishErr)
}

func (c *fakeClient) Disconnect(uint) {
	c.connected = false
	c.disconnected = true
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Broker = "tcp://localhost:1883"
	return cfg
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "optv/1234/statistics", Topic("optv", 1234, "statistics"))
	assert.Equal(t, "site/a/4294967295/info", Topic("site/a", 4294967295, "info"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing broker", func(c *Config) { c.Broker = "" }, "broker"},
		{"bad qos", func(c *Config) { c.QoS = 3 }, "qos"},
		{"missing prefix", func(c *Config) { c.TopicPrefix = "" }, "prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPublisher_PublishInfo(t *testing.T) {
	fc := &fakeClient{connected: true}
	p := newPublisher(fc, testConfig(), 99, zerolog.Nop())

	require.NoError(t, p.PublishInfo(context.Background(), optv.DeviceInfo{SerialNumber: 99, Reserved: 5}))

	require.Len(t, fc.published, 1)
	msg := fc.published[0]
	assert.Equal(t, "optv/99/info", msg.topic)
	assert.True(t, msg.retained)
	assert.Equal(t, byte(1), msg.qos)
	assert.JSONEq(t, `{"serial_number":99}`, string(msg.payload))
}

func TestPublisher_PublishSample(t *testing.T) {
	fc := &fakeClient{connected: true}
	cfg := testConfig()
	cfg.QoS = 0
	p := newPublisher(fc, cfg, 7, zerolog.Nop())

	at := time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC)
	sample := &optv.StatisticsSample{
		InputVoltages:  []uint32{12000},
		InputCurrents:  []uint32{250},
		OutputVoltage:  5000,
		LoadCurrent:    500,
		BatteryCurrent: 3,
	}
	require.NoError(t, p.PublishSample(context.Background(), at, sample))

	require.Len(t, fc.published, 1)
	msg := fc.published[0]
	assert.Equal(t, "optv/7/statistics", msg.topic)
	assert.False(t, msg.retained)

	var rec optv.Record
	require.NoError(t, json.Unmarshal(msg.payload, &rec))
	assert.True(t, rec.Time.Equal(at))
	assert.Equal(t, uint32(7), rec.SerialNumber)
	assert.True(t, rec.Sample.Equal(sample))
}

func TestPublisher_PublishError(t *testing.T) {
	fc := &fakeClient{connected: true, publishErr: errors.New("not connected")}
	p := newPublisher(fc, testConfig(), 1, zerolog.Nop())

	err := p.PublishInfo(context.Background(), optv.DeviceInfo{SerialNumber: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, fc.publishErr)
	assert.Contains(t, err.Error(), "optv/1/info")
}

func TestPublisher_ConnectRetries(t *testing.T) {
	fc := &fakeClient{connectErrs: []error{errors.New("refused"), errors.New("refused")}}
	p := newPublisher(fc, testConfig(), 1, zerolog.Nop())
	p.retry = &backoff.Backoff{Min: time.Millisecond, Max: time.Millisecond}

	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, 3, fc.connects)
	assert.True(t, fc.IsConnected())
}

func TestPublisher_ConnectCancelled(t *testing.T) {
	errs := make([]error, 100)
	for i := range errs {
		errs[i] = errors.New("refused")
	}
	fc := &fakeClient{connectErrs: errs}
	p := newPublisher(fc, testConfig(), 1, zerolog.Nop())
	p.retry = &backoff.Backoff{Min: time.Hour, Max: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Connect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, fc.connects)
}

func TestPublisher_Close(t *testing.T) {
	fc := &fakeClient{connected: true}
	p := newPublisher(fc, testConfig(), 12, zerolog.Nop())

	require.NoError(t, p.Close())
	require.Len(t, fc.published, 1)
	assert.Equal(t, "optv/12/status", fc.published[0].topic)
	assert.Equal(t, StatusOffline, string(fc.published[0].payload))
	assert.True(t, fc.published[0].retained)
	assert.True(t, fc.disconnected)

	// Already disconnected
	require.NoError(t, p.Close())
	assert.Len(t, fc.published, 1)
}
