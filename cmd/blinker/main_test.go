package main

import (
	"encoding/json"
	"errors"
	"flag"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/blinker/internal/blink"
	"github.com/sweeney/blinker/internal/gpio"
	"github.com/sweeney/blinker/internal/logic"
	"github.com/sweeney/blinker/internal/millis"
	"github.com/sweeney/blinker/internal/mqtt"
	"github.com/sweeney/blinker/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	assert.Equal(t, "NETWORK_TYPE", envNetworkType)
	assert.Equal(t, "NETWORK_IP", envNetworkIP)
	assert.Equal(t, "NETWORK_STATUS", envNetworkStatus)
	assert.Equal(t, "NETWORK_GATEWAY", envNetworkGateway)
	assert.Equal(t, "NETWORK_WIFI_STATUS", envNetworkWifiStatus)
	assert.Equal(t, "NETWORK_WIFI_SSID", envNetworkWifiSSID)
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}, *info)
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	assert.Nil(t, readNetworkInfo())
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, "connected", info.Status)
	assert.Empty(t, info.IP)
}

func validOptions() options {
	return options{
		interval:  100,
		pin:       gpio.DefaultPin,
		chip:      gpio.DefaultChip,
		backend:   gpio.BackendGPIOCDev,
		broker:    "tcp://localhost:1883",
		heartbeat: 1000,
		httpAddr:  ":8080",
	}
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, validOptions().validate())

	rpio := validOptions()
	rpio.backend = gpio.BackendRPIO
	require.NoError(t, rpio.validate())

	tests := []struct {
		name   string
		modify func(*options)
		want   string
	}{
		{"zero interval", func(o *options) { o.interval = 0 }, "interval must be positive"},
		{"negative poll", func(o *options) { o.poll = -time.Millisecond }, "poll must not be negative"},
		{"bad backend", func(o *options) { o.backend = "sysfs" }, `unknown backend "sysfs"`},
		{"no broker", func(o *options) { o.broker = "" }, "broker is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions()
			tt.modify(&o)
			require.EqualError(t, o.validate(), tt.want)
		})
	}
}

func TestStatusConfig(t *testing.T) {
	o := validOptions()
	o.poll = 2 * time.Millisecond
	o.publishToggles = true
	cfg := o.statusConfig()

	assert.Equal(t, uint64(100), cfg.IntervalTicks)
	assert.Equal(t, uint64(1000), cfg.HeartbeatTicks)
	assert.Equal(t, int64(2), cfg.PollMs)
	assert.Equal(t, gpio.DefaultPin, cfg.Pin)
	assert.True(t, cfg.PublishToggles)
	assert.Empty(t, cfg.WSBroker)

	o.wsBroker = "ws://10.0.0.5:9001"
	assert.Equal(t, "ws://10.0.0.5:9001", o.statusConfig().WSBroker)
}

func TestResolveWSBroker(t *testing.T) {
	tests := []struct {
		name   string
		ws     string
		broker string
		want   string
	}{
		{"derived", "=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"derived no port", "=broker", "tcp://mqtt.local", "ws://mqtt.local:9001"},
		{"off", "off", "tcp://192.168.1.200:1883", ""},
		{"explicit", "wss://broker.example:443/mqtt", "tcp://192.168.1.200:1883", "wss://broker.example:443/mqtt"},
		{"unparseable broker", "=broker", "192.168.1.200:1883", ""},
		{"broker without host", "=broker", "mqtt", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveWSBroker(tt.ws, tt.broker))
		})
	}
}

func TestSetLogDefaults(t *testing.T) {
	f := flag.Lookup("logtostderr")
	require.NotNil(t, f, "glog registers logtostderr")
	old := f.Value.String()
	t.Cleanup(func() { flag.Set("logtostderr", old) })

	require.NoError(t, flag.Set("logtostderr", "false"))
	setLogDefaults()
	assert.Equal(t, "true", f.Value.String())
}

// --- runLoop tests ---

type harness struct {
	loop      *blink.Loop
	pin       *gpio.FakeWriter
	counter   *millis.FakeCounter
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	sig       chan os.Signal
	refresh   chan time.Time
}

// newHarness builds a loop over a 0..last tick ramp that raises sig once the
// ramp is exhausted.
func newHarness(last, heartbeat uint64, sig os.Signal) *harness {
	h := &harness{
		pin:       gpio.NewFakeWriter(),
		counter:   millis.NewRampCounter(last),
		publisher: mqtt.NewFakePublisher(),
		sig:       make(chan os.Signal, 1),
		refresh:   make(chan time.Time),
	}
	h.counter.OnExhausted = func() { h.sig <- sig }
	h.tracker = status.NewTracker(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), "dev", status.Config{IntervalTicks: 100})
	h.loop = &blink.Loop{
		Counter:   h.counter,
		Pin:       h.pin,
		Scheduler: logic.NewScheduler(100),
		Heartbeat: heartbeat,
	}
	return h
}

func fixedNow() time.Time {
	return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (h *harness) run(t *testing.T, publishToggles bool) error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- runLoop(h.loop, h.publisher, h.publisher, h.tracker, publishToggles, fixedNow, h.refresh, h.sig)
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not return")
		return nil
	}
}

func TestRunLoopPublishesToggles(t *testing.T) {
	h := newHarness(1000, 0, syscall.SIGTERM)
	require.NoError(t, h.run(t, true))

	assert.Equal(t, 10, h.pin.Toggles())
	require.Len(t, h.publisher.Events, 10)
	for i, ev := range h.publisher.Events {
		assert.Equal(t, uint64(i+1)*100, ev.Threshold, "event %d", i)
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
	assert.Equal(t, logic.LevelHigh, h.publisher.Events[0].Level)
	assert.Equal(t, logic.LevelLow, h.publisher.Events[9].Level)
}

func TestRunLoopTogglesNotPublishedByDefault(t *testing.T) {
	h := newHarness(500, 0, syscall.SIGTERM)
	require.NoError(t, h.run(t, false))

	assert.Equal(t, 5, h.pin.Toggles())
	assert.Empty(t, h.publisher.Events)
}

func TestRunLoopShutdownEvent(t *testing.T) {
	for _, tt := range []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGHUP, "UNKNOWN"},
	} {
		t.Run(tt.want, func(t *testing.T) {
			h := newHarness(250, 0, tt.sig)
			require.NoError(t, h.run(t, false))

			require.Len(t, h.publisher.SystemEvents, 1)
			ev := h.publisher.SystemEvents[0]
			assert.Equal(t, "SHUTDOWN", ev.Event)
			assert.Equal(t, tt.want, ev.Reason)
			assert.True(t, ev.Retained)

			var parsed status.StatusJSON
			require.NoError(t, json.Unmarshal(h.publisher.SystemPayloads[0], &parsed))
			assert.Equal(t, "SHUTDOWN", parsed.Status.Event)
			assert.Equal(t, tt.want, parsed.Status.Reason)
			assert.False(t, parsed.Status.Running)
			assert.Equal(t, uint64(2), parsed.Status.Counts.Toggles)
			// Scenario: at tick 250 the pin is still low after the toggle at 200.
			assert.Equal(t, "LOW", parsed.Status.Level)
			assert.Equal(t, uint64(300), parsed.Status.NextThreshold)
		})
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	h := newHarness(1000, 500, syscall.SIGTERM)
	h.publisher.Connected = true
	require.NoError(t, h.run(t, false))

	var heartbeats []mqtt.SystemEvent
	for _, ev := range h.publisher.SystemEvents {
		if ev.Event == "HEARTBEAT" {
			heartbeats = append(heartbeats, ev)
		}
	}
	require.Len(t, heartbeats, 2)

	var parsed status.StatusJSON
	require.NoError(t, json.Unmarshal(heartbeats[0].RawPayload, &parsed))
	assert.Equal(t, "HEARTBEAT", parsed.Status.Event)
	assert.True(t, parsed.Status.MQTT.Connected)

	last := h.publisher.SystemEvents[len(h.publisher.SystemEvents)-1]
	assert.Equal(t, "SHUTDOWN", last.Event, "shutdown is published last")
}

func TestRunLoopPublishErrorsDoNotStopLoop(t *testing.T) {
	h := newHarness(1000, 0, syscall.SIGTERM)
	h.publisher.PublishError = errors.New("broker down")
	h.publisher.PublishSystemError = errors.New("broker down")
	require.NoError(t, h.run(t, true))

	assert.Equal(t, 10, h.pin.Toggles())
	assert.Empty(t, h.publisher.Events)
}

func TestRunLoopToggleFailuresCounted(t *testing.T) {
	h := newHarness(300, 0, syscall.SIGTERM)
	h.pin.ToggleError = errors.New("line busy")
	require.NoError(t, h.run(t, true))

	require.Len(t, h.publisher.Events, 3)
	assert.Empty(t, h.publisher.Events[0].Level)

	snap := h.tracker.Snapshot()
	assert.Equal(t, uint64(3), snap.Counts.Failures)
	assert.Equal(t, logic.LevelLow, snap.Level)
}

func TestRunLoopRefreshUpdatesMQTTStatus(t *testing.T) {
	h := newHarness(0, 0, syscall.SIGTERM)
	// Hold the signal back until the refresh has been handled.
	h.counter.OnExhausted = nil
	h.publisher.Connected = true
	h.publisher.Drops = 7

	done := make(chan error, 1)
	go func() {
		done <- runLoop(h.loop, h.publisher, h.publisher, h.tracker, false, fixedNow, h.refresh, h.sig)
	}()

	h.refresh <- time.Now()
	require.Eventually(t, func() bool {
		snap := h.tracker.Snapshot()
		return snap.MQTTConnected && snap.MQTTDropped == 7
	}, time.Second, time.Millisecond)

	h.sig <- syscall.SIGTERM
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not return")
	}
}
