// Command blinker toggles a GPIO output every interval milliseconds by polling
// a free-running millisecond counter, and reports its state over MQTT and HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/sweeney/blinker/internal/blink"
	"github.com/sweeney/blinker/internal/gpio"
	"github.com/sweeney/blinker/internal/logic"
	"github.com/sweeney/blinker/internal/millis"
	"github.com/sweeney/blinker/internal/mqtt"
	"github.com/sweeney/blinker/internal/status"
	"github.com/sweeney/blinker/internal/web"
)

// eventBuffer bounds the toggle events waiting to be published.
const eventBuffer = 64

type options struct {
	interval       uint64
	pin            int
	chip           string
	backend        string
	poll           time.Duration
	broker         string
	heartbeat      uint64
	publishToggles bool
	httpAddr       string
	wsBroker       string
}

func main() {
	var o options
	flag.Uint64Var(&o.interval, "interval", logic.DefaultInterval, "Ticks (ms) between toggles")
	flag.IntVar(&o.pin, "pin", gpio.DefaultPin, "BCM pin number of the output")
	flag.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO chip name (gpiocdev backend)")
	flag.StringVar(&o.backend, "backend", gpio.BackendGPIOCDev, `GPIO backend ("gpiocdev" or "rpio")`)
	flag.DurationVar(&o.poll, "poll", 0, "Sleep between counter reads while waiting (0 busy-spins)")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.Uint64Var(&o.heartbeat, "heartbeat", 15*60*1000, "Heartbeat interval in ticks (0 to disable)")
	flag.BoolVar(&o.publishToggles, "publish-toggles", false, "Publish every toggle to MQTT")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.StringVar(&o.wsBroker, "ws-broker", "=broker", `MQTT websocket URL for the live status page ("=broker" derives from -broker, "off" disables)`)

	setLogDefaults()
	flag.Parse()
	defer glog.Flush()

	o.wsBroker = resolveWSBroker(o.wsBroker, o.broker)

	if err := run(o); err != nil {
		glog.Fatalf("fatal: %v", err)
	}
}

// setLogDefaults sends glog output to stderr unless -logtostderr=false is
// given. The daemon runs under systemd, which collects stderr.
func setLogDefaults() {
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Warningf("set logtostderr: %v", err)
	}
}

// resolveWSBroker converts the -ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil || u.Hostname() == "" {
		glog.Warningf("ws-broker: cannot derive from -broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}

func (o options) validate() error {
	if o.interval == 0 {
		return errors.New("interval must be positive")
	}
	if o.poll < 0 {
		return errors.New("poll must not be negative")
	}
	switch o.backend {
	case gpio.BackendGPIOCDev, gpio.BackendRPIO:
	default:
		return fmt.Errorf("unknown backend %q", o.backend)
	}
	if o.broker == "" {
		return errors.New("broker is required")
	}
	return nil
}

func (o options) statusConfig() status.Config {
	return status.Config{
		IntervalTicks:  o.interval,
		HeartbeatTicks: o.heartbeat,
		PollMs:         o.poll.Milliseconds(),
		Pin:            o.pin,
		Chip:           o.chip,
		Backend:        o.backend,
		Broker:         o.broker,
		HTTPAddr:       o.httpAddr,
		WSBroker:       o.wsBroker,
		PublishToggles: o.publishToggles,
	}
}

func run(o options) error {
	if err := o.validate(); err != nil {
		return err
	}

	// Configure the pin as output, driven low
	pin, err := gpio.Open(o.backend, o.chip, o.pin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := pin.Close(); err != nil {
			glog.Warningf("close gpio: %v", err)
		}
	}()

	// Start the millisecond counter
	counter := millis.NewRealCounter()

	deviceID := mqtt.DeviceID()
	publisher := mqtt.NewRealPublisher(o.broker, mqtt.ClientID(deviceID))
	defer publisher.Close()

	tracker := status.NewTracker(counter.Start(), deviceID, o.statusConfig())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		glog.Warningf("failed to publish startup event: %v", err)
	}

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				glog.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		glog.Infof("http status server listening on %s", o.httpAddr)
	}

	loop := &blink.Loop{
		Counter:   counter,
		Pin:       pin,
		Scheduler: logic.NewScheduler(o.interval),
		Poll:      o.poll,
		Heartbeat: o.heartbeat,
	}

	glog.Infof("started: pin=%d backend=%s interval=%d poll=%v broker=%s ws=%q heartbeat=%d",
		o.pin, o.backend, o.interval, o.poll, o.broker, o.wsBroker, o.heartbeat)

	refresh := time.NewTicker(time.Second)
	defer refresh.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop, publisher, publisher, tracker, o.publishToggles, time.Now, refresh.C, sigCh)
}

// sink forwards loop output to runLoop without blocking the loop goroutine.
type sink struct {
	sched      *logic.Scheduler
	tracker    *status.Tracker
	events     chan logic.Event // nil when toggles are not published
	heartbeats chan logic.HeartbeatData
	dropped    uint64
}

func (s *sink) Toggled(ev logic.Event) {
	level := ev.Level
	if level == "" {
		level = s.sched.CurrentLevel()
	}
	s.tracker.Update(level, ev.Tick, s.sched.Next(), s.sched.Counts())

	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.dropped++
		if s.dropped%100 == 1 {
			glog.Warningf("event queue full, %d toggle events dropped", s.dropped)
		}
	}
}

func (s *sink) Heartbeat(hb logic.HeartbeatData) {
	select {
	case s.heartbeats <- hb:
	default:
		glog.Warningf("heartbeat at tick %d dropped", hb.Tick)
	}
}

// runLoop runs the blink loop in its own goroutine and publishes what it
// reports until a signal arrives.
func runLoop(loop *blink.Loop, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, publishToggles bool, now func() time.Time, refresh <-chan time.Time, sig <-chan os.Signal) error {
	s := &sink{
		sched:      loop.Scheduler,
		tracker:    tracker,
		heartbeats: make(chan logic.HeartbeatData, 4),
	}
	if publishToggles {
		s.events = make(chan logic.Event, eventBuffer)
	}
	loop.Sink = s

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	tracker.SetRunning(true)
	go func() {
		done <- loop.Run(ctx)
	}()

	publishEvent := func(ev logic.Event) {
		if err := publisher.Publish(ev, now()); err != nil {
			glog.Warningf("publish error: %v", err)
		}
	}
	publishHeartbeat := func(hb logic.HeartbeatData) {
		glog.Infof("heartbeat: uptime=%v toggles=%d failures=%d late=%d",
			hb.Uptime, hb.Counts.Toggles, hb.Counts.Failures, hb.Counts.Late)
		tracker.SetMQTT(mqttStatus.IsConnected(), mqttStatus.Dropped())
		if net := readNetworkInfo(); net != nil {
			tracker.SetNetwork(net)
		}
		snap := tracker.Snapshot()
		event := mqtt.SystemEvent{
			Timestamp:  now(),
			Event:      "HEARTBEAT",
			RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
		}
		if err := publisher.PublishSystem(event); err != nil {
			glog.Warningf("heartbeat publish error: %v", err)
		}
	}

	for {
		select {
		case sg := <-sig:
			glog.Infof("received %v, shutting down", sg)
			cancel()
			err := <-done
			tracker.SetRunning(false)

			// The loop has stopped; publish whatever it queued.
			for flushed := false; !flushed; {
				select {
				case ev := <-s.events:
					publishEvent(ev)
				case hb := <-s.heartbeats:
					publishHeartbeat(hb)
				default:
					flushed = true
				}
			}

			signalName := "UNKNOWN"
			if sg == syscall.SIGINT {
				signalName = "SIGINT"
			} else if sg == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			tracker.SetMQTT(mqttStatus.IsConnected(), mqttStatus.Dropped())
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				glog.Warningf("failed to publish shutdown event: %v", err)
			} else {
				glog.Info("published shutdown event")
			}
			return err

		case ev := <-s.events:
			publishEvent(ev)

		case hb := <-s.heartbeats:
			publishHeartbeat(hb)

		case <-refresh:
			tracker.SetMQTT(mqttStatus.IsConnected(), mqttStatus.Dropped())
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
