// Package status provides a thread-safe status tracker for the blinker daemon.
// The blink loop writes it; HTTP handlers and MQTT heartbeats read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/blinker/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	IntervalTicks  uint64
	HeartbeatTicks uint64
	PollMs         int64
	Pin            int
	Chip           string
	Backend        string
	Broker         string
	HTTPAddr       string
	WSBroker       string // Websocket broker URL for browser MQTT (empty = disabled)
	PublishToggles bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Level         logic.Level
	Tick          uint64
	Next          uint64
	Counts        logic.Counts
	Running       bool
	DeviceID      string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTDropped   uint64
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, deviceID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Level:     logic.LevelLow,
			Next:      cfg.IntervalTicks,
			DeviceID:  deviceID,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update records the loop state after a toggle.
func (t *Tracker) Update(level logic.Level, tick, next uint64, counts logic.Counts) {
	t.mu.Lock()
	t.snap.Level = level
	t.snap.Tick = tick
	t.snap.Next = next
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetRunning records whether the blink loop is running.
func (t *Tracker) SetRunning(running bool) {
	t.mu.Lock()
	t.snap.Running = running
	t.mu.Unlock()
}

// SetMQTT sets the MQTT connection status and outbox drop count.
func (t *Tracker) SetMQTT(connected bool, dropped uint64) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.snap.MQTTDropped = dropped
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
