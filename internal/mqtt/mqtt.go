// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/denisbrodbeck/machineid"

	"github.com/sweeney/blinker/internal/logic"
)

// Topic is the MQTT topic for toggle events.
const Topic = "gpio/blinker/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "gpio/blinker/system"

// appID scopes the machine id so the raw id never leaves the host.
const appID = "blinker"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a toggle event observed at the given time.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event, at time.Time) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports the health of the broker connection.
type ConnectionStatus interface {
	IsConnected() bool
	// Dropped returns the number of queued messages lost while disconnected.
	Dropped() uint64
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Blink BlinkPayload `json:"blink"`
}

// BlinkPayload contains the toggle event details.
type BlinkPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Tick      uint64 `json:"tick"`
	Threshold uint64 `json:"threshold"`
	Seq       uint64 `json:"seq"`
	Level     string `json:"level"`
	Late      bool   `json:"late,omitempty"`
}

// FormatPayload creates the JSON payload for a toggle event.
// A failed toggle is reported with level "UNKNOWN".
func FormatPayload(event logic.Event, at time.Time) ([]byte, error) {
	level := string(event.Level)
	if level == "" {
		level = "UNKNOWN"
	}
	payload := Payload{
		Blink: BlinkPayload{
			Timestamp: at.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Tick:      event.Tick,
			Threshold: event.Threshold,
			Seq:       event.Seq,
			Level:     level,
			Late:      event.Late,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is the retained last-will message the broker publishes on
// TopicSystem if the connection drops without a clean disconnect.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "LWT"})
	return data
}

// DeviceID returns a stable per-host identifier derived from the machine id,
// or "" if the machine id is unavailable.
func DeviceID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		return ""
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// ClientID returns the MQTT client id for deviceID.
func ClientID(deviceID string) string {
	if deviceID == "" {
		return appID
	}
	return appID + "-" + deviceID
}
