package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Level         string       `json:"level"`
	Running       bool         `json:"running"`
	Tick          uint64       `json:"tick"`
	NextThreshold uint64       `json:"next_threshold"`
	DeviceID      string       `json:"device_id,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Dropped   uint64 `json:"dropped,omitempty"`
}

// CountsJSON is the JSON representation of loop counters.
type CountsJSON struct {
	Toggles  uint64 `json:"toggles"`
	Failures uint64 `json:"failures"`
	Late     uint64 `json:"late"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	IntervalTicks  uint64 `json:"interval_ticks"`
	HeartbeatTicks uint64 `json:"heartbeat_ticks"`
	PollMs         int64  `json:"poll_ms"`
	Pin            int    `json:"pin"`
	Chip           string `json:"chip,omitempty"`
	Backend        string `json:"backend"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
	WSBroker       string `json:"ws_broker,omitempty"`
	PublishToggles bool   `json:"publish_toggles"`
}

func buildInner(snap Snapshot) StatusInner {
	level := string(snap.Level)
	if level == "" {
		level = "UNKNOWN"
	}

	inner := StatusInner{
		Level:         level,
		Running:       snap.Running,
		Tick:          snap.Tick,
		NextThreshold: snap.Next,
		DeviceID:      snap.DeviceID,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Dropped:   snap.MQTTDropped,
		},
		Counts: CountsJSON{
			Toggles:  snap.Counts.Toggles,
			Failures: snap.Counts.Failures,
			Late:     snap.Counts.Late,
		},
		Config: ConfigJSON{
			IntervalTicks:  snap.Config.IntervalTicks,
			HeartbeatTicks: snap.Config.HeartbeatTicks,
			PollMs:         snap.Config.PollMs,
			Pin:            snap.Config.Pin,
			Chip:           snap.Config.Chip,
			Backend:        snap.Config.Backend,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
			WSBroker:       snap.Config.WSBroker,
			PublishToggles: snap.Config.PublishToggles,
		},
	}
	if n := snap.Network; n != nil {
		inner.Network = &NetworkJSON{
			Type:       n.Type,
			IP:         n.IP,
			Status:     n.Status,
			Gateway:    n.Gateway,
			WifiStatus: n.WifiStatus,
			SSID:       n.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
