// Package logic contains the pure scheduling logic for the blink loop.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Ticks are always injected as parameters.
package logic

import "time"

// DefaultInterval is the number of ticks between toggles.
const DefaultInterval uint64 = 100

// Level represents the logical level of the output pin.
type Level string

const (
	LevelHigh Level = "HIGH"
	LevelLow  Level = "LOW"
)

// LevelOf converts a raw pin level (true = high) to a Level.
func LevelOf(high bool) Level {
	if high {
		return LevelHigh
	}
	return LevelLow
}

// EventType represents a blink loop event.
type EventType string

const (
	EventToggle EventType = "TOGGLE"
)

// Event represents a threshold being reached. Level is filled in once the
// pin reports its new level; it stays empty if the toggle failed.
type Event struct {
	Type EventType
	// Threshold is the tick value the event was scheduled for.
	Threshold uint64
	// Tick is the counter value observed when the threshold was found reached.
	Tick uint64
	// Seq is the 1-based index of this event since start.
	Seq uint64
	// Late is set when Tick was a full interval or more past Threshold.
	Late  bool
	Level Level
}

// Counts tracks outcomes since startup.
type Counts struct {
	Toggles  uint64
	Failures uint64
	Late     uint64
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Tick   uint64
	Uptime time.Duration
	Counts Counts
}
