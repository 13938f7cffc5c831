package logic

import "time"

// Scheduler owns the next-event threshold. The threshold starts at one
// interval past tick 0 and only ever grows by exactly one interval.
type Scheduler struct {
	interval      uint64
	next          uint64
	seq           uint64
	level         Level
	counts        Counts
	lastHeartbeat uint64
}

// NewScheduler creates a scheduler whose first threshold is interval.
// The interval must be non-zero.
func NewScheduler(interval uint64) *Scheduler {
	return &Scheduler{
		interval: interval,
		next:     interval,
		level:    LevelLow,
	}
}

// Interval returns the tick spacing between thresholds.
func (s *Scheduler) Interval() uint64 {
	return s.interval
}

// Next returns the tick at which the next toggle is due.
func (s *Scheduler) Next() uint64 {
	return s.next
}

// Due reports whether now has reached the threshold.
func (s *Scheduler) Due(now uint64) bool {
	return now >= s.next
}

// Process returns an event if now has reached the threshold and advances
// the threshold by one interval. Returns nil if the threshold is not reached.
//
// At most one event is returned per call. An observer that fell behind by
// several intervals gets one event per call until it catches up.
func (s *Scheduler) Process(now uint64) *Event {
	if !s.Due(now) {
		return nil
	}

	s.seq++
	ev := &Event{
		Type:      EventToggle,
		Threshold: s.next,
		Tick:      now,
		Seq:       s.seq,
		Late:      now-s.next >= s.interval,
	}
	if ev.Late {
		s.counts.Late++
	}
	s.next += s.interval
	return ev
}

// Toggled records a successful toggle to level.
func (s *Scheduler) Toggled(level Level) {
	s.level = level
	s.counts.Toggles++
}

// Failed records a toggle that did not reach the pin.
func (s *Scheduler) Failed() {
	s.counts.Failures++
}

// CurrentLevel returns the last level reported by Toggled.
func (s *Scheduler) CurrentLevel() Level {
	return s.level
}

// Counts returns a copy of the outcome counters.
func (s *Scheduler) Counts() Counts {
	return s.counts
}

// CheckHeartbeat returns heartbeat data if every ticks have elapsed since the
// last heartbeat (or tick 0). Returns nil if every is 0 (disabled) or the
// interval has not elapsed.
func (s *Scheduler) CheckHeartbeat(now, every uint64) *HeartbeatData {
	if every == 0 {
		return nil
	}
	if now < s.lastHeartbeat || now-s.lastHeartbeat < every {
		return nil
	}

	s.lastHeartbeat = now
	return &HeartbeatData{
		Tick:   now,
		Uptime: time.Duration(now) * time.Millisecond,
		Counts: s.counts,
	}
}
