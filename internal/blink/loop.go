// Package blink runs the blink loop: spin on the tick counter until the
// scheduled threshold is reached, toggle the pin, advance the threshold.
package blink

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/sweeney/blinker/internal/gpio"
	"github.com/sweeney/blinker/internal/logic"
	"github.com/sweeney/blinker/internal/millis"
)

// Sink receives loop output. Calls are made synchronously from the loop
// goroutine; implementations must not block.
type Sink interface {
	Toggled(ev logic.Event)
	Heartbeat(hb logic.HeartbeatData)
}

// Loop ties a tick counter, an output pin and a scheduler together.
type Loop struct {
	Counter   millis.Counter
	Pin       gpio.Writer
	Scheduler *logic.Scheduler

	// Poll is the sleep between counter reads while waiting.
	// Zero spins without yielding.
	Poll time.Duration

	// Heartbeat is the heartbeat period in ticks. Zero disables heartbeats.
	Heartbeat uint64

	// Sink is optional.
	Sink Sink
}

// Run loops until ctx is cancelled. It returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	for {
		now, ok := l.wait(ctx)
		if !ok {
			return nil
		}
		l.step(now)
	}
}

// wait spins until the threshold is due. Returns false if ctx was cancelled first.
func (l *Loop) wait(ctx context.Context) (uint64, bool) {
	for {
		now := l.Counter.Read()
		if l.Scheduler.Due(now) {
			return now, true
		}
		if ctx.Err() != nil {
			return now, false
		}
		if l.Poll > 0 {
			time.Sleep(l.Poll)
		}
	}
}

// step handles one reached threshold.
func (l *Loop) step(now uint64) {
	ev := l.Scheduler.Process(now)
	if ev == nil {
		return
	}

	high, err := l.Pin.Toggle()
	if err != nil {
		glog.Warningf("toggle at tick %d: %v", ev.Threshold, err)
		l.Scheduler.Failed()
	} else {
		ev.Level = logic.LevelOf(high)
		l.Scheduler.Toggled(ev.Level)
		if glog.V(2) {
			glog.Infof("toggle #%d threshold=%d tick=%d level=%s", ev.Seq, ev.Threshold, ev.Tick, ev.Level)
		}
	}
	if ev.Late {
		glog.Warningf("toggle #%d late: threshold=%d tick=%d", ev.Seq, ev.Threshold, ev.Tick)
	}

	if l.Sink != nil {
		l.Sink.Toggled(*ev)
	}

	if hb := l.Scheduler.CheckHeartbeat(now, l.Heartbeat); hb != nil && l.Sink != nil {
		l.Sink.Heartbeat(*hb)
	}
}
