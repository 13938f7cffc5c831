package mqtt

import "github.com/golang/glog"

// pendingMsg is a serialized message held for replay after reconnection.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox keeps the most recent messages published while disconnected.
// When full, the oldest message is overwritten.
// Not safe for concurrent use; caller must synchronize.
type outbox struct {
	slots   []pendingMsg
	next    int // slot the next push writes
	n       int
	dropped uint64 // total messages overwritten since creation
	warned  bool   // overflow already logged for the current outage
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{slots: make([]pendingMsg, capacity)}
}

func (o *outbox) push(msg pendingMsg) {
	o.slots[o.next] = msg
	o.next = (o.next + 1) % len(o.slots)
	if o.n < len(o.slots) {
		o.n++
		return
	}
	o.dropped++
	if !o.warned {
		glog.Warningf("mqtt: outbox full (%d messages), dropping oldest", len(o.slots))
		o.warned = true
	}
}

// drain returns queued messages oldest first and empties the outbox.
func (o *outbox) drain() []pendingMsg {
	if o.n == 0 {
		return nil
	}
	out := make([]pendingMsg, 0, o.n)
	first := (o.next - o.n + len(o.slots)) % len(o.slots)
	for i := 0; i < o.n; i++ {
		out = append(out, o.slots[(first+i)%len(o.slots)])
	}
	o.next, o.n, o.warned = 0, 0, false
	return out
}

func (o *outbox) len() int {
	return o.n
}
