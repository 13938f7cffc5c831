package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/sweeney/blinker/internal/logic"
)

// OutboxCapacity is the number of messages kept while the broker is unreachable.
const OutboxCapacity = 256

// RealPublisher publishes to an actual MQTT broker.
// Messages published while offline are queued and replayed, oldest first,
// once the connection is up. Until the replay finishes, new messages join
// the queue so order is kept.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	box       *outbox
	online    bool   // connected and the outbox has been replayed
	gen       uint64 // bumped on every connect and connection loss
	connected bool   // connected at least once
}

// NewRealPublisher creates a publisher for the given broker. It does not wait
// for the connection; the client keeps retrying in the background.
func NewRealPublisher(broker, clientID string) *RealPublisher {
	p := newRealPublisher()

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func newRealPublisher() *RealPublisher {
	return &RealPublisher{box: newOutbox(OutboxCapacity)}
}

func (p *RealPublisher) onConnect(paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	p.online = false
	p.gen++
	gen := p.gen
	queued := p.box.len()
	p.mu.Unlock()

	glog.Infof("mqtt: connected (replaying %d queued messages)", queued)

	// Handlers must not block on tokens.
	go p.replay(gen, reconnect)
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.online = false
	p.gen++
	p.mu.Unlock()

	glog.Warningf("mqtt: connection lost: %v", err)
}

// replay sends RECONNECTED (after a reconnect) and then drains the outbox
// until it is empty, at which point the publisher goes online. A connection
// loss during the replay leaves the publisher offline.
func (p *RealPublisher) replay(gen uint64, reconnect bool) {
	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err := p.send(pendingMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			glog.Warningf("mqtt: publish RECONNECTED: %v", err)
		}
	}

	for {
		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			return
		}
		pending := p.box.drain()
		if len(pending) == 0 {
			p.online = true
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		for _, m := range pending {
			if err := p.send(m); err != nil {
				glog.Warningf("mqtt: replay to %s: %v", m.topic, err)
			}
		}
	}
}

// Publish sends a toggle event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event, at time.Time) error {
	payload, err := FormatPayload(event, at)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(pendingMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(pendingMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(m pendingMsg) error {
	p.mu.Lock()
	if !p.online {
		p.box.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(m)
}

func (p *RealPublisher) send(m pendingMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Dropped returns the number of queued messages lost to outbox overflow.
func (p *RealPublisher) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.box.dropped
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
