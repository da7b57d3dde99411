package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/pinwatch/internal/logic"
)

const (
	clientID       = "pinwatch"
	publishTimeout = 5 * time.Second
	bufferCapacity = 512
)

// RealPublisher publishes to an actual MQTT broker. The connection is
// established in the background and retried forever; messages published
// while disconnected are buffered and replayed on reconnect, so a flaky
// broker never blocks pin event dispatch.
type RealPublisher struct {
	client paho.Client
	log    *slog.Logger

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting. A retained OFFLINE will is registered so consumers learn
// about unclean exits.
func NewRealPublisher(broker string, log *slog.Logger) *RealPublisher {
	if log == nil {
		log = slog.Default()
	}
	p := &RealPublisher{
		log: log,
		buf: newRingBuffer(bufferCapacity),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, OfflinePayload(), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(paho.Client) {
	p.mu.Lock()
	msgs, dropped := p.buf.drainAll()
	p.mu.Unlock()

	p.log.Info("mqtt connected", "replaying", len(msgs))
	if dropped > 0 {
		p.log.Warn("mqtt buffer overflowed while disconnected", "dropped", dropped)
	}
	for _, msg := range msgs {
		if err := p.send(msg); err != nil {
			p.log.Warn("mqtt replay failed", "topic", msg.topic, "error", err)
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.log.Warn("mqtt connection lost", "error", err)
}

// Publish mirrors a pin event to the broker.
// QoS 0 (at-most-once), not retained.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a lifecycle event to the broker.
// QoS 1 (at-least-once) so shutdown events survive a flaky link.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// publish sends immediately when connected, otherwise buffers for replay.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.buf.push(msg)
		buffered := p.buf.len()
		p.mu.Unlock()
		p.log.Debug("mqtt disconnected, buffered message", "topic", msg.topic, "buffered", buffered)
		return nil
	}
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
