package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	comms "github.com/nats-io/nats.go"
)

const natsTransportLogPrefix = "transport:nats_transport"

// ErrAlreadySubscribed is returned by Subscribe when a handler is already set.
var ErrAlreadySubscribed = errors.New("transport already has an inbound handler")

// NatsTransport sends one side's messages on its outbound subject and
// delivers the other side's messages from its inbound subject. NATS keeps
// per-publisher ordering, so messages arrive in the order they were sent.
type NatsTransport struct {
	nc       *comms.Conn
	side     Side
	outbound string
	inbound  string

	mu  sync.Mutex
	sub *comms.Subscription
}

// NewNatsTransport creates a transport for side of channel over nc.
func NewNatsTransport(nc *comms.Conn, channel string, side Side) *NatsTransport {
	outbound, inbound := Subjects(channel, side)
	return &NatsTransport{nc: nc, side: side, outbound: outbound, inbound: inbound}
}

// OutboundSubject returns the subject Send publishes to.
func (t *NatsTransport) OutboundSubject() string { return t.outbound }

// InboundSubject returns the subject Subscribe listens on.
func (t *NatsTransport) InboundSubject() string { return t.inbound }

// Send publishes data to the outbound subject.
func (t *NatsTransport) Send(data []byte) error {
	if err := t.nc.Publish(t.outbound, data); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", natsTransportLogPrefix, t.outbound, err)
	}
	return nil
}

// Subscribe delivers every inbound message to handler. Handler invocations
// are serialized in arrival order.
func (t *NatsTransport) Subscribe(handler func(data []byte)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sub != nil {
		return fmt.Errorf("%s - %w", natsTransportLogPrefix, ErrAlreadySubscribed)
	}
	sub, err := t.nc.Subscribe(t.inbound, func(msg *comms.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", natsTransportLogPrefix, t.inbound, err)
	}
	t.sub = sub
	slog.Info(fmt.Sprintf("%s - %s side subscribed to %s", natsTransportLogPrefix, t.side, t.inbound))
	return nil
}

// Flush waits until the server has processed everything sent so far.
func (t *NatsTransport) Flush() error {
	return t.nc.Flush()
}

// Close stops inbound delivery. The NATS connection stays open.
func (t *NatsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sub == nil {
		return nil
	}
	err := t.sub.Unsubscribe()
	t.sub = nil
	if err != nil {
		return fmt.Errorf("%s - failed to unsubscribe from %s: %w", natsTransportLogPrefix, t.inbound, err)
	}
	return nil
}
