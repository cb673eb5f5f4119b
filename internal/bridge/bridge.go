// Package bridge wires the transport, global context, routing, request
// correlation, handshake and journal into one running native side.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/message-bridge/internal/config"
	"github.com/morezero/message-bridge/pkg/compat"
	"github.com/morezero/message-bridge/pkg/events"
	"github.com/morezero/message-bridge/pkg/globalcontext"
	"github.com/morezero/message-bridge/pkg/messaging"
	"github.com/morezero/message-bridge/pkg/requesting"
	"github.com/morezero/message-bridge/pkg/transport"
	"github.com/morezero/message-bridge/pkg/value"
)

const logPrefix = "bridge:bridge"

// Bridge is the native side of one bridge channel.
type Bridge struct {
	cfg *config.Config

	transport  *transport.NatsTransport
	gc         *globalcontext.Context
	router     *messaging.Router
	requester  *requesting.Requester
	adaptor    *requesting.RemoteCallAdaptor
	functions  *requesting.FunctionRegistry
	receiver   *requesting.RequestReceiver
	negotiator *compat.Negotiator
	events     events.EventPublisher

	httpServer *http.Server
	startedAt  time.Time

	peerMu       sync.Mutex
	reportedPeer *compat.PeerInfo

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownOnce sync.Once
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithEventPublisher replaces the NATS lifecycle event publisher.
func WithEventPublisher(p events.EventPublisher) Option {
	return func(b *Bridge) { b.events = p }
}

// New wires a Bridge over nc. observer may be nil. Inbound messages are
// accepted as soon as New returns; Start announces this side to the host.
func New(cfg *config.Config, nc *comms.Conn, observer requesting.CompletionObserver, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		cfg:       cfg,
		transport: transport.NewNatsTransport(nc, cfg.Channel, transport.NativeSide),
		router:    messaging.NewRouter(),
		functions: requesting.NewFunctionRegistry(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.events == nil {
		if cfg.EventsEnabled {
			b.events = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{GlobalSubject: cfg.EventsSubject})
		} else {
			b.events = &events.NoOpPublisher{}
		}
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.gc = globalcontext.New(b.transport)

	var requesterOpts []requesting.RequesterOption
	if observer != nil {
		requesterOpts = append(requesterOpts, requesting.WithCompletionObserver(observer))
	}

	var err error
	b.requester, err = requesting.NewRequester(cfg.RequesterName, b.gc, b.router, requesterOpts...)
	if err != nil {
		b.abort()
		return nil, fmt.Errorf("%s - failed to create requester: %w", logPrefix, err)
	}
	b.adaptor = requesting.NewRemoteCallAdaptor(b.requester)

	if err := registerBuiltins(b); err != nil {
		b.abort()
		return nil, fmt.Errorf("%s - failed to register built-in functions: %w", logPrefix, err)
	}
	b.receiver, err = requesting.NewRequestReceiver(cfg.ReceiverName, b.functions, b.gc, b.router)
	if err != nil {
		b.abort()
		return nil, fmt.Errorf("%s - failed to create request receiver: %w", logPrefix, err)
	}

	b.negotiator, err = compat.NewNegotiator(cfg.ProtocolVersion, cfg.PeerVersionConstraint, b.gc.InstanceID(), b.gc,
		compat.WithPeerCallback(b.onPeer))
	if err != nil {
		b.abort()
		return nil, fmt.Errorf("%s - failed to create negotiator: %w", logPrefix, err)
	}
	if err := b.router.AddRoute(b.negotiator); err != nil {
		b.abort()
		return nil, fmt.Errorf("%s - failed to register handshake listener: %w", logPrefix, err)
	}

	if err := b.transport.Subscribe(b.onInbound); err != nil {
		b.abort()
		return nil, fmt.Errorf("%s - failed to subscribe: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Bridge %s wired on channel %s (out=%s in=%s)",
		logPrefix, b.gc.InstanceID(), cfg.Channel, b.transport.OutboundSubject(), b.transport.InboundSubject()))
	return b, nil
}

// abort releases what New created before failing.
func (b *Bridge) abort() {
	b.cancel()
	if b.receiver != nil {
		b.receiver.Close()
	}
	if b.requester != nil {
		b.requester.Close()
	}
	b.transport.Close()
	b.gc.Close()
}

// onInbound decodes one message from the host and routes it on the main
// event loop, preserving arrival order.
func (b *Bridge) onInbound(data []byte) {
	message, err := value.Unmarshal(data)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - dropping undecodable message (%d bytes): %v", logPrefix, len(data), err))
		return
	}
	posted := b.gc.RunOnMainLoop(func(context.Context) {
		handled, err := b.router.OnMessageReceived(message)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - message not processed (handled=%v): %v", logPrefix, handled, err))
		}
	})
	if !posted {
		slog.Debug(fmt.Sprintf("%s - main loop stopped, dropping inbound message", logPrefix))
	}
}

// Start announces this side to the host, watches the handshake and starts
// the HTTP health server when a port or address is configured.
func (b *Bridge) Start() {
	b.publish(events.KindStarted, nil)

	if !b.negotiator.Announce() {
		slog.Warn(fmt.Sprintf("%s - failed to announce protocol version", logPrefix))
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.watchHandshake()
	}()

	if addr := b.httpAddr(); addr != "" {
		b.httpServer = &http.Server{Addr: addr, Handler: b.Handler()}
		go func() {
			slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, addr))
			if err := b.httpServer.ListenAndServe(); err != http.ErrServerClosed {
				slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
			}
		}()
	}

	slog.Info(fmt.Sprintf("%s - Bridge is ready", logPrefix))
}

func (b *Bridge) httpAddr() string {
	if b.cfg.HTTPAddr != "" {
		return b.cfg.HTTPAddr
	}
	if b.cfg.HTTPPort > 0 {
		return fmt.Sprintf(":%d", b.cfg.HTTPPort)
	}
	return ""
}

// watchHandshake reports a host that stays silent past the handshake
// timeout. The outcome of each hello is handled by onPeer.
func (b *Bridge) watchHandshake() {
	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.HandshakeTimeout)
	defer cancel()

	_, err := b.negotiator.WaitForPeer(ctx)
	if err == nil || errors.Is(err, compat.ErrIncompatiblePeer) || b.ctx.Err() != nil {
		return
	}
	slog.Warn(fmt.Sprintf("%s - no hello from host within %s", logPrefix, b.cfg.HandshakeTimeout))
}

// onPeer acts on every hello, whenever it arrives. An incompatible host gets
// no further messages. Repeated hellos with the same outcome are reported once.
func (b *Bridge) onPeer(peer compat.PeerInfo) {
	b.peerMu.Lock()
	if b.reportedPeer != nil && *b.reportedPeer == peer {
		b.peerMu.Unlock()
		return
	}
	b.reportedPeer = &peer
	b.peerMu.Unlock()

	if !peer.Compatible {
		slog.Error(fmt.Sprintf("%s - host %s speaks incompatible protocol %s; disabling host communication",
			logPrefix, value.SanitizeForLog(peer.InstanceID, 64), peer.ProtocolVersion))
		b.gc.DisableJsCommunication()
		b.publish(events.KindIncompatible, &peer)
		return
	}
	slog.Info(fmt.Sprintf("%s - Handshake complete with %s (protocol %s)", logPrefix, value.SanitizeForLog(peer.InstanceID, 64), peer.ProtocolVersion))
	b.publish(events.KindHandshake, &peer)
}

// Call invokes functionName on the host and waits for its result, bounded
// by the configured request timeout.
func (b *Bridge) Call(ctx context.Context, functionName string, args ...value.Value) (value.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()
	return b.adaptor.SyncCall(ctx, functionName, args...)
}

// CallAsync invokes functionName on the host; callback receives the outcome.
func (b *Bridge) CallAsync(callback requesting.Callback, functionName string, args ...value.Value) *requesting.AsyncRequest {
	return b.adaptor.AsyncCall(callback, functionName, args...)
}

// Register exposes fn to the host under name.
func (b *Bridge) Register(name string, fn requesting.RemoteFunction) error {
	return b.functions.Register(name, fn)
}

// InstanceID identifies this bridge.
func (b *Bridge) InstanceID() string { return b.gc.InstanceID() }

// Peer returns what the handshake learned about the host.
func (b *Bridge) Peer() (compat.PeerInfo, bool) { return b.negotiator.Peer() }

// Shutdown stops the bridge: host communication is disabled first, then
// pending outgoing requests are canceled and running handlers are stopped.
func (b *Bridge) Shutdown(ctx context.Context) error {
	var err error
	b.shutdownOnce.Do(func() {
		slog.Info(fmt.Sprintf("%s - Shutting down bridge %s", logPrefix, b.gc.InstanceID()))
		if b.httpServer != nil {
			if shutdownErr := b.httpServer.Shutdown(ctx); shutdownErr != nil {
				err = fmt.Errorf("%s - HTTP shutdown: %w", logPrefix, shutdownErr)
			}
		}
		b.publish(events.KindStopped, nil)
		b.cancel()
		b.gc.DisableJsCommunication()
		b.requester.Close()
		b.receiver.Close()
		if closeErr := b.transport.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		b.gc.Close()
		b.wg.Wait()
		slog.Info(fmt.Sprintf("%s - Bridge stopped", logPrefix))
	})
	return err
}

// publish emits a lifecycle event; failures are logged only.
func (b *Bridge) publish(kind events.Kind, peer *compat.PeerInfo) {
	event := &events.BridgeEvent{
		Kind:            kind,
		InstanceID:      b.gc.InstanceID(),
		Channel:         b.cfg.Channel,
		ProtocolVersion: b.negotiator.LocalVersion(),
		PendingRequests: b.requester.PendingCount(),
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if peer != nil {
		event.PeerInstanceID = peer.InstanceID
		event.PeerProtocolVersion = peer.ProtocolVersion
	}
	if err := b.events.Publish(b.ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish %s event: %v", logPrefix, kind, err))
	}
}
