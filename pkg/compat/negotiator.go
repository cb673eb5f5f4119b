// Package compat exchanges protocol versions between the two bridge sides
// and checks them against a SemVer constraint.
package compat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	masterminds "github.com/Masterminds/semver/v3"

	"github.com/morezero/message-bridge/pkg/globalcontext"
	"github.com/morezero/message-bridge/pkg/messaging"
	"github.com/morezero/message-bridge/pkg/value"
)

const logPrefix = "compat:negotiator"

// MessageType is the type tag of handshake messages.
const MessageType = "bridge::hello"

const (
	protocolVersionField = "protocol_version"
	instanceIDField      = "instance_id"
	replyField           = "reply"
)

// ErrIncompatiblePeer is returned when the peer's version fails the constraint.
var ErrIncompatiblePeer = errors.New("peer protocol version is incompatible")

// Hello announces one side's protocol version.
type Hello struct {
	ProtocolVersion string
	InstanceID      string
	// Reply marks a hello sent in answer to the peer's; it is not answered.
	Reply bool
}

func (h Hello) ToValue() value.Value {
	return value.NewDict(map[string]value.Value{
		protocolVersionField: value.NewString(h.ProtocolVersion),
		instanceIDField:      value.NewString(h.InstanceID),
		replyField:           value.NewBool(h.Reply),
	})
}

// ParseHello extracts a Hello from v.
func ParseHello(v value.Value) (Hello, error) {
	var h Hello
	versionValue, err := v.RequiredField(protocolVersionField)
	if err != nil {
		return Hello{}, fmt.Errorf("hello: %w", err)
	}
	if h.ProtocolVersion, err = versionValue.AsString(); err != nil {
		return Hello{}, fmt.Errorf("hello: field %q: %w", protocolVersionField, err)
	}
	if idValue, ok := v.Field(instanceIDField); ok {
		if h.InstanceID, err = idValue.AsString(); err != nil {
			return Hello{}, fmt.Errorf("hello: field %q: %w", instanceIDField, err)
		}
	}
	if replyValue, ok := v.Field(replyField); ok {
		if h.Reply, err = replyValue.AsBool(); err != nil {
			return Hello{}, fmt.Errorf("hello: field %q: %w", replyField, err)
		}
	}
	return h, nil
}

// PeerInfo is what the negotiator learned about the other side.
type PeerInfo struct {
	ProtocolVersion string
	InstanceID      string
	Compatible      bool
}

// CheckCompatible reports whether version satisfies constraint.
func CheckCompatible(version, constraint string) (bool, error) {
	v, err := masterminds.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("%s - invalid version %q: %w", logPrefix, version, err)
	}
	c, err := masterminds.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("%s - invalid constraint %q: %w", logPrefix, constraint, err)
	}
	return c.Check(v), nil
}

// Negotiator is a typed message listener running the hello exchange.
type Negotiator struct {
	local      *masterminds.Version
	constraint *masterminds.Constraints
	instanceID string
	gc         globalcontext.GlobalContext

	onPeer func(PeerInfo)

	mu    sync.Mutex
	peer  *PeerInfo
	ready chan struct{}
}

// NegotiatorOption configures a Negotiator.
type NegotiatorOption func(*Negotiator)

// WithPeerCallback calls fn with the result of every hello received,
// including hellos arriving after WaitForPeer gave up. fn runs on the
// goroutine delivering the hello and must not block.
func WithPeerCallback(fn func(PeerInfo)) NegotiatorOption {
	return func(n *Negotiator) { n.onPeer = fn }
}

// NewNegotiator validates localVersion and peerConstraint.
func NewNegotiator(localVersion, peerConstraint, instanceID string, gc globalcontext.GlobalContext, opts ...NegotiatorOption) (*Negotiator, error) {
	local, err := masterminds.NewVersion(localVersion)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid local version %q: %w", logPrefix, localVersion, err)
	}
	constraint, err := masterminds.NewConstraint(peerConstraint)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid peer constraint %q: %w", logPrefix, peerConstraint, err)
	}
	n := &Negotiator{
		local:      local,
		constraint: constraint,
		instanceID: instanceID,
		gc:         gc,
		ready:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// LocalVersion returns the version this side announces.
func (n *Negotiator) LocalVersion() string { return n.local.String() }

// Announce posts this side's hello.
func (n *Negotiator) Announce() bool {
	return n.post(false)
}

func (n *Negotiator) post(reply bool) bool {
	hello := Hello{ProtocolVersion: n.local.String(), InstanceID: n.instanceID, Reply: reply}
	return n.gc.PostMessageToJs(messaging.TypedMessage{Type: MessageType, Data: hello.ToValue()}.ToValue())
}

func (n *Negotiator) ListenedMessageType() string { return MessageType }

func (n *Negotiator) OnTypedMessageReceived(data value.Value) error {
	hello, err := ParseHello(data)
	if err != nil {
		return fmt.Errorf("%s - %w", logPrefix, err)
	}
	peerVersion, err := masterminds.NewVersion(hello.ProtocolVersion)
	if err != nil {
		return fmt.Errorf("%s - invalid peer version %q: %w", logPrefix, value.SanitizeForLog(hello.ProtocolVersion, 64), err)
	}
	info := PeerInfo{
		ProtocolVersion: peerVersion.String(),
		InstanceID:      hello.InstanceID,
		Compatible:      n.constraint.Check(peerVersion),
	}

	n.mu.Lock()
	first := n.peer == nil
	n.peer = &info
	if first {
		close(n.ready)
	}
	n.mu.Unlock()

	if !hello.Reply {
		n.post(true)
	}
	if n.onPeer != nil {
		n.onPeer(info)
	}
	if !info.Compatible {
		slog.Error(fmt.Sprintf("%s - peer %s speaks protocol %s, want %s", logPrefix, value.SanitizeForLog(info.InstanceID, 64), info.ProtocolVersion, n.constraint))
		return fmt.Errorf("%s - %w: %s does not satisfy %s", logPrefix, ErrIncompatiblePeer, info.ProtocolVersion, n.constraint)
	}
	slog.Info(fmt.Sprintf("%s - peer %s speaks protocol %s", logPrefix, value.SanitizeForLog(info.InstanceID, 64), info.ProtocolVersion))
	return nil
}

// Peer returns the latest peer information, if a hello was received.
func (n *Negotiator) Peer() (PeerInfo, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.peer == nil {
		return PeerInfo{}, false
	}
	return *n.peer, true
}

// WaitForPeer blocks until a hello was received or ctx is done. An
// incompatible peer is reported with ErrIncompatiblePeer.
func (n *Negotiator) WaitForPeer(ctx context.Context) (PeerInfo, error) {
	select {
	case <-n.ready:
	case <-ctx.Done():
	}
	info, ok := n.Peer()
	if !ok {
		return PeerInfo{}, fmt.Errorf("%s - waiting for peer: %w", logPrefix, ctx.Err())
	}
	if !info.Compatible {
		return info, fmt.Errorf("%s - %w: %s", logPrefix, ErrIncompatiblePeer, info.ProtocolVersion)
	}
	return info, nil
}
