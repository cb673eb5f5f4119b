// Package events defines bridge lifecycle events and their publishers.
package events

// Kind names a lifecycle transition.
type Kind string

const (
	KindStarted      Kind = "started"
	KindHandshake    Kind = "handshake"
	KindIncompatible Kind = "incompatible"
	KindStopped      Kind = "stopped"
)

// BridgeEvent is emitted when a bridge changes lifecycle state.
type BridgeEvent struct {
	Kind                Kind   `json:"kind"`
	InstanceID          string `json:"instanceId"`
	Channel             string `json:"channel"`
	ProtocolVersion     string `json:"protocolVersion"`
	PeerInstanceID      string `json:"peerInstanceId,omitempty"`
	PeerProtocolVersion string `json:"peerProtocolVersion,omitempty"`
	PendingRequests     int    `json:"pendingRequests"`
	Timestamp           string `json:"timestamp"`
}
