package bridge

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthOutput is the /health response body.
type HealthOutput struct {
	Status                 string `json:"status"`
	JsCommunicationEnabled bool   `json:"js_communication_enabled"`
	// PendingRequests includes canceled calls the host has not answered yet.
	PendingRequests     int    `json:"pending_requests"`
	InstanceID          string `json:"instance_id"`
	ProtocolVersion     string `json:"protocol_version"`
	PeerProtocolVersion string `json:"peer_protocol_version,omitempty"`
	PeerCompatible      *bool  `json:"peer_compatible,omitempty"`
	UptimeSeconds       int64  `json:"uptime_seconds"`
	Timestamp           string `json:"timestamp"`
}

// Health reports the bridge state. The bridge is healthy while host
// communication is enabled.
func (b *Bridge) Health() *HealthOutput {
	h := &HealthOutput{
		Status:                 "healthy",
		JsCommunicationEnabled: b.gc.IsJsCommunicationEnabled(),
		PendingRequests:        b.requester.PendingCount(),
		InstanceID:             b.gc.InstanceID(),
		ProtocolVersion:        b.negotiator.LocalVersion(),
		UptimeSeconds:          int64(time.Since(b.startedAt).Seconds()),
		Timestamp:              time.Now().UTC().Format(time.RFC3339),
	}
	if !h.JsCommunicationEnabled {
		h.Status = "unhealthy"
	}
	if peer, ok := b.negotiator.Peer(); ok {
		compatible := peer.Compatible
		h.PeerProtocolVersion = peer.ProtocolVersion
		h.PeerCompatible = &compatible
	}
	return h
}

// Handler returns the HTTP mux serving /health and /ready.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := b.Health()
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	return mux
}
