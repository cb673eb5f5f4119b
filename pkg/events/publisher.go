package events

import "context"

// EventPublisher delivers bridge lifecycle events. Publish failures never
// affect the bridge; callers only log them.
type EventPublisher interface {
	Publish(ctx context.Context, event *BridgeEvent) error
}

// NoOpPublisher drops every event. The bridge uses it when
// BRIDGE_EVENTS_ENABLED is false.
type NoOpPublisher struct{}

func (p *NoOpPublisher) Publish(_ context.Context, _ *BridgeEvent) error {
	return nil
}

// CallbackPublisher hands each event to a function, for embedding the bridge
// without a NATS events subject.
type CallbackPublisher struct {
	callback func(ctx context.Context, event *BridgeEvent) error
}

func NewCallbackPublisher(cb func(ctx context.Context, event *BridgeEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

func (p *CallbackPublisher) Publish(ctx context.Context, event *BridgeEvent) error {
	return p.callback(ctx, event)
}
