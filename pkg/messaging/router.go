package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/message-bridge/pkg/value"
)

const logPrefix = "messaging:router"

// ErrDuplicateListener is returned when a second listener is registered for a
// type tag that already has one.
var ErrDuplicateListener = errors.New("listener already registered for message type")

// ErrNoListener is returned when no listener is registered for a message type.
var ErrNoListener = errors.New("no listener registered for message type")

// MessageListener consumes a raw message. It reports whether the message was
// handled; failures come back through err with handled=false.
type MessageListener interface {
	OnMessageReceived(message value.Value) (handled bool, err error)
}

// TypedMessageListener handles the data of messages carrying one type tag.
type TypedMessageListener interface {
	ListenedMessageType() string
	OnTypedMessageReceived(data value.Value) error
}

type funcListener struct {
	messageType string
	fn          func(data value.Value) error
}

func (l *funcListener) ListenedMessageType() string { return l.messageType }

func (l *funcListener) OnTypedMessageReceived(data value.Value) error { return l.fn(data) }

// NewTypedListener adapts a function into a TypedMessageListener.
func NewTypedListener(messageType string, fn func(data value.Value) error) TypedMessageListener {
	return &funcListener{messageType: messageType, fn: fn}
}

// Router demultiplexes TypedMessages to the listener registered for their
// type tag. It is safe for concurrent use; listeners are invoked without the
// router lock held, so they may register or remove routes themselves.
type Router struct {
	mu        sync.RWMutex
	listeners map[string]TypedMessageListener
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{listeners: make(map[string]TypedMessageListener)}
}

// AddRoute registers listener for its type tag. Registering a second listener
// for the same tag is rejected.
func (r *Router) AddRoute(listener TypedMessageListener) error {
	messageType := listener.ListenedMessageType()
	if messageType == "" {
		return fmt.Errorf("%s - %w", logPrefix, ErrEmptyType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.listeners[messageType]; exists {
		return fmt.Errorf("%s - %w: %q", logPrefix, ErrDuplicateListener, messageType)
	}
	r.listeners[messageType] = listener
	slog.Debug(fmt.Sprintf("%s - Added route for %q", logPrefix, messageType))
	return nil
}

// RemoveRoute unregisters listener. It reports false if listener was not the
// one registered for its tag.
func (r *Router) RemoveRoute(listener TypedMessageListener) bool {
	messageType := listener.ListenedMessageType()

	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.listeners[messageType]; !ok || current != listener {
		return false
	}
	delete(r.listeners, messageType)
	slog.Debug(fmt.Sprintf("%s - Removed route for %q", logPrefix, messageType))
	return true
}

// HasRoute reports whether a listener is registered for messageType.
func (r *Router) HasRoute(messageType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.listeners[messageType]
	return ok
}

// OnMessageReceived parses message as a TypedMessage and routes its data.
func (r *Router) OnMessageReceived(message value.Value) (bool, error) {
	typed, err := ParseTypedMessage(message)
	if err != nil {
		return false, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return r.Dispatch(typed)
}

// Dispatch routes an already parsed TypedMessage.
func (r *Router) Dispatch(message TypedMessage) (bool, error) {
	r.mu.RLock()
	listener, ok := r.listeners[message.Type]
	r.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("%s - %w: %q", logPrefix, ErrNoListener, message.Type)
	}
	slog.Debug(fmt.Sprintf("%s - type=%s", logPrefix, message.Type))
	if err := listener.OnTypedMessageReceived(message.Data); err != nil {
		return false, fmt.Errorf("%s - listener for %q failed: %w", logPrefix, message.Type, err)
	}
	return true, nil
}
