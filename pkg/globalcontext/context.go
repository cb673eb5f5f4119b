// Package globalcontext owns the outbound channel to the host and the
// bridge's main event loop.
package globalcontext

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/morezero/message-bridge/pkg/value"
)

const logPrefix = "globalcontext:context"

// Transport delivers serialized messages to the host.
type Transport interface {
	Send(data []byte) error
}

// GlobalContext is the single point of truth for whether the host can still
// be reached.
type GlobalContext interface {
	// PostMessageToJs sends message to the host. It reports false when the
	// message was not handed to the transport, including after
	// DisableJsCommunication.
	PostMessageToJs(message value.Value) bool
	// IsMainEventLoopThread reports whether ctx belongs to work running on
	// the main event loop.
	IsMainEventLoopThread(ctx context.Context) bool
	// DisableJsCommunication permanently stops forwarding messages.
	DisableJsCommunication()
}

// Context is the transport-backed GlobalContext.
type Context struct {
	id string

	mu        sync.Mutex
	transport Transport

	loop *mainLoop
}

// New creates a Context sending through transport and starts its main loop.
// Close must be called to stop the loop.
func New(transport Transport) *Context {
	c := &Context{
		id:        uuid.NewString(),
		transport: transport,
	}
	c.loop = newMainLoop(c)
	slog.Info(fmt.Sprintf("%s - Created context %s", logPrefix, c.id))
	return c
}

// InstanceID identifies this context in logs and health output.
func (c *Context) InstanceID() string { return c.id }

func (c *Context) PostMessageToJs(message value.Value) bool {
	// Encode before taking the lock to keep the critical section short.
	data, err := value.Marshal(message)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode outgoing message: %v", logPrefix, err))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		slog.Debug(fmt.Sprintf("%s - Dropping message, host communication disabled", logPrefix))
		return false
	}
	if err := c.transport.Send(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to send message: %v", logPrefix, err))
		return false
	}
	return true
}

func (c *Context) IsMainEventLoopThread(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(mainLoopKey{}).(*Context)
	return owner == c
}

func (c *Context) DisableJsCommunication() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return
	}
	c.transport = nil
	slog.Info(fmt.Sprintf("%s - Host communication disabled for %s", logPrefix, c.id))
}

// IsJsCommunicationEnabled reports whether DisableJsCommunication has not
// been called yet.
func (c *Context) IsJsCommunicationEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport != nil
}

// RunOnMainLoop schedules fn on the main event loop. It reports false if the
// loop has already been stopped.
func (c *Context) RunOnMainLoop(fn func(ctx context.Context)) bool {
	return c.loop.post(fn)
}

// Close disables host communication, runs the tasks already queued on the
// main loop and stops it.
func (c *Context) Close() {
	c.DisableJsCommunication()
	c.loop.stop()
}
