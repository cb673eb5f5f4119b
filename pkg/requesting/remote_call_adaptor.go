package requesting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/message-bridge/pkg/value"
)

const adaptorLogPrefix = "requesting:remote_call"

// RemoteCallAdaptor issues named function calls through a Requester.
type RemoteCallAdaptor struct {
	requester *Requester
}

// NewRemoteCallAdaptor wraps requester.
func NewRemoteCallAdaptor(requester *Requester) *RemoteCallAdaptor {
	return &RemoteCallAdaptor{requester: requester}
}

// AsyncCall calls functionName with args; callback receives the outcome.
func (a *RemoteCallAdaptor) AsyncCall(callback Callback, functionName string, args ...value.Value) *AsyncRequest {
	payload := NewRemoteCallRequestPayload(functionName, args...)
	slog.Debug(fmt.Sprintf("%s - calling %s", adaptorLogPrefix, payload.DebugDumpSanitized()))
	return a.requester.StartAsyncRequest(payload.ToValue(), callback)
}

// SyncCall calls functionName with args and waits for the result. Remote
// failures come back as *RemoteError, cancellation as ErrRequestCanceled.
func (a *RemoteCallAdaptor) SyncCall(ctx context.Context, functionName string, args ...value.Value) (value.Value, error) {
	payload := NewRemoteCallRequestPayload(functionName, args...)
	slog.Debug(fmt.Sprintf("%s - calling %s", adaptorLogPrefix, payload.DebugDumpSanitized()))
	result := a.requester.PerformSyncRequest(ctx, payload.ToValue())
	if err := result.Err(); err != nil {
		return value.Value{}, fmt.Errorf("%s - %s: %w", adaptorLogPrefix, value.SanitizeForLog(functionName, maxDumpedNameLength), err)
	}
	return result.Payload(), nil
}

// RemoteFunction implements one function callable from the other side.
type RemoteFunction func(ctx context.Context, args []value.Value) (value.Value, error)

// FunctionRegistry is a RequestHandler that executes remote calls against
// registered functions.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]RemoteFunction
}

// NewFunctionRegistry creates an empty FunctionRegistry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]RemoteFunction)}
}

// Register adds fn under name. Registering a name twice is rejected.
func (f *FunctionRegistry) Register(name string, fn RemoteFunction) error {
	if name == "" {
		return fmt.Errorf("%s - %w", adaptorLogPrefix, ErrEmptyFunctionName)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.functions[name]; exists {
		return fmt.Errorf("%s - function %q already registered", adaptorLogPrefix, name)
	}
	f.functions[name] = fn
	return nil
}

// HandleRequest implements RequestHandler.
func (f *FunctionRegistry) HandleRequest(ctx context.Context, payload value.Value, respond Callback) {
	call, err := ParseRemoteCallRequestPayload(payload)
	if err != nil {
		respond(Failed(err.Error()))
		return
	}

	f.mu.RLock()
	fn, ok := f.functions[call.FunctionName]
	f.mu.RUnlock()
	if !ok {
		respond(Failed(fmt.Sprintf("Unknown function: %s", value.SanitizeForLog(call.FunctionName, maxDumpedNameLength))))
		return
	}

	slog.Debug(fmt.Sprintf("%s - executing %s", adaptorLogPrefix, call.DebugDumpSanitized()))
	result, err := fn(ctx, call.Arguments)
	if err != nil {
		respond(Failed(err.Error()))
		return
	}
	respond(Succeeded(result))
}
