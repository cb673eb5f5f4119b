package requesting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/message-bridge/pkg/globalcontext"
	"github.com/morezero/message-bridge/pkg/messaging"
	"github.com/morezero/message-bridge/pkg/value"
)

const receiverLogPrefix = "requesting:receiver"

// RequestHandler processes one inbound request and reports its outcome
// through respond. respond may be called from any goroutine; only the first
// call has an effect.
type RequestHandler interface {
	HandleRequest(ctx context.Context, payload value.Value, respond Callback)
}

// RequestHandlerFunc adapts a function into a RequestHandler.
type RequestHandlerFunc func(ctx context.Context, payload value.Value, respond Callback)

func (f RequestHandlerFunc) HandleRequest(ctx context.Context, payload value.Value, respond Callback) {
	f(ctx, payload, respond)
}

// RequestReceiver answers requests sent by the remote requester of the same
// name. Each request is handled on its own goroutine so a slow handler never
// stalls delivery of other messages.
type RequestReceiver struct {
	name     string
	handler  RequestHandler
	gc       globalcontext.GlobalContext
	router   *messaging.Router
	listener messaging.TypedMessageListener

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRequestReceiver creates a RequestReceiver and registers its request
// listener with router.
func NewRequestReceiver(name string, handler RequestHandler, gc globalcontext.GlobalContext, router *messaging.Router) (*RequestReceiver, error) {
	if name == "" {
		return nil, fmt.Errorf("%s - receiver name must not be empty", receiverLogPrefix)
	}
	ctx, cancel := context.WithCancel(context.Background())
	rr := &RequestReceiver{
		name:    name,
		handler: handler,
		gc:      gc,
		router:  router,
		ctx:     ctx,
		cancel:  cancel,
	}
	rr.listener = messaging.NewTypedListener(RequestMessageType(name), rr.onRequest)
	if err := router.AddRoute(rr.listener); err != nil {
		cancel()
		return nil, fmt.Errorf("%s - failed to register request listener: %w", receiverLogPrefix, err)
	}
	return rr, nil
}

// Name returns the receiver name used in message type tags.
func (rr *RequestReceiver) Name() string { return rr.name }

func (rr *RequestReceiver) onRequest(data value.Value) error {
	request, err := ParseRequestMessageData(data)
	if err != nil {
		return fmt.Errorf("%s - %s: %w", receiverLogPrefix, rr.name, err)
	}

	var once sync.Once
	respond := func(result GenericRequestResult) {
		once.Do(func() { rr.postResult(request.RequestID, result) })
	}

	rr.mu.Lock()
	if rr.closed {
		rr.mu.Unlock()
		return fmt.Errorf("%s - %s: receiver closed, dropping request %d", receiverLogPrefix, rr.name, request.RequestID)
	}
	rr.wg.Add(1)
	rr.mu.Unlock()

	go func() {
		defer rr.wg.Done()
		rr.handler.HandleRequest(rr.ctx, request.Payload, respond)
	}()
	return nil
}

func (rr *RequestReceiver) postResult(id RequestID, result GenericRequestResult) {
	if result.Status() == RequestCanceled {
		// Cancellation is local to each side; report it as a failure.
		result = Failed(result.ErrorMessage())
	}
	if !rr.gc.PostMessageToJs(NewResponseMessage(rr.name, id, result).ToValue()) {
		slog.Warn(fmt.Sprintf("%s - %s: could not post response to request %d", receiverLogPrefix, rr.name, id))
	}
}

// Close unregisters the request listener, cancels the context passed to
// running handlers and waits for them to return.
func (rr *RequestReceiver) Close() {
	rr.router.RemoveRoute(rr.listener)
	rr.mu.Lock()
	rr.closed = true
	rr.mu.Unlock()
	rr.cancel()
	rr.wg.Wait()
}
