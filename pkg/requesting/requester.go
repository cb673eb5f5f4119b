package requesting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/morezero/message-bridge/pkg/globalcontext"
	"github.com/morezero/message-bridge/pkg/messaging"
	"github.com/morezero/message-bridge/pkg/value"
)

const requesterLogPrefix = "requesting:requester"

// CompletedRequest describes a finished outgoing request.
type CompletedRequest struct {
	Requester   string
	RequestID   RequestID
	PayloadDump string
	Result      GenericRequestResult
	StartedAt   time.Time
	Duration    time.Duration
}

// CompletionObserver is notified of every resolved request before its
// callback runs. Implementations must not block.
type CompletionObserver interface {
	OnRequestCompleted(req CompletedRequest)
}

// RequesterOption configures a Requester.
type RequesterOption func(*Requester)

// WithCompletionObserver attaches an observer to the Requester.
func WithCompletionObserver(observer CompletionObserver) RequesterOption {
	return func(r *Requester) { r.observer = observer }
}

// Requester sends requests to the host and routes the matching responses
// back to their callbacks.
type Requester struct {
	name     string
	gc       globalcontext.GlobalContext
	router   *messaging.Router
	storage  *AsyncRequestsStorage
	listener messaging.TypedMessageListener
	observer CompletionObserver

	closeMu sync.RWMutex
	closed  bool
}

// NewRequester creates a Requester named name and registers its response
// listener with router.
func NewRequester(name string, gc globalcontext.GlobalContext, router *messaging.Router, opts ...RequesterOption) (*Requester, error) {
	if name == "" {
		return nil, fmt.Errorf("%s - requester name must not be empty", requesterLogPrefix)
	}
	r := &Requester{
		name:    name,
		gc:      gc,
		router:  router,
		storage: NewAsyncRequestsStorage(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.listener = messaging.NewTypedListener(ResponseMessageType(name), r.onResponse)
	if err := router.AddRoute(r.listener); err != nil {
		return nil, fmt.Errorf("%s - failed to register response listener: %w", requesterLogPrefix, err)
	}
	return r, nil
}

// Name returns the requester name used in message type tags.
func (r *Requester) Name() string { return r.name }

// PendingCount returns the number of requests awaiting a response. A
// canceled request still counts until its response arrives or the Requester
// is closed, since the host may still be running it.
func (r *Requester) PendingCount() int { return r.storage.Len() }

// StartAsyncRequest sends payload and arranges for callback to receive the
// outcome exactly once. After Close the callback receives a canceled result
// immediately.
func (r *Requester) StartAsyncRequest(payload value.Value, callback Callback) *AsyncRequest {
	var issuedID atomic.Int64
	issuedID.Store(-1)
	state := NewAsyncRequestState(r.observe(payload, &issuedID, callback))

	r.closeMu.RLock()
	if r.closed {
		r.closeMu.RUnlock()
		state.SetResult(Canceled())
		return NewAsyncRequest(state)
	}
	id := r.storage.Push(state)
	issuedID.Store(int64(id))
	r.closeMu.RUnlock()

	slog.Debug(fmt.Sprintf("%s - %s: sending request %d", requesterLogPrefix, r.name, id))
	if !r.gc.PostMessageToJs(NewRequestMessage(r.name, id, payload).ToValue()) {
		if popped, ok := r.storage.Pop(id); ok {
			popped.SetResult(Failed(fmt.Sprintf("Failed to post request %d: host communication unavailable", id)))
		}
	}
	return NewAsyncRequest(state)
}

// PerformSyncRequest sends payload and waits for its outcome. When ctx is
// done first the request is canceled. It must not be called from the main
// event loop, which delivers responses.
func (r *Requester) PerformSyncRequest(ctx context.Context, payload value.Value) GenericRequestResult {
	if r.gc.IsMainEventLoopThread(ctx) {
		return Failed("Synchronous requests are not allowed on the main event loop")
	}

	done := make(chan GenericRequestResult, 1)
	request := r.StartAsyncRequest(payload, func(result GenericRequestResult) {
		done <- result
	})

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		request.Cancel()
		return <-done
	}
}

// Close unregisters the response listener and resolves every pending request
// as canceled. It is safe to call more than once.
func (r *Requester) Close() {
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return
	}
	r.closed = true
	r.closeMu.Unlock()

	r.router.RemoveRoute(r.listener)
	pending := r.storage.PopAll()
	for _, state := range pending {
		state.SetResult(Canceled())
	}
	slog.Info(fmt.Sprintf("%s - %s: closed, canceled %d pending requests", requesterLogPrefix, r.name, len(pending)))
}

func (r *Requester) onResponse(data value.Value) error {
	response, err := ParseResponseMessageData(data)
	if err != nil {
		return fmt.Errorf("%s - %s: %w", requesterLogPrefix, r.name, err)
	}
	state, ok := r.storage.Pop(response.RequestID)
	if !ok {
		// Already resolved by cancellation or shutdown, or never issued here.
		slog.Debug(fmt.Sprintf("%s - %s: discarding response for unknown request %d", requesterLogPrefix, r.name, response.RequestID))
		return nil
	}
	state.SetResult(response.Result)
	return nil
}

func (r *Requester) observe(payload value.Value, issuedID *atomic.Int64, callback Callback) Callback {
	if r.observer == nil {
		return callback
	}
	startedAt := time.Now()
	dump := payloadDump(payload)
	return func(result GenericRequestResult) {
		r.observer.OnRequestCompleted(CompletedRequest{
			Requester:   r.name,
			RequestID:   RequestID(issuedID.Load()),
			PayloadDump: dump,
			Result:      result,
			StartedAt:   startedAt,
			Duration:    time.Since(startedAt),
		})
		if callback != nil {
			callback(result)
		}
	}
}

// payloadDump renders remote calls as name(args...) and anything else as a
// sanitized value dump.
func payloadDump(payload value.Value) string {
	if call, err := ParseRemoteCallRequestPayload(payload); err == nil {
		return call.DebugDumpSanitized()
	}
	return value.DebugDumpSanitized(payload)
}
