package requesting

import (
	"context"
	"sync"
	"testing"

	"github.com/morezero/message-bridge/pkg/messaging"
	"github.com/morezero/message-bridge/pkg/value"
)

type fakeMainLoopKey struct{}

// fakeGlobalContext records posted messages and optionally forwards them,
// through the wire codec, to a peer.
type fakeGlobalContext struct {
	mu       sync.Mutex
	posted   []value.Value
	disabled bool
	deliver  func(message value.Value)
}

func (f *fakeGlobalContext) PostMessageToJs(message value.Value) bool {
	data, err := value.Marshal(message)
	if err != nil {
		return false
	}
	f.mu.Lock()
	if f.disabled {
		f.mu.Unlock()
		return false
	}
	f.posted = append(f.posted, message)
	deliver := f.deliver
	f.mu.Unlock()

	if deliver != nil {
		decoded, err := value.Unmarshal(data)
		if err != nil {
			return false
		}
		deliver(decoded)
	}
	return true
}

func (f *fakeGlobalContext) IsMainEventLoopThread(ctx context.Context) bool {
	return ctx.Value(fakeMainLoopKey{}) != nil
}

func (f *fakeGlobalContext) DisableJsCommunication() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled = true
}

func (f *fakeGlobalContext) postedMessages() []value.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]value.Value, len(f.posted))
	copy(out, f.posted)
	return out
}

// endpoint is one side of a loopback connection.
type endpoint struct {
	gc     *fakeGlobalContext
	router *messaging.Router
}

// newLoopback connects two endpoints so that each one's posts are routed by
// the other's router.
func newLoopback(t *testing.T) (*endpoint, *endpoint) {
	t.Helper()
	a := &endpoint{gc: &fakeGlobalContext{}, router: messaging.NewRouter()}
	b := &endpoint{gc: &fakeGlobalContext{}, router: messaging.NewRouter()}
	a.gc.deliver = func(m value.Value) {
		if _, err := b.router.OnMessageReceived(m); err != nil {
			t.Logf("loopback a->b: %v", err)
		}
	}
	b.gc.deliver = func(m value.Value) {
		if _, err := a.router.OnMessageReceived(m); err != nil {
			t.Logf("loopback b->a: %v", err)
		}
	}
	return a, b
}

// resultRecorder collects callback invocations.
type resultRecorder struct {
	mu      sync.Mutex
	results []GenericRequestResult
	done    chan struct{}
}

func newResultRecorder() *resultRecorder {
	return &resultRecorder{done: make(chan struct{}, 64)}
}

func (r *resultRecorder) callback(result GenericRequestResult) {
	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *resultRecorder) snapshot() []GenericRequestResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]GenericRequestResult, len(r.results))
	copy(out, r.results)
	return out
}
