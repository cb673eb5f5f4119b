package requesting

import (
	"sync/atomic"
)

// Callback receives the outcome of a request. It is invoked exactly once per
// resolved request and never while storage locks are held.
type Callback func(result GenericRequestResult)

// AsyncRequestState is the exactly-once resolvable record of one in-flight
// request. It is shared between the storage slot and any AsyncRequest
// handles; whichever party calls SetResult first wins.
type AsyncRequestState struct {
	callback  Callback
	delivered atomic.Bool
}

// NewAsyncRequestState wraps callback. A nil callback is allowed.
func NewAsyncRequestState(callback Callback) *AsyncRequestState {
	return &AsyncRequestState{callback: callback}
}

// SetResult delivers result to the callback unless an earlier call already
// did. It reports whether this call won.
func (s *AsyncRequestState) SetResult(result GenericRequestResult) bool {
	if !s.delivered.CompareAndSwap(false, true) {
		return false
	}
	callback := s.callback
	s.callback = nil
	if callback != nil {
		callback(result)
	}
	return true
}

// IsResolved reports whether SetResult has already won.
func (s *AsyncRequestState) IsResolved() bool {
	return s.delivered.Load()
}

// AsyncRequest is the caller-facing handle of a request. The zero value
// refers to no request. Share it by pointer; Reset and Cancel are safe to
// call concurrently.
type AsyncRequest struct {
	state atomic.Pointer[AsyncRequestState]
}

// NewAsyncRequest creates a handle referring to state.
func NewAsyncRequest(state *AsyncRequestState) *AsyncRequest {
	r := &AsyncRequest{}
	r.state.Store(state)
	return r
}

// Reset makes the handle refer to state (nil detaches it).
func (r *AsyncRequest) Reset(state *AsyncRequestState) {
	r.state.Store(state)
}

// Cancel resolves the request as canceled. It is a no-op if the request was
// already resolved, and reports whether the cancellation won.
func (r *AsyncRequest) Cancel() bool {
	state := r.state.Load()
	if state == nil {
		return false
	}
	return state.SetResult(Canceled())
}
