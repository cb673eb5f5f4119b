package requesting

import (
	"fmt"
	"sort"
	"sync"
)

const storageLogPrefix = "requesting:storage"

// AsyncRequestsStorage maps request ids to pending states. Ids start at zero,
// increase monotonically and are never reused.
type AsyncRequestsStorage struct {
	mu      sync.Mutex
	nextID  RequestID
	pending map[RequestID]*AsyncRequestState
}

// NewAsyncRequestsStorage creates an empty storage.
func NewAsyncRequestsStorage() *AsyncRequestsStorage {
	return &AsyncRequestsStorage{pending: make(map[RequestID]*AsyncRequestState)}
}

// Push stores state under a fresh id and returns the id.
func (s *AsyncRequestsStorage) Push(state *AsyncRequestState) RequestID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	if _, exists := s.pending[id]; exists {
		// Overwriting would hand one caller's result to another.
		panic(fmt.Sprintf("%s - duplicate request id %d", storageLogPrefix, id))
	}
	s.pending[id] = state
	return id
}

// Pop removes and returns the state stored under id. It reports false when id
// is unknown or was already popped.
func (s *AsyncRequestsStorage) Pop(id RequestID) (*AsyncRequestState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.pending[id]
	if !ok {
		return nil, false
	}
	delete(s.pending, id)
	return state, true
}

// PopAll empties the storage and returns every pending state in id order.
func (s *AsyncRequestsStorage) PopAll() []*AsyncRequestState {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[RequestID]*AsyncRequestState)
	s.mu.Unlock()

	ids := make([]RequestID, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	states := make([]*AsyncRequestState, len(ids))
	for i, id := range ids {
		states[i] = pending[id]
	}
	return states
}

// Len returns the number of pending requests.
func (s *AsyncRequestsStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
