package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/morezero/message-bridge/pkg/requesting"
)

const recorderLogPrefix = "journal:recorder"

const (
	defaultBufferSize   = 1024
	defaultWriteTimeout = 5 * time.Second
)

// RecorderOptions tunes a Recorder. Zero values use defaults.
type RecorderOptions struct {
	BufferSize   int
	WriteTimeout time.Duration
}

// Recorder is a requesting.CompletionObserver that writes entries to a Store
// from a single background worker. OnRequestCompleted never blocks: entries
// are dropped when the buffer is full.
type Recorder struct {
	store        Store
	writeTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	entries chan Entry
	done    chan struct{}

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewRecorder starts a Recorder writing to store.
func NewRecorder(store Store, opts RecorderOptions) *Recorder {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	r := &Recorder{
		store:        store,
		writeTimeout: opts.WriteTimeout,
		entries:      make(chan Entry, opts.BufferSize),
		done:         make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) OnRequestCompleted(req requesting.CompletedRequest) {
	entry := EntryFromCompleted(req)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.entries <- entry:
	default:
		r.dropped.Add(1)
		slog.Warn(fmt.Sprintf("%s - buffer full, dropping entry for %s request %d", recorderLogPrefix, entry.Requester, entry.RequestID))
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		err := r.store.Insert(ctx, entry)
		cancel()
		if err != nil {
			r.failed.Add(1)
			slog.Error(fmt.Sprintf("%s - failed to write entry: %v", recorderLogPrefix, err))
			continue
		}
		r.written.Add(1)
	}
}

// Close stops accepting entries and waits until the buffered ones are
// written or ctx is done.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.entries)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		slog.Info(fmt.Sprintf("%s - closed: written=%d dropped=%d failed=%d", recorderLogPrefix, r.written.Load(), r.dropped.Load(), r.failed.Load()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s - flushing journal: %w", recorderLogPrefix, ctx.Err())
	}
}

// Stats reports how many entries were written, dropped and failed.
func (r *Recorder) Stats() (written, dropped, failed int64) {
	return r.written.Load(), r.dropped.Load(), r.failed.Load()
}
