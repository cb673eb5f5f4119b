package globalcontext

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const mainLoopLogPrefix = "globalcontext:mainloop"

type mainLoopKey struct{}

// mainLoop runs queued tasks one at a time on a single goroutine. Tasks
// receive a context marked with the owning Context. stop must not be called
// from a task.
type mainLoop struct {
	ctx context.Context

	mu      sync.Mutex
	queue   []func(ctx context.Context)
	stopped bool

	wake chan struct{}
	done chan struct{}
}

func newMainLoop(owner *Context) *mainLoop {
	l := &mainLoop{
		ctx:  context.WithValue(context.Background(), mainLoopKey{}, owner),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *mainLoop) post(fn func(ctx context.Context)) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
	return true
}

func (l *mainLoop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *mainLoop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.signal()
	<-l.done
}

func (l *mainLoop) run() {
	defer close(l.done)
	for range l.wake {
		for {
			l.mu.Lock()
			tasks := l.queue
			l.queue = nil
			stopped := l.stopped
			l.mu.Unlock()

			if len(tasks) == 0 {
				if stopped {
					slog.Debug(fmt.Sprintf("%s - Main loop stopped", mainLoopLogPrefix))
					return
				}
				break
			}
			for _, task := range tasks {
				task(l.ctx)
			}
		}
	}
}
