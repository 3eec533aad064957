// Package notify bridges the object store's write-completed events to the job
// queue. This is the wiring that makes the compute trigger fire without the
// API server ever seeing the binary: clients write straight to the store with
// their presigned credential, the store emits an event, and the listener turns
// it into a queued job.
package notify

import (
	"context"
	"log"
)

// Events is the notification stream, satisfied by *objectstore.Storage.
type Events interface {
	ListenCreated(ctx context.Context) <-chan string
}

// Enqueuer schedules work for an object key, satisfied by *queue.Client.
type Enqueuer interface {
	Enqueue(ctx context.Context, objectKey string) error
}

// Listener fans bucket events out to a small pool of enqueue workers so one
// slow enqueue doesn't stall the notification stream.
type Listener struct {
	events   Events
	enqueuer Enqueuer
	workers  int
}

// NewListener constructs a Listener.
func NewListener(events Events, enqueuer Enqueuer, workers int) *Listener {
	if workers <= 0 {
		workers = 1
	}
	return &Listener{events: events, enqueuer: enqueuer, workers: workers}
}

// Run consumes events until the context is cancelled.
func (l *Listener) Run(ctx context.Context) {
	keys := l.events.ListenCreated(ctx)
	jobs := make(chan string, l.workers*4)
	for i := 0; i < l.workers; i++ {
		go l.worker(ctx, jobs)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case key, ok := <-keys:
			if !ok {
				return
			}
			select {
			case jobs <- key:
			default:
				// Buffer full: enqueue inline rather than drop the event. An
				// unprocessed upload would otherwise poll to exhaustion.
				l.dispatch(ctx, key)
			}
		}
	}
}

func (l *Listener) worker(ctx context.Context, jobs <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-jobs:
			l.dispatch(ctx, key)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, key string) {
	if err := l.enqueuer.Enqueue(ctx, key); err != nil {
		log.Printf("enqueue for %s failed: %v", key, err)
	}
}
