package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrQueueFull = errors.New("journal queue full, entry dropped")
	ErrClosed    = errors.New("journal recorder closed")
)

// AsyncRecorder queues entries and writes them to next from a single
// goroutine, so Record never waits on the backing store.
type AsyncRecorder struct {
	next    Recorder
	timeout time.Duration
	logger  *slog.Logger

	entries chan Entry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncRecorder starts the writer. Each write to next gets its own
// timeout; size bounds the number of queued entries.
func NewAsyncRecorder(next Recorder, size int, timeout time.Duration, logger *slog.Logger) *AsyncRecorder {
	if size <= 0 {
		size = 1
	}
	a := &AsyncRecorder{
		next:    next,
		timeout: timeout,
		logger:  logger,
		entries: make(chan Entry, size),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Record enqueues e. It returns ErrQueueFull instead of blocking when the
// writer is behind.
func (a *AsyncRecorder) Record(_ context.Context, e Entry) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrClosed
	}
	select {
	case a.entries <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *AsyncRecorder) run() {
	defer close(a.done)

	for e := range a.entries {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Record(ctx, e); err != nil {
			a.logger.Error("failed to write lookup entry", "zip", e.ZipCode, "outcome", e.Outcome, "error", err)
		}
		cancel()
	}
}

// Close stops accepting entries and waits for the queue to drain or ctx to
// end, whichever comes first.
func (a *AsyncRecorder) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.entries)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
