package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *memRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRecorder) zips() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.ZipCode)
	}
	return out
}

// stuckRecorder holds every write until its context ends.
type stuckRecorder struct {
	started chan struct{}
	once    sync.Once
}

func (s *stuckRecorder) Record(ctx context.Context, _ Entry) error {
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	return ctx.Err()
}

func TestAsyncRecorder_DrainsOnClose(t *testing.T) {
	mem := &memRecorder{}
	a := NewAsyncRecorder(mem, 8, time.Second, slog.New(slog.DiscardHandler))

	for _, zip := range []string{"90210", "10001", "60601"} {
		require.NoError(t, a.Record(context.Background(), Entry{ZipCode: zip}))
	}
	require.NoError(t, a.Close(context.Background()))

	assert.Equal(t, []string{"90210", "10001", "60601"}, mem.zips())
	assert.ErrorIs(t, a.Record(context.Background(), Entry{ZipCode: "94105"}), ErrClosed)
	assert.NoError(t, a.Close(context.Background()), "close is idempotent")
}

func TestAsyncRecorder_StuckStoreDoesNotBlockRecord(t *testing.T) {
	stuck := &stuckRecorder{started: make(chan struct{})}
	a := NewAsyncRecorder(stuck, 1, time.Hour, slog.New(slog.DiscardHandler))

	require.NoError(t, a.Record(context.Background(), Entry{ZipCode: "90210"}))
	<-stuck.started

	start := time.Now()
	require.NoError(t, a.Record(context.Background(), Entry{ZipCode: "10001"}))
	err := a.Record(context.Background(), Entry{ZipCode: "60601"})
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Close(ctx), context.DeadlineExceeded)
}

func TestAsyncRecorder_WriteTimeout(t *testing.T) {
	stuck := &stuckRecorder{started: make(chan struct{})}
	a := NewAsyncRecorder(stuck, 4, 10*time.Millisecond, slog.New(slog.DiscardHandler))

	require.NoError(t, a.Record(context.Background(), Entry{ZipCode: "90210"}))
	require.NoError(t, a.Record(context.Background(), Entry{ZipCode: "10001"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, a.Close(ctx), "each stuck write is cut off by its own timeout")
}
