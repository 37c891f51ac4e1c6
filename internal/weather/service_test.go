package weather

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zip-weather/internal/journal"
	"zip-weather/internal/storage"
)

type mockFetcher struct {
	raw        *CurrentConditions
	err        error
	calls      int
	configured bool
}

func (m *mockFetcher) FetchCurrent(ctx context.Context, zipCode string) (*CurrentConditions, error) {
	m.calls++
	if ctx.Err() != nil {
		return nil, &ProviderError{Err: ctx.Err()}
	}
	return m.raw, m.err
}

func (m *mockFetcher) Configured() bool { return m.configured }

type memRecorder struct {
	entries []journal.Entry
	err     error
}

func (r *memRecorder) Record(ctx context.Context, e journal.Entry) error {
	r.entries = append(r.entries, e)
	return r.err
}

type fixture struct {
	svc      *Service
	fetcher  *mockFetcher
	limiter  *RateLimiter
	cache    *storage.Cache[Payload]
	clock    *fakeClock
	recorder *memRecorder
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()

	var raw CurrentConditions
	require.NoError(t, json.Unmarshal([]byte(beverlyHillsJSON), &raw))

	f := &fixture{
		fetcher:  &mockFetcher{raw: &raw, configured: true},
		clock:    newFakeClock(),
		recorder: &memRecorder{},
	}
	f.limiter = NewRateLimiter(limit, DefaultWindow, f.clock.Now)
	f.cache = storage.NewCache[Payload](5*time.Minute, f.clock.Now)
	f.svc = NewService(f.fetcher, f.limiter, f.cache, slog.New(slog.DiscardHandler),
		WithClock(f.clock.Now),
		WithRecorder(f.recorder),
	)
	return f
}

func TestLookup_FreshThenCached(t *testing.T) {
	f := newFixture(t, 999)
	ctx := context.Background()

	first, err := f.svc.Lookup(ctx, "90210")
	require.NoError(t, err)
	assert.False(t, first.Payload.FromCache)
	assert.Equal(t, 73, first.Payload.Temperature.Current)
	assert.InDelta(t, 10.0, first.Payload.Visibility, 1e-9)
	require.NotNil(t, first.Usage)
	assert.Equal(t, 1, first.Usage.Used)
	assert.Equal(t, 998, first.Usage.Remaining)

	f.clock.Advance(time.Minute)
	second, err := f.svc.Lookup(ctx, "90210")
	require.NoError(t, err)
	assert.True(t, second.Payload.FromCache)
	assert.Nil(t, second.Usage)
	assert.Equal(t, f.clock.t, second.Payload.Timestamp, "cache hits are re-stamped at serve time")

	want := first.Payload
	want.FromCache = true
	want.Timestamp = second.Payload.Timestamp
	assert.Equal(t, want, second.Payload)

	assert.Equal(t, 1, f.fetcher.calls)
	assert.Equal(t, 1, f.limiter.Snapshot().Used, "a cache hit never consumes quota")
}

func TestLookup_ExpiredCacheRefetches(t *testing.T) {
	f := newFixture(t, 999)
	ctx := context.Background()

	_, err := f.svc.Lookup(ctx, "90210")
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	res, err := f.svc.Lookup(ctx, "90210")
	require.NoError(t, err)
	assert.False(t, res.Payload.FromCache)
	assert.Equal(t, 2, f.fetcher.calls)
	assert.Equal(t, 2, f.limiter.Snapshot().Used)
}

func TestLookup_InvalidZip(t *testing.T) {
	f := newFixture(t, 999)

	for _, zip := range []string{"invalid", "1234", "90210-12", ""} {
		_, err := f.svc.Lookup(context.Background(), zip)
		assert.ErrorIs(t, err, ErrInvalidZipCode, zip)
	}
	assert.Zero(t, f.fetcher.calls)
}

func TestLookup_MissingAPIKeyShortCircuits(t *testing.T) {
	f := newFixture(t, 999)
	f.fetcher.configured = false
	f.cache.Put("90210", Payload{})

	_, err := f.svc.Lookup(context.Background(), "90210")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Zero(t, f.fetcher.calls)
	assert.Zero(t, f.limiter.Snapshot().Used)
}

func TestLookup_ProviderFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"not found", &ProviderError{StatusCode: 404, Body: `{"message":"city not found"}`}, ErrLocationNotFound},
		{"bad key", &ProviderError{StatusCode: 401}, ErrInvalidCredentials},
		{"server error", &ProviderError{StatusCode: 500}, ErrProviderUnavailable},
		{"network", &ProviderError{Err: errors.New("connection refused")}, ErrProviderUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 999)
			f.fetcher.err = tc.err

			_, err := f.svc.Lookup(context.Background(), "99999")
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, f.limiter.Snapshot().Used, "failures do not consume quota")
			assert.Zero(t, f.cache.Len(), "failures are not cached")
		})
	}
}

func TestLookup_RateLimitedSkipsProvider(t *testing.T) {
	f := newFixture(t, 2)
	f.limiter.Increment()
	f.limiter.Increment()

	_, err := f.svc.Lookup(context.Background(), "10001")
	require.ErrorIs(t, err, ErrDailyLimitExceeded)

	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 0, rle.Status.Remaining)
	assert.Equal(t, f.limiter.Snapshot().ResetAt, rle.Status.ResetAt)
	assert.Zero(t, f.fetcher.calls)
}

func TestLookup_CacheHitServedWhenRateLimited(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.Lookup(ctx, "90210")
	require.NoError(t, err)
	require.False(t, f.limiter.Snapshot().Allowed)

	res, err := f.svc.Lookup(ctx, "90210")
	require.NoError(t, err)
	assert.True(t, res.Payload.FromCache)

	_, err = f.svc.Lookup(ctx, "10001")
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
}

func TestLookup_WindowRolloverRestoresQuota(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.Lookup(ctx, "90210")
	require.NoError(t, err)
	_, err = f.svc.Lookup(ctx, "10001")
	require.ErrorIs(t, err, ErrDailyLimitExceeded)

	f.clock.t = f.limiter.Snapshot().ResetAt
	res, err := f.svc.Lookup(ctx, "10001")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Usage.Used)
}

func TestLookup_RecordsJournal(t *testing.T) {
	f := newFixture(t, 999)
	f.recorder.err = errors.New("db down")
	ctx := context.Background()

	_, err := f.svc.Lookup(ctx, "90210")
	require.NoError(t, err, "journal failures never fail a lookup")
	_, _ = f.svc.Lookup(ctx, "90210")
	_, _ = f.svc.Lookup(ctx, "bad")
	f.fetcher.err = &ProviderError{StatusCode: 404}
	_, _ = f.svc.Lookup(ctx, "99999")

	require.Len(t, f.recorder.entries, 4)
	assert.Equal(t, "ok", f.recorder.entries[0].Outcome)
	assert.False(t, f.recorder.entries[0].FromCache)
	assert.True(t, f.recorder.entries[1].FromCache)
	assert.Equal(t, "invalid_input", f.recorder.entries[2].Outcome)
	assert.Equal(t, "not_found", f.recorder.entries[3].Outcome)
	assert.Equal(t, 404, f.recorder.entries[3].ProviderStatus)
}

func TestService_Usage(t *testing.T) {
	f := newFixture(t, 5)
	_, err := f.svc.Lookup(context.Background(), "90210")
	require.NoError(t, err)

	u := f.svc.Usage()
	assert.True(t, u.Allowed)
	assert.Equal(t, 1, u.Used)
	assert.Equal(t, 4, u.Remaining)
	assert.Equal(t, 5, u.Limit)
	assert.Equal(t, 1, u.CacheSize)
	assert.Equal(t, 1, f.fetcher.calls)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "rate_limited", Outcome(&RateLimitError{}))
	assert.Equal(t, "missing_configuration", Outcome(ErrMissingAPIKey))
	assert.Equal(t, "invalid_credentials", Outcome(classify(&ProviderError{StatusCode: 401})))
	assert.Equal(t, "provider_unavailable", Outcome(classify(errors.New("x"))))
}

// hangingStore never finishes a write until its context ends.
type hangingStore struct{}

func (hangingStore) Record(ctx context.Context, _ journal.Entry) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestLookup_StalledJournalDoesNotDelayLookups(t *testing.T) {
	f := newFixture(t, 999)
	async := journal.NewAsyncRecorder(hangingStore{}, 1, time.Hour, slog.New(slog.DiscardHandler))
	f.svc.recorder = async

	ctx := context.Background()
	start := time.Now()
	_, err := f.svc.Lookup(ctx, "90210")
	require.NoError(t, err)
	for range 5 {
		res, err := f.svc.Lookup(ctx, "90210")
		require.NoError(t, err)
		assert.True(t, res.Payload.FromCache)
	}
	_, err = f.svc.Lookup(ctx, "bad")
	assert.ErrorIs(t, err, ErrInvalidZipCode)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
