package weather

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"zip-weather/internal/journal"
)

// ResponseCache holds reshaped payloads by lookup key.
type ResponseCache interface {
	Get(key string) (Payload, bool)
	Put(key string, p Payload)
	Len() int
}

// Result is a successful lookup. Usage is set only when the provider was called.
type Result struct {
	Payload Payload
	Usage   *LimitStatus
}

// Usage is the service's quota and cache state.
type Usage struct {
	LimitStatus
	CacheSize int
}

type Option func(*Service)

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRecorder journals every lookup. Record runs on the request path, so r
// must not wait on I/O; wrap stores in journal.NewAsyncRecorder.
func WithRecorder(r journal.Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// Service answers zip code lookups from the cache or, quota permitting,
// from the provider.
type Service struct {
	fetcher  Fetcher
	limiter  *RateLimiter
	cache    ResponseCache
	recorder journal.Recorder
	clock    Clock
	logger   *slog.Logger
}

func NewService(fetcher Fetcher, limiter *RateLimiter, cache ResponseCache, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		limiter: limiter,
		cache:   cache,
		clock:   time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup resolves current weather for zipCode. The cache is consulted before
// the limiter, so a hit never consumes or is denied quota.
func (s *Service) Lookup(ctx context.Context, zipCode string) (*Result, error) {
	res, err := s.lookup(ctx, zipCode)
	s.record(ctx, zipCode, res, err)
	return res, err
}

func (s *Service) lookup(ctx context.Context, zipCode string) (*Result, error) {
	if !ValidZipCode(zipCode) {
		return nil, ErrInvalidZipCode
	}
	if !s.fetcher.Configured() {
		return nil, ErrMissingAPIKey
	}

	key := zipCode
	if cached, ok := s.cache.Get(key); ok {
		cached.FromCache = true
		cached.Timestamp = s.clock().UTC()
		s.logger.Debug("weather served from cache", "zip", zipCode)
		return &Result{Payload: cached}, nil
	}

	limit := s.limiter.Check()
	if !limit.Allowed {
		s.logger.Warn("daily provider limit reached", "zip", zipCode, "used", limit.Used, "reset_at", limit.ResetAt)
		return nil, &RateLimitError{Status: limit}
	}

	fetchStart := time.Now()
	raw, err := s.fetcher.FetchCurrent(ctx, zipCode)
	fetchDur := time.Since(fetchStart)
	if err != nil {
		attrs := []any{"zip", zipCode, "error", err, "fetch_dur", fetchDur}
		var pe *ProviderError
		if errors.As(err, &pe) && pe.StatusCode != 0 {
			attrs = append(attrs, "provider_status", pe.StatusCode, "provider_body", pe.Body)
		}
		s.logger.Error("weather provider call failed", attrs...)
		return nil, classify(err)
	}

	payload := Reshape(raw, zipCode, s.clock())
	s.limiter.Increment()
	s.cache.Put(key, payload)

	usage := s.limiter.Snapshot()
	s.logger.Info("weather fetched from provider",
		"zip", zipCode,
		"requests_used", usage.Used,
		"requests_remaining", usage.Remaining,
		"fetch_dur", fetchDur,
	)

	return &Result{Payload: payload, Usage: &usage}, nil
}

// Usage checks the limiter, rolling an elapsed window, and reports it with
// the cache size. It never calls the provider.
func (s *Service) Usage() Usage {
	return Usage{
		LimitStatus: s.limiter.Check(),
		CacheSize:   s.cache.Len(),
	}
}

// Snapshot is Usage without rolling the limiter window.
func (s *Service) Snapshot() Usage {
	return Usage{
		LimitStatus: s.limiter.Snapshot(),
		CacheSize:   s.cache.Len(),
	}
}

func (s *Service) record(ctx context.Context, zipCode string, res *Result, err error) {
	if s.recorder == nil {
		return
	}

	entry := journal.Entry{
		ZipCode: zipCode,
		Outcome: Outcome(err),
		At:      s.clock().UTC(),
	}
	if res != nil {
		entry.FromCache = res.Payload.FromCache
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		entry.ProviderStatus = pe.StatusCode
	}

	if rerr := s.recorder.Record(context.WithoutCancel(ctx), entry); rerr != nil {
		s.logger.Warn("lookup not journaled", "zip", zipCode, "outcome", entry.Outcome, "error", rerr)
	}
}
