// Package app wires application components together and manages lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"zip-weather/internal/config"
	"zip-weather/internal/httpapi"
	"zip-weather/internal/journal"
	"zip-weather/internal/scheduler"
	"zip-weather/internal/sender"
	"zip-weather/internal/storage"
	"zip-weather/internal/weather"
)

const (
	journalConnectTimeout = 10 * time.Second
	journalWriteTimeout   = 2 * time.Second
	journalQueueSize      = 256
)

// App holds initialized dependencies and running services.
type App struct {
	log      *slog.Logger
	service  *weather.Service
	store    journal.Store
	recorder *journal.AsyncRecorder
	cron     *scheduler.CronService
	server   *http.Server
}

// New builds the application with all dependencies. The lookup journal is
// optional and only opened when a database URL is configured.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	fetcher := weather.NewOpenWeatherFetcher(cfg.WeatherAPI.APIKey, cfg.WeatherAPI.BaseURL, cfg.WeatherAPI.HTTPTimeout)
	if !fetcher.Configured() {
		log.Warn("OPENWEATHER_API_KEY is not set; weather lookups will fail until it is configured")
	}

	limiter := weather.NewRateLimiter(cfg.DailyLimit, weather.DefaultWindow, time.Now)
	log.Info("provider quota configured",
		"limit", cfg.DailyLimit,
		"window", limiter.Window(),
		"first_reset_at", limiter.Snapshot().ResetAt.Format(time.RFC3339),
	)
	cache := storage.NewCache[weather.Payload](cfg.CacheTTL, nil)

	var (
		store    journal.Store
		recorder *journal.AsyncRecorder
		opts     []weather.Option
	)
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), journalConnectTimeout)
		pj, err := storage.NewPostgresJournal(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("open lookup journal: %w", err)
		}
		store = pj
		recorder = journal.NewAsyncRecorder(pj, journalQueueSize, journalWriteTimeout, log)
		opts = append(opts, weather.WithRecorder(recorder))
		log.Info("lookup journal enabled")
	}

	service := weather.NewService(fetcher, limiter, cache, log, opts...)

	cron := scheduler.NewCronService(log, time.Local)
	if cfg.CacheSweepSchedule != "" {
		if err := cron.AddJob("cache-sweep", cfg.CacheSweepSchedule, weather.NewCacheSweepJob(cache)); err != nil {
			closeJournal(context.Background(), recorder, store, log)
			return nil, err
		}
	}
	if cfg.UsageReportSchedule != "" {
		var summary weather.Summarizer
		if store != nil {
			summary = store
		}
		job := weather.NewUsageReportJob(service, newSender(cfg.Telegram, log), summary)
		if err := cron.AddJob("usage-report", cfg.UsageReportSchedule, job); err != nil {
			closeJournal(context.Background(), recorder, store, log)
			return nil, err
		}
	}

	api := httpapi.NewServer(service, log, httpapi.Options{AllowedOrigins: cfg.AllowedOrigins})

	return &App{
		log:      log,
		service:  service,
		store:    store,
		recorder: recorder,
		cron:     cron,
		server: &http.Server{
			Addr:              net.JoinHostPort("", cfg.Port),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelError),
		},
	}, nil
}

// newSender prefers Telegram and falls back to the log when it is not
// configured or the bot cannot be created.
func newSender(cfg config.Telegram, log *slog.Logger) sender.Sender {
	if !cfg.Enabled() {
		return sender.NewLogSender(log)
	}
	tg, err := sender.NewTelegramSender(cfg)
	if err != nil {
		log.Error("failed to create telegram sender, reports go to the log", "error", err)
		return sender.NewLogSender(log)
	}
	return tg
}

// Run starts the scheduler and serves HTTP. It blocks until the server stops
// and returns nil after a clean Shutdown.
func (a *App) Run() error {
	if a.cron.Len() > 0 {
		if err := a.cron.Start(); err != nil {
			return err
		}
		if next := a.cron.NextRun(); !next.IsZero() {
			a.log.Info("first job run scheduled", "at", next.Format(time.RFC3339))
		}
	}

	a.log.Info("http server listening", "addr", a.server.Addr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains HTTP, stops scheduled jobs, flushes queued journal
// entries and closes the journal.
func (a *App) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("http shutdown error", "error", err)
	}
	if err := a.cron.Shutdown(timeout); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
		a.log.Error("cron shutdown error", "error", err)
	}
	closeJournal(ctx, a.recorder, a.store, a.log)
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func closeJournal(ctx context.Context, recorder *journal.AsyncRecorder, store journal.Store, log *slog.Logger) {
	if recorder != nil {
		if err := recorder.Close(ctx); err != nil {
			log.Error("lookup journal not flushed", "error", err)
		}
	}
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Error("failed to close lookup journal", "error", err)
	}
}
