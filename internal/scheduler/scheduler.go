package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	ErrAlreadyRunning = errors.New("cron service already running")
	ErrNotRunning     = errors.New("cron service not running")
)

type JobFunc func(ctx context.Context, logger *slog.Logger)

type CronService struct {
	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewCronService creates a runner whose schedules are evaluated in loc.
// A run still in progress when its next tick fires is skipped.
func NewCronService(logger *slog.Logger, loc *time.Location) *CronService {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &CronService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob schedules job under a standard 5-field cron expression or a descriptor
// such as "@every 15m".
func (s *CronService) AddJob(name, spec string, job JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() { s.runJob(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.logger.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// Len returns the number of scheduled jobs.
func (s *CronService) Len() int {
	return len(s.cron.Entries())
}

// NextRun returns the earliest upcoming run, zero if nothing is scheduled.
func (s *CronService) NextRun() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if !e.Next.IsZero() && (next.IsZero() || e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

func (s *CronService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("cron service started", "jobs", len(s.cron.Entries()))
	return nil
}

func (s *CronService) runJob(name string, job JobFunc) {
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.handlePanic(name)

	taskLogger := s.logger.With("task_id", uuid.NewString(), "job", name)
	job(s.ctx, taskLogger)
}

// Shutdown stops scheduling, cancels running jobs' context and waits up to
// timeout for them to return.
func (s *CronService) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	s.mu.Unlock()

	stopped := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all jobs finished. cron service stopped")
		return nil
	case <-time.After(timeout):
		return errors.New("shutdown timeout: some jobs did not finish")
	}
}

func (s *CronService) handlePanic(name string) {
	if r := recover(); r != nil {
		s.logger.Error("panic recovered in job", "job", name, "panic", r)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
