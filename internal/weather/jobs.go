package weather

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"zip-weather/internal/scheduler"
	"zip-weather/internal/sender"
)

// Sweeper removes expired cache entries.
type Sweeper interface {
	Sweep() int
}

// Summarizer counts recorded lookup outcomes since a point in time.
type Summarizer interface {
	Summary(ctx context.Context, since time.Time) (map[string]int, error)
}

// NewCacheSweepJob returns a job that drops logically expired cache entries.
func NewCacheSweepJob(cache Sweeper) scheduler.JobFunc {
	return func(ctx context.Context, taskLogger *slog.Logger) {
		start := time.Now()
		removed := cache.Sweep()
		taskLogger.Debug("cache sweep finished", "removed", removed, "dur", time.Since(start))
	}
}

// NewUsageReportJob returns a job that sends the current quota usage to the
// operator. summary may be nil when no journal is configured.
func NewUsageReportJob(svc *Service, sdr sender.Sender, summary Summarizer) scheduler.JobFunc {
	return func(ctx context.Context, taskLogger *slog.Logger) {
		jobStart := time.Now()
		usage := svc.Usage()

		n := sender.Notification{
			Subject: "Weather API usage",
			Lines: []string{
				fmt.Sprintf("requests used: %d/%d", usage.Used, usage.Limit),
				fmt.Sprintf("requests remaining: %d", usage.Remaining),
				fmt.Sprintf("window resets at: %s", usage.ResetAt.Format(time.RFC3339)),
				fmt.Sprintf("cache entries: %d", usage.CacheSize),
			},
		}
		if !usage.Allowed {
			n.Lines = append(n.Lines, "status: RATE_LIMITED")
		}

		if summary != nil {
			counts, err := summary.Summary(ctx, usage.Since)
			if err != nil {
				if ctx.Err() != nil {
					taskLogger.Warn("job cancelled due to shutdown", "reason", ctx.Err())
					return
				}
				taskLogger.Error("failed to summarize lookups", "error", err)
			}
			for _, outcome := range slices.Sorted(maps.Keys(counts)) {
				n.Lines = append(n.Lines, fmt.Sprintf("lookups %s: %d", outcome, counts[outcome]))
			}
		}

		sendStart := time.Now()
		if err := sdr.Send(ctx, n); err != nil {
			taskLogger.Error("failed to send usage report", "error", err, "send_dur", time.Since(sendStart))
			return
		}

		taskLogger.Info("usage report sent",
			"requests_used", usage.Used,
			"requests_remaining", usage.Remaining,
			"total_dur", time.Since(jobStart),
		)
	}
}
