// Package runtime holds the process-wiring helpers shared by pkgraphd and
// pkgraph-worker: slog setup and scheduler.Job registration. Both binaries
// need the identical job set wired the same way, so it lives here once.
package runtime

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/mityayka1/pkgraph/internal/approval"
	"github.com/mityayka1/pkgraph/internal/audit"
	"github.com/mityayka1/pkgraph/internal/commitment"
	"github.com/mityayka1/pkgraph/internal/config"
	"github.com/mityayka1/pkgraph/internal/embedworker"
	"github.com/mityayka1/pkgraph/internal/extract"
	"github.com/mityayka1/pkgraph/internal/scheduler"
	"github.com/mityayka1/pkgraph/internal/segmenter"
	"github.com/mityayka1/pkgraph/internal/store"
)

// InitLogging installs the process-wide slog default handler per
// config.Observability (JSON in production, text in dev).
func InitLogging(cfg config.ObservabilityConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Jobs bundles the services the background scheduler dispatches against.
type Jobs struct {
	Embed      *embedworker.Service
	Segmenter  *segmenter.Service
	Extract    *extract.Service
	Commitment *commitment.Service
	Audit      *audit.Service
	Approval   *approval.Service
	Store      *store.Store
}

// keepCompletedEmbeddingJobs bounds the completed-job history retained for
// inspection; failed jobs keep a larger window (config.Embedding.MaxFailedJobs).
const keepCompletedEmbeddingJobs = 1000

// NewScheduler wires every periodic job this system runs onto one
// scheduler.Scheduler: the long pipelines (segmentation, extraction,
// audit) all run as minute-resolution cron-matched tasks.
func NewScheduler(cfg *config.Config, j Jobs) *scheduler.Scheduler {
	everyMinute, _ := scheduler.ParseCron("* * * * *")
	hourly, _ := scheduler.ParseCron("0 * * * *")
	nightly, _ := scheduler.ParseCron("0 3 * * *")
	auditCron, err := scheduler.ParseCron(cronForInterval(cfg.Audit.Interval))
	if err != nil {
		auditCron = hourly
	}

	sc := scheduler.New(scheduler.Config{
		Enabled:      true,
		TickInterval: time.Minute,
		LockPath:     cfg.Commitment.LockPath,
	})

	sc.Register(&scheduler.Job{
		Name: "embedding-retry-sweep", Cron: everyMinute, Category: scheduler.CategoryIO,
		Run: j.Embed.RetrySweep,
	})
	sc.Register(&scheduler.Job{
		Name: "segmentation-sweep", Cron: everyMinute, Category: scheduler.CategoryLLM,
		Run: j.Segmenter.RunPendingInteractions,
	})
	sc.Register(&scheduler.Job{
		Name: "extraction-sweep", Cron: everyMinute, Category: scheduler.CategoryLLM,
		Run: j.Extract.RunPendingSegments,
	})
	sc.Register(&scheduler.Job{
		Name: "commitment-reminder-tick", Cron: everyMinute, Category: scheduler.CategoryIO,
		Run: j.Commitment.Tick,
	})
	sc.Register(&scheduler.Job{
		Name: "approval-gc", Cron: nightly, Category: scheduler.CategoryDefault,
		Run: func(ctx context.Context, _ time.Time) error {
			_, err := j.Approval.GC(ctx, cfg.Approval.RetentionDays)
			return err
		},
	})
	sc.Register(&scheduler.Job{
		Name: "data-quality-audit", Cron: auditCron, Category: scheduler.CategoryDefault,
		Run: func(ctx context.Context, _ time.Time) error {
			report, err := j.Audit.Run(ctx)
			if err == nil {
				slog.Info("data quality audit complete", "metrics", report.Metrics, "issues", len(report.Issues), "resolutions", len(report.Resolutions))
			}
			return err
		},
	})
	sc.Register(&scheduler.Job{
		Name: "embedding-job-prune", Cron: hourly, Category: scheduler.CategoryDefault,
		Run: func(ctx context.Context, _ time.Time) error {
			return j.Store.PruneEmbeddingJobs(ctx, keepCompletedEmbeddingJobs, cfg.Embedding.MaxFailedJobs)
		},
	})
	sc.Register(&scheduler.Job{
		Name: "refresh-token-prune", Cron: hourly, Category: scheduler.CategoryDefault,
		Run: func(ctx context.Context, _ time.Time) error {
			n, err := j.Store.PruneExpiredRefreshTokens(ctx)
			if err == nil && n > 0 {
				slog.Info("pruned expired refresh tokens", "count", n)
			}
			return err
		},
	})

	return sc
}

// cronForInterval approximates an hourly-granularity interval as an
// "every N hours" cron expression; intervals under an hour fall back to
// hourly since the scheduler's own cron fields don't express minutes-of-N.
func cronForInterval(d time.Duration) string {
	hours := int(d.Hours())
	if hours < 1 {
		hours = 1
	}
	if hours == 1 {
		return "0 * * * *"
	}
	return "0 */" + strconv.Itoa(hours) + " * * *"
}
