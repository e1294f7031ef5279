package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	"github.com/yungbote/bonusfinder-backend/internal/ingestion/feed"
	"github.com/yungbote/bonusfinder-backend/internal/jobs/pipeline/expire_coupons"
	"github.com/yungbote/bonusfinder-backend/internal/jobs/pipeline/ingest_source"
	"github.com/yungbote/bonusfinder-backend/internal/jobs/pipeline/rescore_variants"
	"github.com/yungbote/bonusfinder-backend/internal/jobs/queue"
	jobrt "github.com/yungbote/bonusfinder-backend/internal/jobs/runtime"
	"github.com/yungbote/bonusfinder-backend/internal/jobs/scheduler"
	"github.com/yungbote/bonusfinder-backend/internal/jobs/worker"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

// Jobs holds the job runtime shared by the API process (light pool,
// scheduler) and the heavy worker process.
type Jobs struct {
	Registry  *jobrt.Registry
	Runner    *worker.Runner
	Worker    *worker.Worker
	Scheduler *scheduler.Scheduler
}

func wireJobs(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, s Services) (Jobs, error) {
	log.Info("Wiring jobs...")

	registry := jobrt.NewRegistry()
	fetcher := feed.NewFetcher(log, feed.WithTimeout(cfg.FeedTimeout), feed.WithParallel(cfg.FeedParallel))
	for _, h := range []jobrt.Handler{
		ingest_source.New(log, fetcher, s.Ingestion),
		rescore_variants.New(log, s.Identity),
		expire_coupons.New(log, r.Coupon),
	} {
		if err := registry.Register(h); err != nil {
			return Jobs{}, err
		}
	}

	byQueue := registry.ByQueue()
	log.Info("Job handlers registered", "light", byQueue[jobsdomain.QueueLight], "heavy", byQueue[jobsdomain.QueueHeavy])

	runner := worker.NewRunner(db, log, r.JobRun, r.JobRunEvent, registry)
	out := Jobs{
		Registry: registry,
		Runner:   runner,
		Worker:   worker.NewWorker(log, r.JobRun, runner),
	}

	if cfg.RunScheduler {
		file, err := scheduler.Load(cfg.ScheduleFile)
		if err != nil {
			return Jobs{}, err
		}
		sched, err := scheduler.New(log, s.Jobs, file)
		if err != nil {
			return Jobs{}, err
		}
		out.Scheduler = sched
	}
	return out, nil
}

// HeavyConsumer builds the consumer for cmd/worker. It fails without a queue.
func (a *App) HeavyConsumer() (*queue.Consumer, error) {
	if a == nil || a.Clients.HeavyQueue == nil {
		return nil, fmt.Errorf("heavy worker requires REDIS_ADDR")
	}
	return queue.NewConsumer(a.Log, a.Clients.HeavyQueue, a.Repos.JobRun, a.Jobs.Runner, a.Cfg.HeavyConcurrency), nil
}

func (j *Jobs) start(ctx context.Context, cfg Config) {
	if cfg.RunLightWorker && j.Worker != nil {
		j.Worker.Start(ctx)
	}
	if j.Scheduler != nil {
		j.Scheduler.Start(ctx)
	}
}

func (j *Jobs) stop() {
	if j.Scheduler != nil {
		j.Scheduler.Stop()
	}
}
