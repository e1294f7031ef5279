package worker

import (
	"context"
	"time"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/envutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

// Worker is the in-process pool for light jobs. Each loop claims the oldest
// queued light run with SKIP LOCKED, so several pools can share one table.
type Worker struct {
	log          *logger.Logger
	repo         repos.JobRunRepo
	runner       *Runner
	pollInterval time.Duration
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, runner *Runner) *Worker {
	return &Worker{
		log:          baseLog.With("component", "JobWorker"),
		repo:         repo,
		runner:       runner,
		pollInterval: time.Second,
	}
}

// Start launches the pool and returns immediately; loops stop with ctx.
func (w *Worker) Start(ctx context.Context) {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 2)
	if concurrency < 1 {
		concurrency = 1
	}
	w.log.Info("Starting job worker pool", "concurrency", concurrency)

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce claims and executes at most one light job. It reports whether a
// job was run.
func (w *Worker) RunOnce(ctx context.Context) bool {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, jobsdomain.QueueLight)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "error", err)
		return false
	}
	if job == nil {
		return false
	}
	w.runner.Execute(ctx, job)
	return true
}
