package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

// Source yields job ids; RedisQueue implements it.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (uuid.UUID, bool, error)
}

// Executor runs a claimed job; worker.Runner implements it.
type Executor interface {
	Execute(ctx context.Context, job *types.JobRun)
}

// Consumer drains the heavy queue. A popped id is claimed with a conditional
// queued->running update, so an id pushed twice still runs once.
type Consumer struct {
	log         *logger.Logger
	source      Source
	repo        repos.JobRunRepo
	exec        Executor
	concurrency int
	popTimeout  time.Duration
}

func NewConsumer(baseLog *logger.Logger, source Source, repo repos.JobRunRepo, exec Executor, concurrency int) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Consumer{
		log:         baseLog.With("component", "HeavyConsumer"),
		source:      source,
		repo:        repo,
		exec:        exec,
		concurrency: concurrency,
		popTimeout:  5 * time.Second,
	}
}

// Run blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("Starting heavy job consumer", "concurrency", c.concurrency)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					c.log.Info("Heavy consumer loop stopped", "worker_id", workerID)
					return nil
				}
				if _, err := c.Step(gctx); err != nil {
					c.log.Warn("Heavy consumer step failed", "worker_id", workerID, "error", err)
					select {
					case <-gctx.Done():
					case <-time.After(time.Second):
					}
				}
			}
		})
	}
	return g.Wait()
}

// Step pops one id and runs its job if it is still queued. It reports whether
// a job ran.
func (c *Consumer) Step(ctx context.Context) (bool, error) {
	id, ok, err := c.source.Pop(ctx, c.popTimeout)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	if !ok {
		return false, nil
	}
	job, err := c.repo.ClaimByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		c.log.Debug("Skipping job that is no longer queued", "job_id", id)
		return false, nil
	}
	c.exec.Execute(ctx, job)
	return true, nil
}
