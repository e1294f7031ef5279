package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/jobs/runtime"
	"github.com/yungbote/bonusfinder-backend/internal/observability"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/envutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

const heartbeatInterval = 30 * time.Second

// Runner executes one claimed job run with its handler. Both the light
// in-process pool and the heavy queue consumer go through it.
type Runner struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	events   repos.JobRunEventRepo
	registry *runtime.Registry
	timeout  time.Duration
}

func NewRunner(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, events repos.JobRunEventRepo, registry *runtime.Registry) *Runner {
	return &Runner{
		db:       db,
		log:      baseLog.With("component", "JobRunner"),
		repo:     repo,
		events:   events,
		registry: registry,
		timeout:  envutil.Seconds("JOB_TIMEOUT_SECONDS", time.Hour),
	}
}

func (r *Runner) Execute(ctx context.Context, job *types.JobRun) {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	jc := runtime.NewContext(runCtx, r.db, job, r.repo, r.events)
	stopHeartbeat := r.heartbeat(runCtx, job)
	defer stopHeartbeat()

	h, ok := r.registry.Get(job.JobType)
	if !ok {
		r.log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		r.observe(job, start)
		return
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", rec)
				jc.Fail("panic", errFromRecover(rec))
			}
		}()
		runErr := h.Run(jc)
		switch {
		case runErr == nil:
			// Handlers normally call Succeed themselves; this is a safety net.
			jc.Succeed("done", nil)
		case errors.Is(runErr, runtime.ErrCancelled):
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				jc.Fail("timeout", fmt.Errorf("job exceeded %s", r.timeout))
				return
			}
			jc.Cancelled(job.Stage)
		default:
			jc.Fail(job.Stage, runErr)
		}
	}()
	r.observe(job, start)
	r.log.Info("Job finished", "job_id", job.ID, "job_type", job.JobType, "status", job.Status, "duration", time.Since(start))
}

func (r *Runner) observe(job *types.JobRun, start time.Time) {
	observability.Current().ObserveJob(job.JobType, job.Queue, job.Status, time.Since(start))
}

func (r *Runner) heartbeat(ctx context.Context, job *types.JobRun) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.repo.Heartbeat(dbctx.Context{Ctx: ctx}, job.ID); err != nil {
					r.log.Warn("Job heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
