package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

// Scheduler turns cron fires into queued job runs.
type Scheduler struct {
	log  *logger.Logger
	jobs services.JobService
	cron *cron.Cron
	ctx  context.Context
}

func New(baseLog *logger.Logger, jobs services.JobService, file *File) (*Scheduler, error) {
	loc := time.UTC
	if file != nil && file.Timezone != "" {
		l, err := time.LoadLocation(file.Timezone)
		if err != nil {
			return nil, fmt.Errorf("schedule timezone: %w", err)
		}
		loc = l
	}
	s := &Scheduler{
		log:  baseLog.With("component", "Scheduler"),
		jobs: jobs,
		cron: cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		ctx:  context.Background(),
	}
	if file == nil {
		return s, nil
	}
	for _, e := range file.Jobs {
		if e.Disabled {
			s.log.Info("Schedule entry disabled", "name", e.Name)
			continue
		}
		entry := e
		if _, err := s.cron.AddFunc(entry.Cron, func() { s.Fire(s.ctx, entry) }); err != nil {
			return nil, fmt.Errorf("register %q: %w", entry.Name, err)
		}
		s.log.Info("Scheduled job", "name", entry.Name, "cron", entry.Cron, "job_type", entry.JobType)
	}
	return s, nil
}

// Fire enqueues one run for e. With skip_if_running a queued or running run
// of the same type suppresses the new one.
func (s *Scheduler) Fire(ctx context.Context, e Entry) {
	dbc := dbctx.Context{Ctx: ctx}
	if e.skipIfRunning() {
		busy, err := s.jobs.HasRunnable(dbc, e.JobType)
		if err != nil {
			s.log.Warn("Schedule check failed", "name", e.Name, "error", err)
			return
		}
		if busy {
			s.log.Info("Skipping scheduled job; previous run still active", "name", e.Name, "job_type", e.JobType)
			return
		}
	}
	payload := map[string]any{"schedule": e.Name}
	for k, v := range e.Payload {
		payload[k] = v
	}
	job, err := s.jobs.Enqueue(dbc, nil, e.JobType, payload)
	if err != nil {
		s.log.Warn("Scheduled enqueue failed", "name", e.Name, "error", err)
		return
	}
	s.log.Info("Scheduled job enqueued", "name", e.Name, "job_id", job.ID)
}

func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
}

// Stop halts new fires and waits for running fire funcs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
