package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
	"github.com/yungbote/bonusfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

// RestartReason is recorded on runs left unfinished by a previous process.
const RestartReason = "container restarted"

// JobDispatcher announces a heavy job to the external worker pool.
type JobDispatcher interface {
	Push(ctx context.Context, jobID uuid.UUID) error
}

type JobDetail struct {
	*types.JobRun
	Events []*types.JobRunEvent `json:"events"`
}

type JobService interface {
	Enqueue(dbc dbctx.Context, ownerUserID *uuid.UUID, jobType string, payload map[string]any) (*types.JobRun, error)
	// Dispatch hands a heavy job to the queue. Enqueue calls it unless it ran
	// inside a transaction, in which case the caller dispatches after commit.
	Dispatch(dbc dbctx.Context, jobID uuid.UUID) error
	Get(dbc dbctx.Context, jobID uuid.UUID) (*JobDetail, error)
	Cancel(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
	// RecoverUnfinished fails every queued or running run created before
	// epoch.
	RecoverUnfinished(dbc dbctx.Context, epoch time.Time) (int64, error)
	// HasRunnable reports whether a queued or running run of jobType exists.
	HasRunnable(dbc dbctx.Context, jobType string) (bool, error)
}

type jobService struct {
	db         *gorm.DB
	log        *logger.Logger
	repo       repos.JobRunRepo
	events     repos.JobRunEventRepo
	dispatcher JobDispatcher
}

func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	events repos.JobRunEventRepo,
	dispatcher JobDispatcher,
) JobService {
	return &jobService{
		db:         db,
		log:        baseLog.With("service", "JobService"),
		repo:       repo,
		events:     events,
		dispatcher: dispatcher,
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, ownerUserID *uuid.UUID, jobType string, payload map[string]any) (*types.JobRun, error) {
	jobType = strings.TrimSpace(jobType)
	if jobType == "" {
		return nil, apperr.Invalid("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	ctxutil.GetTraceData(dbc.Context()).Stamp(payload)
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	now := time.Now().UTC()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		Queue:       jobsdomain.QueueFor(jobType),
		Status:      jobsdomain.StatusQueued,
		Stage:       jobsdomain.StatusQueued,
		Message:     "Queued",
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = inTx(dbc, s.db, func(txc dbctx.Context) error {
		if _, err := s.repo.Create(txc, []*types.JobRun{job}); err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		return s.events.Create(txc, []*types.JobRunEvent{{
			JobID:   job.ID,
			JobType: job.JobType,
			Kind:    jobsdomain.EventCreated,
			Stage:   job.Stage,
			Message: "Queued on " + job.Queue,
		}})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Job enqueued", "job_id", job.ID, "job_type", job.JobType, "queue", job.Queue)

	if dbc.Tx != nil {
		s.log.Debug("Job enqueued inside transaction; awaiting dispatch after commit", "job_id", job.ID)
		return job, nil
	}
	if err := s.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID); err != nil {
		return job, err
	}
	return job, nil
}

func (s *jobService) Dispatch(dbc dbctx.Context, jobID uuid.UUID) error {
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return ErrJobNotFound
	}
	// Light jobs are claimed from the table by the in-process worker.
	if job.Queue != jobsdomain.QueueHeavy {
		return nil
	}
	if s.dispatcher == nil {
		return fmt.Errorf("heavy queue not configured (REDIS_ADDR)")
	}
	if err := s.dispatcher.Push(dbc.Context(), jobID); err != nil {
		return fmt.Errorf("dispatch job %s: %w", jobID, err)
	}
	return nil
}

func (s *jobService) Get(dbc dbctx.Context, jobID uuid.UUID) (*JobDetail, error) {
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	evs, err := s.events.ListByJob(dbc, jobID, 0)
	if err != nil {
		return nil, fmt.Errorf("load job events: %w", err)
	}
	return &JobDetail{JobRun: job, Events: evs}, nil
}

func (s *jobService) Cancel(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	var updated *types.JobRun
	err := inTx(dbc, s.db, func(txc dbctx.Context) error {
		job, err := s.repo.GetByID(txc, jobID)
		if err != nil {
			return fmt.Errorf("load job: %w", err)
		}
		if job == nil {
			return ErrJobNotFound
		}
		if job.Terminal() {
			updated = job
			return nil
		}
		if _, err := s.repo.RequestCancel(txc, jobID); err != nil {
			return fmt.Errorf("request cancel: %w", err)
		}
		if err := s.events.Create(txc, []*types.JobRunEvent{{
			JobID:    job.ID,
			JobType:  job.JobType,
			Kind:     jobsdomain.EventCancelled,
			Stage:    job.Stage,
			Progress: job.Progress,
			Message:  "Cancel requested",
		}}); err != nil {
			return fmt.Errorf("append cancel event: %w", err)
		}
		updated, err = s.repo.GetByID(txc, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Job cancel requested", "job_id", jobID, "status", updated.Status)
	return updated, nil
}

func (s *jobService) RecoverUnfinished(dbc dbctx.Context, epoch time.Time) (int64, error) {
	n, err := s.repo.FailUnfinishedBefore(dbc, epoch, RestartReason)
	if err != nil {
		return 0, fmt.Errorf("recover unfinished jobs: %w", err)
	}
	if n > 0 {
		s.log.Warn("Failed unfinished jobs from a previous process", "count", n, "epoch", epoch)
	}
	return n, nil
}

func (s *jobService) HasRunnable(dbc dbctx.Context, jobType string) (bool, error) {
	return s.repo.ExistsRunnable(dbc, jobType)
}
