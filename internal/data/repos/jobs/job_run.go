package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error)
	ClaimNextRunnable(dbc dbctx.Context, queue string) (*types.JobRun, error)
	ClaimByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	RequestCancel(dbc dbctx.Context, id uuid.UUID) (bool, error)
	IsCancelRequested(dbc dbctx.Context, id uuid.UUID) (bool, error)
	ExistsRunnable(dbc dbctx.Context, jobType string) (bool, error)
	FailUnfinishedBefore(dbc dbctx.Context, epoch time.Time, reason string) (int64, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *jobRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.JobRun
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimNextRunnable moves the oldest queued run of the queue to running.
// Concurrent claimers skip rows another worker has locked.
func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, queue string) (*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	var claimed *types.JobRun
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue = ? AND status = ?", queue, jobsdomain.StatusQueued).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		res := txx.Model(&types.JobRun{}).
			Where("id = ? AND status = ?", job.ID, jobsdomain.StatusQueued).
			Updates(map[string]interface{}{
				"status":       jobsdomain.StatusRunning,
				"stage":        "running",
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"started_at":   now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.Status = jobsdomain.StatusRunning
		job.Stage = "running"
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		job.StartedAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ClaimByID performs the queued->running transition for a specific run. It
// returns nil when the run is missing or already claimed, which is how a
// duplicated queue delivery is dropped.
func (r *jobRunRepo) ClaimByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, jobsdomain.StatusQueued).
		Updates(map[string]interface{}{
			"status":       jobsdomain.StatusRunning,
			"stage":        "running",
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_at":    now,
			"heartbeat_at": now,
			"started_at":   now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, id)
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}

	q := transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, jobsdomain.StatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

// RequestCancel flags a run for cooperative cancellation. A queued run is
// cancelled outright since no handler will observe the flag.
func (r *jobRunRepo) RequestCancel(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, jobsdomain.StatusQueued).
		Updates(map[string]interface{}{
			"status":           jobsdomain.StatusCancelled,
			"stage":            "cancelled",
			"cancel_requested": true,
			"finished_at":      now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	res = transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, jobsdomain.StatusRunning).
		Updates(map[string]interface{}{
			"cancel_requested": true,
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) IsCancelRequested(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND cancel_requested = ?", id, true).
		Count(&n).Error
	return n > 0, err
}

func (r *jobRunRepo) ExistsRunnable(dbc dbctx.Context, jobType string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if jobType == "" {
		return false, nil
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("job_type = ? AND status IN ?", jobType, []string{jobsdomain.StatusQueued, jobsdomain.StatusRunning}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FailUnfinishedBefore fails every queued or running run created before
// epoch. It is called once at process start.
func (r *jobRunRepo) FailUnfinishedBefore(dbc dbctx.Context, epoch time.Time, reason string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("status IN ? AND created_at < ?", []string{jobsdomain.StatusQueued, jobsdomain.StatusRunning}, epoch).
		Updates(map[string]interface{}{
			"status":        jobsdomain.StatusFailed,
			"stage":         "recovery",
			"error":         reason,
			"last_error_at": now,
			"finished_at":   now,
			"locked_at":     nil,
			"updated_at":    now,
		})
	return res.RowsAffected, res.Error
}
