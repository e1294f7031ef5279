package jobs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type JobRunEventRepo interface {
	Create(dbc dbctx.Context, events []*types.JobRunEvent) error
	ListByJob(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error)
}

type jobRunEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return &jobRunEventRepo{db: db, log: baseLog.With("repo", "JobRunEventRepo")}
}

func (r *jobRunEventRepo) Create(dbc dbctx.Context, events []*types.JobRunEvent) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(events) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&events).Error
}

func (r *jobRunEventRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 200
	}
	var out []*types.JobRunEvent
	if err := transaction.WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
