package program

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type BonusProgramRepo interface {
	Create(dbc dbctx.Context, programs []*types.BonusProgram) ([]*types.BonusProgram, error)
	GetByName(dbc dbctx.Context, name string) (*types.BonusProgram, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.BonusProgram, error)
	List(dbc dbctx.Context) ([]*types.BonusProgram, error)
	UpdatePointValue(dbc dbctx.Context, id uuid.UUID, pointValueEUR float64) error
}

type bonusProgramRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBonusProgramRepo(db *gorm.DB, baseLog *logger.Logger) BonusProgramRepo {
	return &bonusProgramRepo{db: db, log: baseLog.With("repo", "BonusProgramRepo")}
}

func (r *bonusProgramRepo) Create(dbc dbctx.Context, programs []*types.BonusProgram) ([]*types.BonusProgram, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(programs) == 0 {
		return []*types.BonusProgram{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&programs).Error; err != nil {
		return nil, err
	}
	return programs, nil
}

func (r *bonusProgramRepo) GetByName(dbc dbctx.Context, name string) (*types.BonusProgram, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.BonusProgram
	if err := transaction.WithContext(dbc.Ctx).
		Where("name = ?", name).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *bonusProgramRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.BonusProgram, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.BonusProgram
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *bonusProgramRepo) List(dbc dbctx.Context) ([]*types.BonusProgram, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.BonusProgram
	if err := transaction.WithContext(dbc.Ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *bonusProgramRepo) UpdatePointValue(dbc dbctx.Context, id uuid.UUID, pointValueEUR float64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.BonusProgram{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"point_value_eur": pointValueEUR,
			"updated_at":      time.Now().UTC(),
		}).Error
}
