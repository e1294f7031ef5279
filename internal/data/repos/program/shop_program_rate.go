package program

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type ShopProgramRateRepo interface {
	Create(dbc dbctx.Context, rates []*types.ShopProgramRate) ([]*types.ShopProgramRate, error)
	LockOpen(dbc dbctx.Context, shopID, programID uuid.UUID, categoryID *uuid.UUID) (*types.ShopProgramRate, error)
	Archive(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	ListOpenByShopIDs(dbc dbctx.Context, shopIDs []uuid.UUID) ([]*types.ShopProgramRate, error)
	ListHistory(dbc dbctx.Context, shopID, programID uuid.UUID) ([]*types.ShopProgramRate, error)
	CountOpen(dbc dbctx.Context, shopID, programID uuid.UUID, categoryID *uuid.UUID) (int64, error)
}

type shopProgramRateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewShopProgramRateRepo(db *gorm.DB, baseLog *logger.Logger) ShopProgramRateRepo {
	return &shopProgramRateRepo{db: db, log: baseLog.With("repo", "ShopProgramRateRepo")}
}

func (r *shopProgramRateRepo) Create(dbc dbctx.Context, rates []*types.ShopProgramRate) ([]*types.ShopProgramRate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rates) == 0 {
		return []*types.ShopProgramRate{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}

func openScope(q *gorm.DB, shopID, programID uuid.UUID, categoryID *uuid.UUID) *gorm.DB {
	q = q.Where("shop_id = ? AND program_id = ? AND valid_to IS NULL", shopID, programID)
	if categoryID == nil {
		return q.Where("category_id IS NULL")
	}
	return q.Where("category_id = ?", *categoryID)
}

// LockOpen returns the open rate for the triple under a row lock, or nil.
func (r *shopProgramRateRepo) LockOpen(dbc dbctx.Context, shopID, programID uuid.UUID, categoryID *uuid.UUID) (*types.ShopProgramRate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ShopProgramRate
	q := transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"})
	if err := openScope(q, shopID, programID, categoryID).
		Order("valid_from DESC").
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *shopProgramRateRepo) Archive(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.ShopProgramRate{}).
		Where("id = ? AND valid_to IS NULL", id).
		Update("valid_to", at).Error
}

func (r *shopProgramRateRepo) ListOpenByShopIDs(dbc dbctx.Context, shopIDs []uuid.UUID) ([]*types.ShopProgramRate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ShopProgramRate
	if len(shopIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("shop_id IN ? AND valid_to IS NULL", shopIDs).
		Order("valid_from ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *shopProgramRateRepo) ListHistory(dbc dbctx.Context, shopID, programID uuid.UUID) ([]*types.ShopProgramRate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ShopProgramRate
	if err := transaction.WithContext(dbc.Ctx).
		Where("shop_id = ? AND program_id = ?", shopID, programID).
		Order("valid_from ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *shopProgramRateRepo) CountOpen(dbc dbctx.Context, shopID, programID uuid.UUID, categoryID *uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	q := transaction.WithContext(dbc.Ctx).Model(&types.ShopProgramRate{})
	err := openScope(q, shopID, programID, categoryID).Count(&n).Error
	return n, err
}
