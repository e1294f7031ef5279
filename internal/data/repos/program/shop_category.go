package program

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type ShopCategoryRepo interface {
	Create(dbc dbctx.Context, cats []*types.ShopCategory) ([]*types.ShopCategory, error)
	GetByName(dbc dbctx.Context, name string) (*types.ShopCategory, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ShopCategory, error)
}

type shopCategoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewShopCategoryRepo(db *gorm.DB, baseLog *logger.Logger) ShopCategoryRepo {
	return &shopCategoryRepo{db: db, log: baseLog.With("repo", "ShopCategoryRepo")}
}

func (r *shopCategoryRepo) Create(dbc dbctx.Context, cats []*types.ShopCategory) ([]*types.ShopCategory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(cats) == 0 {
		return []*types.ShopCategory{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

func (r *shopCategoryRepo) GetByName(dbc dbctx.Context, name string) (*types.ShopCategory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ShopCategory
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

func (r *shopCategoryRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ShopCategory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ShopCategory
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
