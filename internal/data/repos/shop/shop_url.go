package shop

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type ShopURLRepo interface {
	Create(dbc dbctx.Context, urls []*types.ShopURL) ([]*types.ShopURL, error)
	ListByCanonicalIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ShopURL, error)
	Exists(dbc dbctx.Context, canonicalID uuid.UUID, url string) (bool, error)
	RepointCanonical(dbc dbctx.Context, fromID, toID uuid.UUID) error
}

type shopURLRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewShopURLRepo(db *gorm.DB, baseLog *logger.Logger) ShopURLRepo {
	return &shopURLRepo{db: db, log: baseLog.With("repo", "ShopURLRepo")}
}

func (r *shopURLRepo) Create(dbc dbctx.Context, urls []*types.ShopURL) ([]*types.ShopURL, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(urls) == 0 {
		return []*types.ShopURL{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&urls).Error; err != nil {
		return nil, err
	}
	return urls, nil
}

func (r *shopURLRepo) ListByCanonicalIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ShopURL, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ShopURL
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("canonical_shop_id IN ?", ids).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *shopURLRepo) Exists(dbc dbctx.Context, canonicalID uuid.UUID, url string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.ShopURL{}).
		Where("canonical_shop_id = ? AND url = ?", canonicalID, url).
		Count(&n).Error
	return n > 0, err
}

func (r *shopURLRepo) RepointCanonical(dbc dbctx.Context, fromID, toID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.ShopURL{}).
		Where("canonical_shop_id = ?", fromID).
		Update("canonical_shop_id", toID).Error
}
