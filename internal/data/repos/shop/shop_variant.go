package shop

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type ShopVariantRepo interface {
	Create(dbc dbctx.Context, variants []*types.ShopVariant) ([]*types.ShopVariant, error)
	FindBySource(dbc dbctx.Context, source string, sourceID string) ([]*types.ShopVariant, error)
	FindIdentical(dbc dbctx.Context, canonicalID uuid.UUID, source string, sourceID *string, sourceName string) (*types.ShopVariant, error)
	ListByCanonical(dbc dbctx.Context, canonicalID uuid.UUID) ([]*types.ShopVariant, error)
	ListAll(dbc dbctx.Context) ([]*types.ShopVariant, error)
	CountByCanonical(dbc dbctx.Context, canonicalID uuid.UUID) (int64, error)
	UpdateConfidence(dbc dbctx.Context, id uuid.UUID, score float64) error
	RepointCanonical(dbc dbctx.Context, fromID, toID uuid.UUID) (int64, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type shopVariantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewShopVariantRepo(db *gorm.DB, baseLog *logger.Logger) ShopVariantRepo {
	return &shopVariantRepo{db: db, log: baseLog.With("repo", "ShopVariantRepo")}
}

func (r *shopVariantRepo) Create(dbc dbctx.Context, variants []*types.ShopVariant) ([]*types.ShopVariant, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(variants) == 0 {
		return []*types.ShopVariant{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

// FindBySource returns variants carrying the external key, oldest first.
func (r *shopVariantRepo) FindBySource(dbc dbctx.Context, source string, sourceID string) ([]*types.ShopVariant, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ShopVariant
	if source == "" || sourceID == "" {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("source = ? AND source_id = ?", source, sourceID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindIdentical looks up the variant that an incoming record would duplicate.
// Without a source id, the raw source name is the identity.
func (r *shopVariantRepo) FindIdentical(dbc dbctx.Context, canonicalID uuid.UUID, source string, sourceID *string, sourceName string) (*types.ShopVariant, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("canonical_shop_id = ? AND source = ?", canonicalID, source)
	if sourceID != nil {
		q = q.Where("source_id = ?", *sourceID)
	} else {
		q = q.Where("source_id IS NULL AND source_name = ?", sourceName)
	}
	var row types.ShopVariant
	if err := q.Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *shopVariantRepo) ListByCanonical(dbc dbctx.Context, canonicalID uuid.UUID) ([]*types.ShopVariant, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ShopVariant
	if err := transaction.WithContext(dbc.Ctx).
		Where("canonical_shop_id = ?", canonicalID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *shopVariantRepo) ListAll(dbc dbctx.Context) ([]*types.ShopVariant, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ShopVariant
	if err := transaction.WithContext(dbc.Ctx).
		Order("canonical_shop_id ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *shopVariantRepo) CountByCanonical(dbc dbctx.Context, canonicalID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.ShopVariant{}).
		Where("canonical_shop_id = ?", canonicalID).
		Count(&n).Error
	return n, err
}

func (r *shopVariantRepo) UpdateConfidence(dbc dbctx.Context, id uuid.UUID, score float64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.ShopVariant{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"confidence_score": score,
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *shopVariantRepo) RepointCanonical(dbc dbctx.Context, fromID, toID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ShopVariant{}).
		Where("canonical_shop_id = ?", fromID).
		Updates(map[string]interface{}{
			"canonical_shop_id": toID,
			"updated_at":        time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *shopVariantRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.ShopVariant{}).Error
}
