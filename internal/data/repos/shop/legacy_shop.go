package shop

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type LegacyShopRepo interface {
	Create(dbc dbctx.Context, shops []*types.LegacyShop) ([]*types.LegacyShop, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LegacyShop, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.LegacyShop, error)
	FindByName(dbc dbctx.Context, name string) ([]*types.LegacyShop, error)
	ListByCanonical(dbc dbctx.Context, canonicalID uuid.UUID) ([]*types.LegacyShop, error)
	SetCanonical(dbc dbctx.Context, id uuid.UUID, canonicalID uuid.UUID) error
	RepointCanonical(dbc dbctx.Context, fromID, toID uuid.UUID) (int64, error)
}

type legacyShopRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLegacyShopRepo(db *gorm.DB, baseLog *logger.Logger) LegacyShopRepo {
	return &legacyShopRepo{db: db, log: baseLog.With("repo", "LegacyShopRepo")}
}

func (r *legacyShopRepo) Create(dbc dbctx.Context, shops []*types.LegacyShop) ([]*types.LegacyShop, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(shops) == 0 {
		return []*types.LegacyShop{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&shops).Error; err != nil {
		return nil, err
	}
	return shops, nil
}

func (r *legacyShopRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LegacyShop, error) {
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *legacyShopRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.LegacyShop, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LegacyShop
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

// FindByName matches case-insensitively, oldest handle first.
func (r *legacyShopRepo) FindByName(dbc dbctx.Context, name string) ([]*types.LegacyShop, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LegacyShop
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("lower(name) = ?", name).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *legacyShopRepo) ListByCanonical(dbc dbctx.Context, canonicalID uuid.UUID) ([]*types.LegacyShop, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LegacyShop
	if err := transaction.WithContext(dbc.Ctx).
		Where("canonical_shop_id = ?", canonicalID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *legacyShopRepo) SetCanonical(dbc dbctx.Context, id uuid.UUID, canonicalID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.LegacyShop{}).
		Where("id = ?", id).
		Update("canonical_shop_id", canonicalID).Error
}

func (r *legacyShopRepo) RepointCanonical(dbc dbctx.Context, fromID, toID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.LegacyShop{}).
		Where("canonical_shop_id = ?", fromID).
		Update("canonical_shop_id", toID)
	return res.RowsAffected, res.Error
}
