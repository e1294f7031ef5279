package shop

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	shopdomain "github.com/yungbote/bonusfinder-backend/internal/domain/shop"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type CanonicalShopRepo interface {
	Create(dbc dbctx.Context, shops []*types.CanonicalShop) ([]*types.CanonicalShop, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CanonicalShop, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.CanonicalShop, error)
	LockByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.CanonicalShop, error)
	ListActive(dbc dbctx.Context) ([]*types.CanonicalShop, error)
	ListAll(dbc dbctx.Context) ([]*types.CanonicalShop, error)
	SearchActiveByName(dbc dbctx.Context, q string, limit int) ([]*types.CanonicalShop, error)
	GetActiveByLowerName(dbc dbctx.Context, lower string) (*types.CanonicalShop, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	RepointMerged(dbc dbctx.Context, fromID, toID uuid.UUID) (int64, error)
}

type canonicalShopRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCanonicalShopRepo(db *gorm.DB, baseLog *logger.Logger) CanonicalShopRepo {
	return &canonicalShopRepo{db: db, log: baseLog.With("repo", "CanonicalShopRepo")}
}

func (r *canonicalShopRepo) Create(dbc dbctx.Context, shops []*types.CanonicalShop) ([]*types.CanonicalShop, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(shops) == 0 {
		return []*types.CanonicalShop{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&shops).Error; err != nil {
		return nil, err
	}
	return shops, nil
}

func (r *canonicalShopRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CanonicalShop, error) {
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *canonicalShopRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.CanonicalShop, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CanonicalShop
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

// LockByIDs takes row locks in id order so concurrent merges cannot deadlock.
func (r *canonicalShopRepo) LockByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.CanonicalShop, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CanonicalShop
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *canonicalShopRepo) ListActive(dbc dbctx.Context) ([]*types.CanonicalShop, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CanonicalShop
	if err := transaction.WithContext(dbc.Ctx).
		Where("status = ?", shopdomain.StatusActive).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll includes merged rows, oldest first.
func (r *canonicalShopRepo) ListAll(dbc dbctx.Context) ([]*types.CanonicalShop, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CanonicalShop
	if err := transaction.WithContext(dbc.Ctx).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *canonicalShopRepo) SearchActiveByName(dbc dbctx.Context, q string, limit int) ([]*types.CanonicalShop, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 30
	}
	var out []*types.CanonicalShop
	query := transaction.WithContext(dbc.Ctx).
		Where("status = ?", shopdomain.StatusActive)
	if q = strings.ToLower(strings.TrimSpace(q)); q != "" {
		query = query.Where(`canonical_name_lower LIKE ? ESCAPE '\'`, "%"+escapeLike(q)+"%")
	}
	if err := query.
		Order("canonical_name_lower ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *canonicalShopRepo) GetActiveByLowerName(dbc dbctx.Context, lower string) (*types.CanonicalShop, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.CanonicalShop
	err := transaction.WithContext(dbc.Ctx).
		Where("canonical_name_lower = ? AND status = ?", lower, shopdomain.StatusActive).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *canonicalShopRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.CanonicalShop{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// RepointMerged moves tombstones that pointed at fromID to toID so merge
// chains stay one hop long.
func (r *canonicalShopRepo) RepointMerged(dbc dbctx.Context, fromID, toID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.CanonicalShop{}).
		Where("merged_into = ?", fromID).
		Updates(map[string]interface{}{
			"merged_into": toID,
			"updated_at":  time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
