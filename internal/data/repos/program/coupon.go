package program

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	programdomain "github.com/yungbote/bonusfinder-backend/internal/domain/program"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type CouponRepo interface {
	Create(dbc dbctx.Context, coupons []*types.Coupon) ([]*types.Coupon, error)
	ListActiveFor(dbc dbctx.Context, shopIDs []uuid.UUID, at time.Time) ([]*types.Coupon, error)
	ExpireBefore(dbc dbctx.Context, at time.Time) (int64, error)
}

type couponRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCouponRepo(db *gorm.DB, baseLog *logger.Logger) CouponRepo {
	return &couponRepo{db: db, log: baseLog.With("repo", "CouponRepo")}
}

func (r *couponRepo) Create(dbc dbctx.Context, coupons []*types.Coupon) ([]*types.Coupon, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(coupons) == 0 {
		return []*types.Coupon{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

// ListActiveFor returns active coupons valid at the given instant that are
// either global or bound to one of shopIDs.
func (r *couponRepo) ListActiveFor(dbc dbctx.Context, shopIDs []uuid.UUID, at time.Time) ([]*types.Coupon, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Coupon
	q := transaction.WithContext(dbc.Ctx).
		Where("status = ? AND valid_from <= ? AND valid_to >= ?", programdomain.CouponStatusActive, at, at)
	if len(shopIDs) > 0 {
		q = q.Where("(shop_id IS NULL OR shop_id IN ?)", shopIDs)
	} else {
		q = q.Where("shop_id IS NULL")
	}
	if err := q.Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *couponRepo) ExpireBefore(dbc dbctx.Context, at time.Time) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Coupon{}).
		Where("status = ? AND valid_to < ?", programdomain.CouponStatusActive, at).
		Update("status", programdomain.CouponStatusExpired)
	return res.RowsAffected, res.Error
}
