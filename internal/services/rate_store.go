package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/db"
	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	programdomain "github.com/yungbote/bonusfinder-backend/internal/domain/program"
	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/pointers"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

// RateWrite is the desired current economics for one (shop, program,
// category) triple.
type RateWrite struct {
	ShopID           uuid.UUID
	ProgramID        uuid.UUID
	CategoryID       *uuid.UUID
	PointsPerEUR     *float64
	PointsAbsolute   *float64
	CashbackPct      *float64
	CashbackAbsolute *float64
	RateType         string
	RateNote         *string
}

func (w RateWrite) hasEconomics() bool {
	return w.PointsPerEUR != nil || w.PointsAbsolute != nil || w.CashbackPct != nil || w.CashbackAbsolute != nil
}

type RateStore interface {
	// Reconcile archives the open rate and inserts w when any economic field
	// differs. Equal economics perform no write.
	Reconcile(dbc dbctx.Context, w RateWrite) (bool, *types.ShopProgramRate, error)
	History(dbc dbctx.Context, shopID, programID uuid.UUID) ([]*types.ShopProgramRate, error)
}

type rateStore struct {
	db    *gorm.DB
	log   *logger.Logger
	rates repos.ShopProgramRateRepo
	now   func() time.Time
}

func NewRateStore(db *gorm.DB, baseLog *logger.Logger, rates repos.ShopProgramRateRepo) RateStore {
	return &rateStore{
		db:    db,
		log:   baseLog.With("service", "RateStore"),
		rates: rates,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func validateRateWrite(w *RateWrite) error {
	if w.ShopID == uuid.Nil || w.ProgramID == uuid.Nil {
		return apperr.Invalid("shop and program are required")
	}
	w.RateType = strings.TrimSpace(w.RateType)
	if w.RateType == "" {
		w.RateType = programdomain.RateTypeShopping
	}
	if w.RateType != programdomain.RateTypeShopping && w.RateType != programdomain.RateTypeContract {
		return apperr.Invalid("rate_type must be shopping or contract")
	}
	for _, f := range []*float64{w.PointsPerEUR, w.PointsAbsolute, w.CashbackPct, w.CashbackAbsolute} {
		if f != nil && *f < 0 {
			return apperr.Invalid("rate values must be >= 0")
		}
	}
	if !w.hasEconomics() && (w.RateNote == nil || strings.TrimSpace(*w.RateNote) == "") {
		return apperr.Invalid("rate has no economic fields")
	}
	return nil
}

func (s *rateStore) Reconcile(dbc dbctx.Context, w RateWrite) (bool, *types.ShopProgramRate, error) {
	if err := validateRateWrite(&w); err != nil {
		return false, nil, err
	}
	changed, row, err := s.reconcileOnce(dbc, w)
	if err != nil && db.IsUniqueViolation(err) {
		s.log.Warn("Open rate conflict, retrying", "shop_id", w.ShopID, "program_id", w.ProgramID)
		changed, row, err = s.reconcileOnce(dbc, w)
		if err != nil && db.IsUniqueViolation(err) {
			return false, nil, fmt.Errorf("%w: %v", ErrConcurrentRateWrite, err)
		}
	}
	if err != nil {
		return false, nil, err
	}
	return changed, row, nil
}

func (s *rateStore) reconcileOnce(dbc dbctx.Context, w RateWrite) (bool, *types.ShopProgramRate, error) {
	var (
		changed bool
		out     *types.ShopProgramRate
	)
	err := inTx(dbc, s.db, func(txc dbctx.Context) error {
		open, err := s.rates.LockOpen(txc, w.ShopID, w.ProgramID, w.CategoryID)
		if err != nil {
			return fmt.Errorf("lock open rate: %w", err)
		}
		if open != nil && sameEconomics(open, w) {
			out = open
			return nil
		}
		now := s.now()
		if open != nil {
			if err := s.rates.Archive(txc, open.ID, now); err != nil {
				return fmt.Errorf("archive rate: %w", err)
			}
		}
		row := &types.ShopProgramRate{
			ShopID:           w.ShopID,
			ProgramID:        w.ProgramID,
			CategoryID:       w.CategoryID,
			PointsPerEUR:     w.PointsPerEUR,
			PointsAbsolute:   w.PointsAbsolute,
			CashbackPct:      w.CashbackPct,
			CashbackAbsolute: w.CashbackAbsolute,
			RateType:         w.RateType,
			RateNote:         w.RateNote,
			ValidFrom:        now,
		}
		if _, err := s.rates.Create(txc, []*types.ShopProgramRate{row}); err != nil {
			return err
		}
		changed, out = true, row
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return changed, out, nil
}

func sameEconomics(open *types.ShopProgramRate, w RateWrite) bool {
	return pointers.EqualFloat(open.PointsPerEUR, w.PointsPerEUR) &&
		pointers.EqualFloat(open.PointsAbsolute, w.PointsAbsolute) &&
		pointers.EqualFloat(open.CashbackPct, w.CashbackPct) &&
		pointers.EqualFloat(open.CashbackAbsolute, w.CashbackAbsolute)
}

func (s *rateStore) History(dbc dbctx.Context, shopID, programID uuid.UUID) ([]*types.ShopProgramRate, error) {
	rows, err := s.rates.ListHistory(dbc, shopID, programID)
	if err != nil {
		return nil, fmt.Errorf("list rate history: %w", err)
	}
	return rows, nil
}
