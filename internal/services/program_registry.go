package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/db"
	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type ProgramRegistry interface {
	// EnsureProgram is idempotent. A non-nil pointValueEUR that differs from
	// the stored value replaces it; nil never overwrites.
	EnsureProgram(dbc dbctx.Context, name string, pointValueEUR *float64) (*types.BonusProgram, error)
	EnsureCategory(dbc dbctx.Context, name string) (*types.ShopCategory, error)
}

type programRegistry struct {
	db         *gorm.DB
	log        *logger.Logger
	programs   repos.BonusProgramRepo
	categories repos.ShopCategoryRepo
}

func NewProgramRegistry(db *gorm.DB, baseLog *logger.Logger, programs repos.BonusProgramRepo, categories repos.ShopCategoryRepo) ProgramRegistry {
	return &programRegistry{
		db:         db,
		log:        baseLog.With("service", "ProgramRegistry"),
		programs:   programs,
		categories: categories,
	}
}

func (s *programRegistry) EnsureProgram(dbc dbctx.Context, name string, pointValueEUR *float64) (*types.BonusProgram, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("program name is required")
	}
	if pointValueEUR != nil && *pointValueEUR < 0 {
		return nil, apperr.Invalid("point_value_eur must be >= 0")
	}

	existing, err := s.programs.GetByName(dbc, name)
	if err != nil {
		return nil, fmt.Errorf("load program: %w", err)
	}
	if existing == nil {
		row := &types.BonusProgram{Name: name}
		if pointValueEUR != nil {
			row.PointValueEUR = *pointValueEUR
		}
		err := inTx(dbc, s.db, func(txc dbctx.Context) error {
			_, err := s.programs.Create(txc, []*types.BonusProgram{row})
			return err
		})
		if err == nil {
			s.log.Info("Created bonus program", "program", name, "point_value_eur", row.PointValueEUR)
			return row, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create program: %w", err)
		}
		if existing, err = s.programs.GetByName(dbc, name); err != nil || existing == nil {
			return nil, fmt.Errorf("reload program %q: %w", name, err)
		}
	}

	if pointValueEUR != nil && existing.PointValueEUR != *pointValueEUR {
		if err := s.programs.UpdatePointValue(dbc, existing.ID, *pointValueEUR); err != nil {
			return nil, fmt.Errorf("update point value: %w", err)
		}
		s.log.Info("Updated program point value", "program", name, "from", existing.PointValueEUR, "to", *pointValueEUR)
		existing.PointValueEUR = *pointValueEUR
	}
	return existing, nil
}

func (s *programRegistry) EnsureCategory(dbc dbctx.Context, name string) (*types.ShopCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("category name is required")
	}
	existing, err := s.categories.GetByName(dbc, name)
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	row := &types.ShopCategory{Name: name}
	err = inTx(dbc, s.db, func(txc dbctx.Context) error {
		_, err := s.categories.Create(txc, []*types.ShopCategory{row})
		return err
	})
	if err == nil {
		return row, nil
	}
	if !db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("create category: %w", err)
	}
	existing, gerr := s.categories.GetByName(dbc, name)
	if gerr != nil || existing == nil {
		return nil, fmt.Errorf("reload category %q: %w", name, err)
	}
	return existing, nil
}
