package user

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type UserFavoriteProgramRepo interface {
	Add(dbc dbctx.Context, userID, programID uuid.UUID) error
	Remove(dbc dbctx.Context, userID, programID uuid.UUID) error
	ListProgramIDs(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type userFavoriteProgramRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserFavoriteProgramRepo(db *gorm.DB, baseLog *logger.Logger) UserFavoriteProgramRepo {
	return &userFavoriteProgramRepo{db: db, log: baseLog.With("repo", "UserFavoriteProgramRepo")}
}

func (r *userFavoriteProgramRepo) Add(dbc dbctx.Context, userID, programID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&types.UserFavoriteProgram{UserID: userID, ProgramID: programID}).Error
}

func (r *userFavoriteProgramRepo) Remove(dbc dbctx.Context, userID, programID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND program_id = ?", userID, programID).
		Delete(&types.UserFavoriteProgram{}).Error
}

func (r *userFavoriteProgramRepo) ListProgramIDs(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.UserFavoriteProgram
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ProgramID)
	}
	return out, nil
}
