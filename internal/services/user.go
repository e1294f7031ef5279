package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type UserStatus struct {
	LoggedIn           bool        `json:"logged_in"`
	Username           *string     `json:"username,omitempty"`
	IsAdmin            bool        `json:"is_admin"`
	FavoriteProgramIDs []uuid.UUID `json:"favorite_program_ids"`
	HasFavorites       bool        `json:"has_favorites"`
}

type UserService interface {
	// Status describes the caller; a nil userID yields the anonymous status.
	Status(dbc dbctx.Context, userID *uuid.UUID) (*UserStatus, error)
	AddFavorite(dbc dbctx.Context, userID, programID uuid.UUID) error
	RemoveFavorite(dbc dbctx.Context, userID, programID uuid.UUID) error
}

type userService struct {
	db        *gorm.DB
	log       *logger.Logger
	users     repos.UserRepo
	favorites repos.UserFavoriteProgramRepo
	programs  repos.BonusProgramRepo
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, users repos.UserRepo, favorites repos.UserFavoriteProgramRepo, programs repos.BonusProgramRepo) UserService {
	return &userService{
		db:        db,
		log:       baseLog.With("service", "UserService"),
		users:     users,
		favorites: favorites,
		programs:  programs,
	}
}

func (us *userService) Status(dbc dbctx.Context, userID *uuid.UUID) (*UserStatus, error) {
	out := &UserStatus{FavoriteProgramIDs: []uuid.UUID{}}
	if userID == nil || *userID == uuid.Nil {
		return out, nil
	}
	u, err := us.users.GetByID(dbc, *userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return out, nil
	}
	ids, err := us.favorites.ListProgramIDs(dbc, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	name := u.Username
	out.LoggedIn = true
	out.Username = &name
	out.IsAdmin = u.IsAdmin()
	if len(ids) > 0 {
		out.FavoriteProgramIDs = ids
		out.HasFavorites = true
	}
	return out, nil
}

func (us *userService) AddFavorite(dbc dbctx.Context, userID, programID uuid.UUID) error {
	rows, err := us.programs.GetByIDs(dbc, []uuid.UUID{programID})
	if err != nil {
		return fmt.Errorf("load program: %w", err)
	}
	if len(rows) == 0 {
		return ErrProgramNotFound
	}
	if err := us.favorites.Add(dbc, userID, programID); err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

func (us *userService) RemoveFavorite(dbc dbctx.Context, userID, programID uuid.UUID) error {
	if err := us.favorites.Remove(dbc, userID, programID); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}
