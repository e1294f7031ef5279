package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleViewer      = "viewer"
	RoleUser        = "user"
	RoleContributor = "contributor"
	RoleAdmin       = "admin"

	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusBanned   = "banned"
)

type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null;column:username" json:"username"`
	PasswordHash string         `gorm:"not null;column:password_hash" json:"-"`
	Role         string         `gorm:"not null;column:role" json:"role"`
	Status       string         `gorm:"not null;column:status" json:"status"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	return nil
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// VoteWeight is 3 for admins and 1 for everyone else allowed to vote.
func (u *User) VoteWeight() int {
	if u.IsAdmin() {
		return 3
	}
	return 1
}

// CanVote excludes viewers and accounts that are not active.
func (u *User) CanVote() bool {
	return u != nil && u.Status == StatusActive && u.Role != RoleViewer
}

type UserFavoriteProgram struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;column:user_id;not null;uniqueIndex:idx_user_favorite_program,priority:1" json:"user_id"`
	ProgramID uuid.UUID `gorm:"type:uuid;column:program_id;not null;uniqueIndex:idx_user_favorite_program,priority:2" json:"program_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (UserFavoriteProgram) TableName() string { return "user_favorite_program" }

func (f *UserFavoriteProgram) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
