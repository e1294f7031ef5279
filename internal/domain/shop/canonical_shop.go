package shop

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusActive = "active"
	StatusMerged = "merged"
)

// CanonicalShop is the single identity a family of source-reported names
// collapses to. Rows are never deleted; a merge leaves a tombstone pointing at
// the survivor.
type CanonicalShop struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CanonicalName      string     `gorm:"column:canonical_name;not null" json:"canonical_name"`
	CanonicalNameLower string     `gorm:"column:canonical_name_lower;not null;index" json:"canonical_name_lower"`
	Website            *string    `gorm:"column:website" json:"website,omitempty"`
	Logo               *string    `gorm:"column:logo" json:"logo,omitempty"`
	Status             string     `gorm:"column:status;not null;index" json:"status"`
	MergedInto         *uuid.UUID `gorm:"type:uuid;column:merged_into;index" json:"merged_into,omitempty"`
	UpdatedByUserID    *uuid.UUID `gorm:"type:uuid;column:updated_by_user_id" json:"updated_by_user_id,omitempty"`
	CreatedAt          time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null" json:"updated_at"`
}

func (CanonicalShop) TableName() string { return "shop_main" }

func (s *CanonicalShop) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
