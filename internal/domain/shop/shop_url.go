package shop

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShopURL is an approved alternate address for a canonical shop.
type ShopURL struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CanonicalShopID uuid.UUID  `gorm:"type:uuid;column:canonical_shop_id;not null;index" json:"canonical_shop_id"`
	URL             string     `gorm:"column:url;not null" json:"url"`
	ProposalID      *uuid.UUID `gorm:"type:uuid;column:proposal_id" json:"proposal_id,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
}

func (ShopURL) TableName() string { return "shop_url" }

func (u *ShopURL) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
