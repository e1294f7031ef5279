package shop

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LegacyShop is the per-name handle that rate rows hang off. Several handles
// may share one canonical shop.
type LegacyShop struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string     `gorm:"column:name;not null;index" json:"name"`
	CanonicalShopID *uuid.UUID `gorm:"type:uuid;column:canonical_shop_id;index" json:"canonical_shop_id,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
}

func (LegacyShop) TableName() string { return "shops" }

func (s *LegacyShop) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
