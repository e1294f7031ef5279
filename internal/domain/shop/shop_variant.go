package shop

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShopVariant records one way a source spelled a canonical shop.
type ShopVariant struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CanonicalShopID uuid.UUID `gorm:"type:uuid;column:canonical_shop_id;not null;uniqueIndex:idx_shop_variant_canonical_source,priority:1" json:"canonical_shop_id"`
	Source          string    `gorm:"column:source;not null;uniqueIndex:idx_shop_variant_canonical_source,priority:2;index:idx_shop_variant_source_sid,priority:1" json:"source"`
	SourceName      string    `gorm:"column:source_name;not null" json:"source_name"`
	SourceID        *string   `gorm:"column:source_id;uniqueIndex:idx_shop_variant_canonical_source,priority:3;index:idx_shop_variant_source_sid,priority:2" json:"source_id,omitempty"`
	ConfidenceScore float64   `gorm:"column:confidence_score;not null" json:"confidence_score"`
	CreatedAt       time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

func (ShopVariant) TableName() string { return "shop_variant" }

func (v *ShopVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
