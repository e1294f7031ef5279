package program

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RateTypeShopping = "shopping"
	RateTypeContract = "contract"
)

// ShopProgramRate is one validity interval of a shop's earn rate in a program.
// ValidTo == nil marks the open row; archived rows are never edited.
type ShopProgramRate struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ShopID           uuid.UUID  `gorm:"type:uuid;column:shop_id;not null;index:idx_rate_shop_program_valid_to,priority:1" json:"shop_id"`
	ProgramID        uuid.UUID  `gorm:"type:uuid;column:program_id;not null;index:idx_rate_shop_program_valid_to,priority:2" json:"program_id"`
	PointsPerEUR     *float64   `gorm:"column:points_per_eur" json:"points_per_eur,omitempty"`
	PointsAbsolute   *float64   `gorm:"column:points_absolute" json:"points_absolute,omitempty"`
	CashbackPct      *float64   `gorm:"column:cashback_pct" json:"cashback_pct,omitempty"`
	CashbackAbsolute *float64   `gorm:"column:cashback_absolute" json:"cashback_absolute,omitempty"`
	RateNote         *string    `gorm:"column:rate_note" json:"rate_note,omitempty"`
	RateType         string     `gorm:"column:rate_type;not null" json:"rate_type"`
	CategoryID       *uuid.UUID `gorm:"type:uuid;column:category_id;index" json:"category_id,omitempty"`
	ValidFrom        time.Time  `gorm:"column:valid_from;not null" json:"valid_from"`
	ValidTo          *time.Time `gorm:"column:valid_to;index:idx_rate_shop_program_valid_to,priority:3" json:"valid_to,omitempty"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
}

func (ShopProgramRate) TableName() string { return "shop_program_rate" }

func (r *ShopProgramRate) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.RateType == "" {
		r.RateType = RateTypeShopping
	}
	return nil
}

// HasEconomics reports whether any of the four economic fields is set.
func (r *ShopProgramRate) HasEconomics() bool {
	return r.PointsPerEUR != nil || r.PointsAbsolute != nil || r.CashbackPct != nil || r.CashbackAbsolute != nil
}
