package program

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CouponTypeMultiplier = "multiplier"
	CouponTypeDiscount   = "discount"

	CouponStatusActive   = "active"
	CouponStatusExpired  = "expired"
	CouponStatusDisabled = "disabled"
)

// Coupon boosts a program's earn rate. A nil ShopID applies to every shop and
// a nil ProgramID to every program.
type Coupon struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CouponType  string     `gorm:"column:coupon_type;not null" json:"coupon_type"`
	Value       float64    `gorm:"column:value;not null" json:"value"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Description *string    `gorm:"column:description" json:"description,omitempty"`
	ShopID      *uuid.UUID `gorm:"type:uuid;column:shop_id;index" json:"shop_id,omitempty"`
	ProgramID   *uuid.UUID `gorm:"type:uuid;column:program_id;index" json:"program_id,omitempty"`
	ValidFrom   time.Time  `gorm:"column:valid_from;not null" json:"valid_from"`
	ValidTo     time.Time  `gorm:"column:valid_to;not null;index" json:"valid_to"`
	Status      string     `gorm:"column:status;not null;index" json:"status"`
	Combinable  *bool      `gorm:"column:combinable" json:"combinable,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
}

func (Coupon) TableName() string { return "coupon" }

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CouponStatusActive
	}
	return nil
}
