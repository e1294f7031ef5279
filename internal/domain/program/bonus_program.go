package program

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BonusProgram is a loyalty scheme. PointValueEUR is the euro value of one
// point and is 0 for cashback-only programs.
type BonusProgram struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	PointValueEUR float64   `gorm:"column:point_value_eur;not null" json:"point_value_eur"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (BonusProgram) TableName() string { return "bonus_program" }

func (p *BonusProgram) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type ShopCategory struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string     `gorm:"column:name;not null;uniqueIndex" json:"name"`
	ParentID  *uuid.UUID `gorm:"type:uuid;column:parent_id;index" json:"parent_id,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
}

func (ShopCategory) TableName() string { return "shop_category" }

func (c *ShopCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
