package proposal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TypeRateChange   = "rate_change"
	TypeShopAdd      = "shop_add"
	TypeProgramAdd   = "program_add"
	TypeCouponAdd    = "coupon_add"
	TypeMetadataEdit = "metadata_edit"
	TypeMergeRequest = "merge_request"
	TypeURL          = "url"

	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"

	SourceUser             = "user"
	SourceScraper          = "scraper"
	SourceBrowserExtension = "browser_extension"
)

// Proposal is a community edit waiting for votes or an admin decision.
type Proposal struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProposalType string    `gorm:"column:proposal_type;not null;index" json:"proposal_type"`
	Status       string    `gorm:"column:status;not null;index" json:"status"`
	Source       string    `gorm:"column:source;not null" json:"source"`
	UserID       uuid.UUID `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`

	ShopID        *uuid.UUID `gorm:"type:uuid;column:shop_id;index" json:"shop_id,omitempty"`
	ProgramID     *uuid.UUID `gorm:"type:uuid;column:program_id;index" json:"program_id,omitempty"`
	ShopMainID    *uuid.UUID `gorm:"type:uuid;column:shop_main_id;index" json:"shop_main_id,omitempty"`
	MergeSourceID *uuid.UUID `gorm:"type:uuid;column:merge_source_id" json:"merge_source_id,omitempty"`
	MergeTargetID *uuid.UUID `gorm:"type:uuid;column:merge_target_id" json:"merge_target_id,omitempty"`

	ProposedPointsPerEUR     *float64 `gorm:"column:proposed_points_per_eur" json:"proposed_points_per_eur,omitempty"`
	ProposedPointsAbsolute   *float64 `gorm:"column:proposed_points_absolute" json:"proposed_points_absolute,omitempty"`
	ProposedCashbackPct      *float64 `gorm:"column:proposed_cashback_pct" json:"proposed_cashback_pct,omitempty"`
	ProposedCashbackAbsolute *float64 `gorm:"column:proposed_cashback_absolute" json:"proposed_cashback_absolute,omitempty"`
	ProposedRateType         *string  `gorm:"column:proposed_rate_type" json:"proposed_rate_type,omitempty"`
	ProposedRateNote         *string  `gorm:"column:proposed_rate_note" json:"proposed_rate_note,omitempty"`

	ProposedName          *string  `gorm:"column:proposed_name" json:"proposed_name,omitempty"`
	ProposedWebsite       *string  `gorm:"column:proposed_website" json:"proposed_website,omitempty"`
	ProposedLogo          *string  `gorm:"column:proposed_logo" json:"proposed_logo,omitempty"`
	ProposedPointValueEUR *float64 `gorm:"column:proposed_point_value_eur" json:"proposed_point_value_eur,omitempty"`

	ProposedCouponType        *string    `gorm:"column:proposed_coupon_type" json:"proposed_coupon_type,omitempty"`
	ProposedCouponValue       *float64   `gorm:"column:proposed_coupon_value" json:"proposed_coupon_value,omitempty"`
	ProposedCouponName        *string    `gorm:"column:proposed_coupon_name" json:"proposed_coupon_name,omitempty"`
	ProposedCouponDescription *string    `gorm:"column:proposed_coupon_description" json:"proposed_coupon_description,omitempty"`
	ProposedCouponValidTo     *time.Time `gorm:"column:proposed_coupon_valid_to" json:"proposed_coupon_valid_to,omitempty"`
	ProposedCouponCombinable  *bool      `gorm:"column:proposed_coupon_combinable" json:"proposed_coupon_combinable,omitempty"`

	Reason          *string `gorm:"column:reason" json:"reason,omitempty"`
	SourceURL       *string `gorm:"column:source_url" json:"source_url,omitempty"`
	RejectionReason *string `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`

	ApprovedAt       *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
	ApprovedBySystem bool       `gorm:"column:approved_by_system;not null" json:"approved_by_system"`
	ApprovedByUserID *uuid.UUID `gorm:"type:uuid;column:approved_by_user_id" json:"approved_by_user_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Proposal) TableName() string { return "proposal" }

func (p *Proposal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if p.Source == "" {
		p.Source = SourceUser
	}
	return nil
}
