package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/db"
	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	programdomain "github.com/yungbote/bonusfinder-backend/internal/domain/program"
	proposaldomain "github.com/yungbote/bonusfinder-backend/internal/domain/proposal"
	shopdomain "github.com/yungbote/bonusfinder-backend/internal/domain/shop"
	"github.com/yungbote/bonusfinder-backend/internal/events"
	"github.com/yungbote/bonusfinder-backend/internal/observability"
	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/pointers"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/validate"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

const defaultCouponLifetime = 30 * 24 * time.Hour

type ProposalInput struct {
	ProposalType string     `json:"proposal_type" validate:"required,oneof=rate_change shop_add program_add coupon_add metadata_edit merge_request url"`
	Source       string     `json:"source,omitempty" validate:"omitempty,oneof=user scraper browser_extension"`
	ShopID       *uuid.UUID `json:"shop_id,omitempty"`
	ProgramID    *uuid.UUID `json:"program_id,omitempty"`
	ShopMainID   *uuid.UUID `json:"shop_main_id,omitempty"`

	MergeSourceID *uuid.UUID `json:"merge_source_id,omitempty"`
	MergeTargetID *uuid.UUID `json:"merge_target_id,omitempty"`

	PointsPerEUR     *float64 `json:"points_per_eur,omitempty" validate:"omitempty,gte=0"`
	PointsAbsolute   *float64 `json:"points_absolute,omitempty" validate:"omitempty,gte=0"`
	CashbackPct      *float64 `json:"cashback_pct,omitempty" validate:"omitempty,gte=0,lte=100"`
	CashbackAbsolute *float64 `json:"cashback_absolute,omitempty" validate:"omitempty,gte=0"`
	RateType         *string  `json:"rate_type,omitempty" validate:"omitempty,oneof=shopping contract"`
	RateNote         *string  `json:"rate_note,omitempty" validate:"omitempty,max=500"`

	Name           *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Website        *string  `json:"website,omitempty" validate:"omitempty,url"`
	Logo           *string  `json:"logo,omitempty" validate:"omitempty,url"`
	PointValueEUR  *float64 `json:"point_value_eur,omitempty"`
	PointValueMode string   `json:"point_value_mode,omitempty"`

	CouponType        *string    `json:"coupon_type,omitempty" validate:"omitempty,oneof=multiplier discount"`
	CouponValue       *float64   `json:"coupon_value,omitempty" validate:"omitempty,gt=0"`
	CouponName        *string    `json:"coupon_name,omitempty" validate:"omitempty,max=200"`
	CouponDescription *string    `json:"coupon_description,omitempty"`
	CouponValidTo     *time.Time `json:"coupon_valid_to,omitempty"`
	CouponCombinable  *bool      `json:"coupon_combinable,omitempty"`

	Reason    *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
	SourceURL *string `json:"source_url,omitempty" validate:"omitempty,url"`
}

const (
	PointValueEURPerPoint  = "eur_per_point"
	PointValuePointsPerEUR = "points_per_eur"
)

// NormalizePointValue converts a submitted program value to euros per point.
// An empty mode means eur_per_point.
func NormalizePointValue(value float64, mode string) (float64, error) {
	if value <= 0 {
		return 0, apperr.Invalid("point_value_eur must be > 0")
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", PointValueEURPerPoint:
		return value, nil
	case PointValuePointsPerEUR:
		return 1 / value, nil
	default:
		return 0, apperr.Invalid("point_value_mode must be eur_per_point or points_per_eur")
	}
}

type VoteResult struct {
	Proposal     *types.Proposal `json:"proposal"`
	Tally        int             `json:"tally"`
	AutoApproved bool            `json:"auto_approved"`
}

type ProposalService interface {
	Create(dbc dbctx.Context, userID uuid.UUID, in ProposalInput) (*types.Proposal, error)
	CreateURLProposal(dbc dbctx.Context, userID, shopID uuid.UUID, url string) (*types.Proposal, bool, error)
	Vote(dbc dbctx.Context, proposalID, voterID uuid.UUID, vote int) (*VoteResult, error)
	Approve(dbc dbctx.Context, proposalID, adminID uuid.UUID) (*types.Proposal, error)
	Reject(dbc dbctx.Context, proposalID, adminID uuid.UUID, reason string) (*types.Proposal, error)
	Get(dbc dbctx.Context, proposalID uuid.UUID) (*types.Proposal, error)
	ListPending(dbc dbctx.Context, f repos.ProposalListFilter) ([]*types.Proposal, error)
	AuditTrail(dbc dbctx.Context, proposalID uuid.UUID) ([]*types.ProposalAuditLog, error)
}

type proposalService struct {
	db        *gorm.DB
	log       *logger.Logger
	proposals repos.ProposalRepo
	votes     repos.ProposalVoteRepo
	audit     repos.ProposalAuditLogRepo
	users     repos.UserRepo
	shops     repos.CanonicalShopRepo
	legacy    repos.LegacyShopRepo
	urls      repos.ShopURLRepo
	programs  repos.BonusProgramRepo
	coupons   repos.CouponRepo
	identity  ShopIdentityService
	registry  ProgramRegistry
	rates     RateStore
	publisher events.Publisher
	now       func() time.Time
}

type ProposalServiceDeps struct {
	Proposals repos.ProposalRepo
	Votes     repos.ProposalVoteRepo
	Audit     repos.ProposalAuditLogRepo
	Users     repos.UserRepo
	Shops     repos.CanonicalShopRepo
	Legacy    repos.LegacyShopRepo
	URLs      repos.ShopURLRepo
	Programs  repos.BonusProgramRepo
	Coupons   repos.CouponRepo
	Identity  ShopIdentityService
	Registry  ProgramRegistry
	Rates     RateStore
	Publisher events.Publisher
}

func NewProposalService(db *gorm.DB, baseLog *logger.Logger, deps ProposalServiceDeps) ProposalService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &proposalService{
		db:        db,
		log:       baseLog.With("service", "ProposalService"),
		proposals: deps.Proposals,
		votes:     deps.Votes,
		audit:     deps.Audit,
		users:     deps.Users,
		shops:     deps.Shops,
		legacy:    deps.Legacy,
		urls:      deps.URLs,
		programs:  deps.Programs,
		coupons:   deps.Coupons,
		identity:  deps.Identity,
		registry:  deps.Registry,
		rates:     deps.Rates,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *proposalService) Create(dbc dbctx.Context, userID uuid.UUID, in ProposalInput) (*types.Proposal, error) {
	if userID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	if in.PointValueEUR != nil {
		v, err := NormalizePointValue(*in.PointValueEUR, in.PointValueMode)
		if err != nil {
			return nil, err
		}
		in.PointValueEUR = &v
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	trimPtr(&in.Name)
	trimPtr(&in.RateNote)
	trimPtr(&in.CouponName)
	trimPtr(&in.Reason)

	p := &types.Proposal{
		ProposalType: in.ProposalType,
		Status:       proposaldomain.StatusPending,
		Source:       in.Source,
		UserID:       userID,
		Reason:       in.Reason,
		SourceURL:    in.SourceURL,
	}
	err := inTx(dbc, s.db, func(txc dbctx.Context) error {
		if err := s.fillByType(txc, p, in); err != nil {
			return err
		}
		if _, err := s.proposals.Create(txc, []*types.Proposal{p}); err != nil {
			return fmt.Errorf("create proposal: %w", err)
		}
		return s.writeAudit(txc, p.ID, proposaldomain.AuditCreated, &userID, map[string]any{"proposal_type": p.ProposalType})
	})
	if err != nil {
		return nil, err
	}
	observability.Current().IncProposal(p.ProposalType, proposaldomain.AuditCreated)
	s.log.Info("Proposal created", "proposal_id", p.ID, "proposal_type", p.ProposalType, "user_id", userID)
	return p, nil
}

// fillByType validates the type-specific fields of in and copies them onto p.
func (s *proposalService) fillByType(dbc dbctx.Context, p *types.Proposal, in ProposalInput) error {
	switch in.ProposalType {
	case proposaldomain.TypeRateChange:
		if in.ShopID == nil || in.ProgramID == nil {
			return apperr.Invalid("rate_change requires shop_id and program_id")
		}
		if in.PointsPerEUR == nil && in.PointsAbsolute == nil && in.CashbackPct == nil && in.CashbackAbsolute == nil {
			return apperr.Invalid("rate_change requires at least one rate value")
		}
		if err := s.requireProgram(dbc, *in.ProgramID); err != nil {
			return err
		}
		handleID, err := s.rateHandleFor(dbc, *in.ShopID)
		if err != nil {
			return err
		}
		dup, err := s.proposals.FindPendingRateChange(dbc, p.UserID, handleID, *in.ProgramID)
		if err != nil {
			return fmt.Errorf("check duplicate proposal: %w", err)
		}
		if dup != nil {
			return ErrDuplicateProposal
		}
		p.ShopID = &handleID
		p.ProgramID = in.ProgramID
		p.ProposedPointsPerEUR = in.PointsPerEUR
		p.ProposedPointsAbsolute = in.PointsAbsolute
		p.ProposedCashbackPct = in.CashbackPct
		p.ProposedCashbackAbsolute = in.CashbackAbsolute
		p.ProposedRateType = in.RateType
		p.ProposedRateNote = in.RateNote

	case proposaldomain.TypeShopAdd:
		if pointers.Deref(in.Name) == "" {
			return apperr.Invalid("shop_add requires name")
		}
		p.ProposedName = in.Name
		p.ProposedWebsite = in.Website
		p.ProposedLogo = in.Logo

	case proposaldomain.TypeProgramAdd:
		if pointers.Deref(in.Name) == "" {
			return apperr.Invalid("program_add requires name")
		}
		p.ProposedName = in.Name
		p.ProposedPointValueEUR = in.PointValueEUR

	case proposaldomain.TypeCouponAdd:
		if in.CouponType == nil || in.CouponValue == nil || pointers.Deref(in.CouponName) == "" {
			return apperr.Invalid("coupon_add requires coupon_type, coupon_value and coupon_name")
		}
		if in.ProgramID != nil {
			if err := s.requireProgram(dbc, *in.ProgramID); err != nil {
				return err
			}
		}
		if in.CouponValidTo != nil && !in.CouponValidTo.After(s.now()) {
			return apperr.Invalid("coupon_valid_to must be in the future")
		}
		p.ShopID = in.ShopID
		p.ProgramID = in.ProgramID
		p.ProposedCouponType = in.CouponType
		p.ProposedCouponValue = in.CouponValue
		p.ProposedCouponName = in.CouponName
		p.ProposedCouponDescription = in.CouponDescription
		p.ProposedCouponValidTo = in.CouponValidTo
		p.ProposedCouponCombinable = in.CouponCombinable

	case proposaldomain.TypeMetadataEdit:
		if in.ShopMainID == nil {
			return apperr.Invalid("metadata_edit requires shop_main_id")
		}
		if in.Name == nil && in.Website == nil && in.Logo == nil {
			return apperr.Invalid("metadata_edit requires name, website or logo")
		}
		if _, err := s.requireActiveCanonical(dbc, *in.ShopMainID); err != nil {
			return err
		}
		p.ShopMainID = in.ShopMainID
		p.ProposedName = in.Name
		p.ProposedWebsite = in.Website
		p.ProposedLogo = in.Logo

	case proposaldomain.TypeMergeRequest:
		if in.MergeSourceID == nil || in.MergeTargetID == nil {
			return apperr.Invalid("merge_request requires merge_source_id and merge_target_id")
		}
		if *in.MergeSourceID == *in.MergeTargetID {
			return ErrSelfMerge
		}
		for _, id := range []uuid.UUID{*in.MergeSourceID, *in.MergeTargetID} {
			if _, err := s.requireActiveCanonical(dbc, id); err != nil {
				return err
			}
		}
		p.MergeSourceID = in.MergeSourceID
		p.MergeTargetID = in.MergeTargetID

	case proposaldomain.TypeURL:
		if in.ShopMainID == nil || pointers.Deref(in.SourceURL) == "" {
			return apperr.Invalid("url requires shop_main_id and source_url")
		}
		if _, err := s.requireActiveCanonical(dbc, *in.ShopMainID); err != nil {
			return err
		}
		p.ShopMainID = in.ShopMainID
	}
	return nil
}

func (s *proposalService) requireProgram(dbc dbctx.Context, id uuid.UUID) error {
	rows, err := s.programs.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return fmt.Errorf("load program: %w", err)
	}
	if len(rows) == 0 {
		return ErrProgramNotFound
	}
	return nil
}

func (s *proposalService) requireActiveCanonical(dbc dbctx.Context, id uuid.UUID) (*types.CanonicalShop, error) {
	row, err := s.shops.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load shop: %w", err)
	}
	if row == nil {
		return nil, ErrShopNotFound
	}
	if row.Status != shopdomain.StatusActive {
		return nil, ErrShopAlreadyMerged
	}
	return row, nil
}

// rateHandleFor maps a shop id to the legacy handle rates are stored under. A
// canonical id resolves to its oldest handle, creating one named after the
// canonical when none exists.
func (s *proposalService) rateHandleFor(dbc dbctx.Context, shopID uuid.UUID) (uuid.UUID, error) {
	handle, err := s.legacy.GetByID(dbc, shopID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load shop: %w", err)
	}
	if handle != nil {
		return handle.ID, nil
	}
	canonical, err := s.identity.ResolveCanonical(dbc, shopID)
	if err != nil {
		return uuid.Nil, err
	}
	siblings, err := s.legacy.ListByCanonical(dbc, canonical.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("list shop handles: %w", err)
	}
	if len(siblings) > 0 {
		return siblings[0].ID, nil
	}
	h := &types.LegacyShop{Name: canonical.CanonicalName, CanonicalShopID: &canonical.ID}
	if _, err := s.legacy.Create(dbc, []*types.LegacyShop{h}); err != nil {
		return uuid.Nil, fmt.Errorf("create shop handle: %w", err)
	}
	return h.ID, nil
}

func (s *proposalService) CreateURLProposal(dbc dbctx.Context, userID, shopID uuid.UUID, url string) (*types.Proposal, bool, error) {
	if userID == uuid.Nil {
		return nil, false, apperr.ErrUnauthorized
	}
	url = strings.TrimSpace(url)
	if err := validate.Var(url, "required,url"); err != nil {
		return nil, false, apperr.Invalid("url must be an absolute URL")
	}
	var (
		out     *types.Proposal
		created bool
	)
	err := inTx(dbc, s.db, func(txc dbctx.Context) error {
		canonical, err := s.identity.ResolveCanonical(txc, shopID)
		if err != nil {
			return err
		}
		existing, err := s.proposals.FindURLProposal(txc, canonical.ID, url)
		if err != nil {
			return fmt.Errorf("find url proposal: %w", err)
		}
		if existing != nil {
			out = existing
			return nil
		}
		p := &types.Proposal{
			ProposalType: proposaldomain.TypeURL,
			Status:       proposaldomain.StatusPending,
			Source:       proposaldomain.SourceBrowserExtension,
			UserID:       userID,
			ShopMainID:   &canonical.ID,
			SourceURL:    &url,
		}
		if _, err := s.proposals.Create(txc, []*types.Proposal{p}); err != nil {
			return fmt.Errorf("create url proposal: %w", err)
		}
		if err := s.writeAudit(txc, p.ID, proposaldomain.AuditCreated, &userID, map[string]any{"proposal_type": p.ProposalType, "url": url}); err != nil {
			return err
		}
		out, created = p, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		observability.Current().IncProposal(proposaldomain.TypeURL, proposaldomain.AuditCreated)
	}
	return out, created, nil
}

func (s *proposalService) Vote(dbc dbctx.Context, proposalID, voterID uuid.UUID, vote int) (*VoteResult, error) {
	if vote != 1 && vote != -1 {
		return nil, apperr.Invalid("vote must be 1 or -1")
	}
	result := &VoteResult{}
	var evs []events.Event
	err := inTx(dbc, s.db, func(txc dbctx.Context) error {
		voter, err := s.users.GetByID(txc, voterID)
		if err != nil {
			return fmt.Errorf("load voter: %w", err)
		}
		if voter == nil {
			return apperr.ErrUnauthorized
		}
		if !voter.CanVote() {
			return ErrCannotVote
		}
		p, err := s.proposals.LockByID(txc, proposalID)
		if err != nil {
			return fmt.Errorf("lock proposal: %w", err)
		}
		if p == nil {
			return ErrProposalNotFound
		}
		if p.UserID == voterID {
			return ErrCannotVote
		}
		if p.Status != proposaldomain.StatusPending {
			return ErrProposalNotPending
		}

		weight := voter.VoteWeight()
		if err := s.votes.Upsert(txc, &types.ProposalVote{
			ProposalID: p.ID,
			VoterID:    voterID,
			Vote:       vote,
			VoteWeight: weight,
		}); err != nil {
			return fmt.Errorf("record vote: %w", err)
		}
		if err := s.writeAudit(txc, p.ID, proposaldomain.AuditVoted, &voterID, map[string]any{"vote": vote, "weight": weight}); err != nil {
			return err
		}

		tally, err := s.votes.SumPositiveWeight(txc, p.ID)
		if err != nil {
			return fmt.Errorf("tally votes: %w", err)
		}
		result.Tally = tally
		if tally >= proposaldomain.Quorum {
			evs, err = s.approveLocked(txc, p, nil, tally)
			if err != nil {
				return err
			}
			result.AutoApproved = true
		}
		result.Proposal = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.Current().IncProposal(result.Proposal.ProposalType, proposaldomain.AuditVoted)
	s.publish(dbc, evs)
	return result, nil
}

func (s *proposalService) Approve(dbc dbctx.Context, proposalID, adminID uuid.UUID) (*types.Proposal, error) {
	var (
		out *types.Proposal
		evs []events.Event
	)
	err := inTx(dbc, s.db, func(txc dbctx.Context) error {
		if err := s.requireAdmin(txc, adminID); err != nil {
			return err
		}
		p, err := s.proposals.LockByID(txc, proposalID)
		if err != nil {
			return fmt.Errorf("lock proposal: %w", err)
		}
		if p == nil {
			return ErrProposalNotFound
		}
		if p.Status != proposaldomain.StatusPending {
			return ErrProposalNotPending
		}
		tally, err := s.votes.SumPositiveWeight(txc, p.ID)
		if err != nil {
			return fmt.Errorf("tally votes: %w", err)
		}
		evs, err = s.approveLocked(txc, p, &adminID, tally)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(dbc, evs)
	return out, nil
}

func (s *proposalService) Reject(dbc dbctx.Context, proposalID, adminID uuid.UUID, reason string) (*types.Proposal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Invalid("a rejection reason is required")
	}
	var out *types.Proposal
	err := inTx(dbc, s.db, func(txc dbctx.Context) error {
		if err := s.requireAdmin(txc, adminID); err != nil {
			return err
		}
		p, err := s.proposals.LockByID(txc, proposalID)
		if err != nil {
			return fmt.Errorf("lock proposal: %w", err)
		}
		if p == nil {
			return ErrProposalNotFound
		}
		if p.Status != proposaldomain.StatusPending {
			return ErrProposalNotPending
		}
		if err := s.proposals.UpdateFields(txc, p.ID, map[string]interface{}{
			"status":           proposaldomain.StatusRejected,
			"rejection_reason": reason,
		}); err != nil {
			return fmt.Errorf("reject proposal: %w", err)
		}
		if err := s.writeAudit(txc, p.ID, proposaldomain.AuditRejected, &adminID, map[string]any{"reason": reason}); err != nil {
			return err
		}
		p.Status = proposaldomain.StatusRejected
		p.RejectionReason = &reason
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.Current().IncProposal(out.ProposalType, proposaldomain.AuditRejected)
	s.log.Info("Proposal rejected", "proposal_id", proposalID, "actor_id", adminID)
	return out, nil
}

func (s *proposalService) requireAdmin(dbc dbctx.Context, userID uuid.UUID) error {
	u, err := s.users.GetByID(dbc, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return apperr.ErrUnauthorized
	}
	if !u.IsAdmin() {
		return apperr.Forbidden("admin role required")
	}
	return nil
}

// approveLocked applies the proposal's effect and flips it to approved. The
// caller holds the proposal row lock. approverID nil means quorum approval.
func (s *proposalService) approveLocked(dbc dbctx.Context, p *types.Proposal, approverID *uuid.UUID, tally int) ([]events.Event, error) {
	evs, err := s.applyEffect(dbc, p, approverID)
	if err != nil {
		return nil, fmt.Errorf("apply %s proposal: %w", p.ProposalType, err)
	}
	now := s.now()
	bySystem := approverID == nil
	if err := s.proposals.UpdateFields(dbc, p.ID, map[string]interface{}{
		"status":              proposaldomain.StatusApproved,
		"approved_at":         now,
		"approved_by_system":  bySystem,
		"approved_by_user_id": approverID,
	}); err != nil {
		return nil, fmt.Errorf("approve proposal: %w", err)
	}
	if err := s.writeAudit(dbc, p.ID, proposaldomain.AuditApproved, approverID, map[string]any{
		"by_system": bySystem,
		"tally":     tally,
	}); err != nil {
		return nil, err
	}
	p.Status = proposaldomain.StatusApproved
	p.ApprovedAt = &now
	p.ApprovedBySystem = bySystem
	p.ApprovedByUserID = approverID

	observability.Current().IncProposal(p.ProposalType, proposaldomain.AuditApproved)
	s.log.Info("Proposal approved", "proposal_id", p.ID, "proposal_type", p.ProposalType, "by_system", bySystem, "tally", tally)
	evs = append(evs, events.New(events.TypeProposalApproved, p.ID.String(), map[string]any{
		"proposal_id":   p.ID.String(),
		"proposal_type": p.ProposalType,
		"by_system":     bySystem,
		"tally":         tally,
	}))
	return evs, nil
}

func (s *proposalService) applyEffect(dbc dbctx.Context, p *types.Proposal, approverID *uuid.UUID) ([]events.Event, error) {
	switch p.ProposalType {
	case proposaldomain.TypeRateChange:
		if p.ShopID == nil || p.ProgramID == nil {
			return nil, apperr.Invalid("rate_change proposal lacks shop or program")
		}
		changed, row, err := s.rates.Reconcile(dbc, RateWrite{
			ShopID:           *p.ShopID,
			ProgramID:        *p.ProgramID,
			PointsPerEUR:     p.ProposedPointsPerEUR,
			PointsAbsolute:   p.ProposedPointsAbsolute,
			CashbackPct:      p.ProposedCashbackPct,
			CashbackAbsolute: p.ProposedCashbackAbsolute,
			RateType:         pointers.Deref(p.ProposedRateType),
			RateNote:         p.ProposedRateNote,
		})
		if err != nil {
			return nil, err
		}
		if changed {
			return []events.Event{rateChangedEvent(row, "proposal:"+p.ID.String())}, nil
		}
		return nil, nil

	case proposaldomain.TypeShopAdd:
		sourceID := "proposal:" + p.ID.String()
		ident, err := s.identity.GetOrCreateCanonical(dbc, pointers.Deref(p.ProposedName), proposaldomain.SourceUser, &sourceID)
		if err != nil {
			return nil, err
		}
		if ident.Created && (p.ProposedWebsite != nil || p.ProposedLogo != nil) {
			updates := map[string]interface{}{}
			if p.ProposedWebsite != nil {
				updates["website"] = *p.ProposedWebsite
			}
			if p.ProposedLogo != nil {
				updates["logo"] = *p.ProposedLogo
			}
			if err := s.shops.UpdateFields(dbc, ident.Canonical.ID, updates); err != nil {
				return nil, fmt.Errorf("set shop metadata: %w", err)
			}
		}
		return nil, nil

	case proposaldomain.TypeProgramAdd:
		_, err := s.registry.EnsureProgram(dbc, pointers.Deref(p.ProposedName), p.ProposedPointValueEUR)
		return nil, err

	case proposaldomain.TypeCouponAdd:
		now := s.now()
		validTo := now.Add(defaultCouponLifetime)
		if p.ProposedCouponValidTo != nil {
			validTo = p.ProposedCouponValidTo.UTC()
		}
		combinable := pointers.Deref(p.ProposedCouponCombinable)
		c := &types.Coupon{
			CouponType:  pointers.Deref(p.ProposedCouponType),
			Value:       pointers.Deref(p.ProposedCouponValue),
			Name:        pointers.Deref(p.ProposedCouponName),
			Description: p.ProposedCouponDescription,
			ShopID:      p.ShopID,
			ProgramID:   p.ProgramID,
			ValidFrom:   now,
			ValidTo:     validTo,
			Status:      programdomain.CouponStatusActive,
			Combinable:  &combinable,
		}
		if _, err := s.coupons.Create(dbc, []*types.Coupon{c}); err != nil {
			return nil, fmt.Errorf("create coupon: %w", err)
		}
		return nil, nil

	case proposaldomain.TypeMetadataEdit:
		if p.ShopMainID == nil {
			return nil, apperr.Invalid("metadata_edit proposal lacks shop")
		}
		if _, err := s.requireActiveCanonical(dbc, *p.ShopMainID); err != nil {
			return nil, err
		}
		updates := map[string]interface{}{"updated_by_user_id": approverID}
		if name := strings.TrimSpace(pointers.Deref(p.ProposedName)); name != "" {
			updates["canonical_name"] = name
			updates["canonical_name_lower"] = strings.ToLower(name)
		}
		if p.ProposedWebsite != nil {
			updates["website"] = *p.ProposedWebsite
		}
		if p.ProposedLogo != nil {
			updates["logo"] = *p.ProposedLogo
		}
		err := inTx(dbc, s.db, func(txc dbctx.Context) error {
			return s.shops.UpdateFields(txc, *p.ShopMainID, updates)
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				return nil, apperr.Conflict("another active shop already uses that name")
			}
			return nil, fmt.Errorf("update shop metadata: %w", err)
		}
		return nil, nil

	case proposaldomain.TypeMergeRequest:
		if p.MergeSourceID == nil || p.MergeTargetID == nil {
			return nil, apperr.Invalid("merge_request proposal lacks source or target")
		}
		by := approverID
		if by == nil {
			by = &p.UserID
		}
		if _, err := s.identity.Merge(dbc, *p.MergeSourceID, *p.MergeTargetID, by); err != nil {
			return nil, err
		}
		return []events.Event{events.New(events.TypeShopMerged, p.MergeTargetID.String(), map[string]any{
			"from_id":     p.MergeSourceID.String(),
			"to_id":       p.MergeTargetID.String(),
			"proposal_id": p.ID.String(),
		})}, nil

	case proposaldomain.TypeURL:
		if p.ShopMainID == nil || p.SourceURL == nil {
			return nil, apperr.Invalid("url proposal lacks shop or url")
		}
		canonical, err := s.identity.ResolveCanonical(dbc, *p.ShopMainID)
		if err != nil {
			return nil, err
		}
		exists, err := s.urls.Exists(dbc, canonical.ID, *p.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("check shop url: %w", err)
		}
		if !exists {
			if _, err := s.urls.Create(dbc, []*types.ShopURL{{
				CanonicalShopID: canonical.ID,
				URL:             *p.SourceURL,
				ProposalID:      &p.ID,
			}}); err != nil {
				return nil, fmt.Errorf("create shop url: %w", err)
			}
		}
		return nil, nil
	}
	return nil, apperr.Invalid("unknown proposal type " + p.ProposalType)
}

func (s *proposalService) Get(dbc dbctx.Context, proposalID uuid.UUID) (*types.Proposal, error) {
	p, err := s.proposals.GetByID(dbc, proposalID)
	if err != nil {
		return nil, fmt.Errorf("load proposal: %w", err)
	}
	if p == nil {
		return nil, ErrProposalNotFound
	}
	return p, nil
}

func (s *proposalService) ListPending(dbc dbctx.Context, f repos.ProposalListFilter) ([]*types.Proposal, error) {
	if f.Status == "" {
		f.Status = proposaldomain.StatusPending
	}
	return s.proposals.List(dbc, f)
}

func (s *proposalService) AuditTrail(dbc dbctx.Context, proposalID uuid.UUID) ([]*types.ProposalAuditLog, error) {
	return s.audit.ListByProposal(dbc, proposalID)
}

func (s *proposalService) writeAudit(dbc dbctx.Context, proposalID uuid.UUID, action string, actorID *uuid.UUID, details map[string]any) error {
	var raw datatypes.JSON
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		raw = datatypes.JSON(b)
	}
	if err := s.audit.Create(dbc, []*types.ProposalAuditLog{{
		ProposalID: proposalID,
		Action:     action,
		ActorID:    actorID,
		Details:    raw,
	}}); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// publish sends events once the caller's transaction has committed. When
// dbc carried an outer transaction the caller owns the commit and the events
// are dropped with a debug log.
func (s *proposalService) publish(dbc dbctx.Context, evs []events.Event) {
	if len(evs) == 0 {
		return
	}
	if dbc.Tx != nil {
		s.log.Debug("Skipping event publish inside caller transaction", "count", len(evs))
		return
	}
	if err := s.publisher.Publish(dbc.Context(), evs...); err != nil {
		s.log.Warn("Failed to publish proposal events", "error", err)
	}
}

func trimPtr(p **string) {
	if *p == nil {
		return
	}
	v := strings.TrimSpace(**p)
	if v == "" {
		*p = nil
		return
	}
	*p = &v
}
