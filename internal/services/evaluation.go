package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/modules/evaluation"
	"github.com/yungbote/bonusfinder-backend/internal/observability"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/pointers"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type EvaluationQuery struct {
	ShopID            uuid.UUID
	Amount            *decimal.Decimal
	Mode              string
	SelectedCouponIDs []uuid.UUID
	// DefaultCoupons picks coupons automatically instead of honoring
	// SelectedCouponIDs. Used on the initial page render.
	DefaultCoupons     bool
	IncludeMyProposals bool
	UserID             *uuid.UUID
}

type ShopRef struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	CanonicalID uuid.UUID `json:"canonical_id,omitempty"`
}

type EvaluationResult struct {
	Shop ShopRef `json:"shop"`
	evaluation.Result
}

type EvaluationService interface {
	Evaluate(dbc dbctx.Context, q EvaluationQuery) (*EvaluationResult, error)
}

type evaluationService struct {
	log    *logger.Logger
	loader *shopRateLoader
	now    func() time.Time
}

func NewEvaluationService(
	baseLog *logger.Logger,
	identity ShopIdentityService,
	rates repos.ShopProgramRateRepo,
	programs repos.BonusProgramRepo,
	categories repos.ShopCategoryRepo,
	coupons repos.CouponRepo,
	proposals repos.ProposalRepo,
) EvaluationService {
	return &evaluationService{
		log: baseLog.With("service", "EvaluationService"),
		loader: &shopRateLoader{
			identity:   identity,
			rates:      rates,
			programs:   programs,
			categories: categories,
			coupons:    coupons,
			proposals:  proposals,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *evaluationService) Evaluate(dbc dbctx.Context, q EvaluationQuery) (*EvaluationResult, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(dbc.Context(), "evaluation.evaluate",
		attribute.String("shop_id", q.ShopID.String()),
		attribute.String("mode", q.Mode),
		attribute.Bool("has_amount", q.Amount != nil),
	)
	defer span.End()
	dbc.Ctx = ctx

	// Phantom rows are strictly opt-in and never cross users.
	var phantomUser uuid.UUID
	if q.IncludeMyProposals && q.UserID != nil {
		phantomUser = *q.UserID
	}
	loaded, err := s.loader.load(dbc, q.ShopID, phantomUser, true, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	res, err := evaluation.Evaluate(evaluation.Input{
		Mode:              q.Mode,
		Amount:            q.Amount,
		Programs:          loaded.programs,
		Rates:             loaded.rates,
		Coupons:           loaded.coupons,
		SelectedCouponIDs: q.SelectedCouponIDs,
		DefaultCoupons:    q.DefaultCoupons,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("evaluate shop %s: %w", q.ShopID, err)
	}
	observability.Current().ObserveEvaluation(res.Mode, time.Since(start))
	s.log.Debug("Evaluated shop",
		"shop_id", q.ShopID,
		"mode", res.Mode,
		"programs", len(res.Programs),
		"rates", len(loaded.rates),
	)
	return &EvaluationResult{Shop: loaded.shop, Result: res}, nil
}

type loadedShopRates struct {
	shop     ShopRef
	resolved *ResolvedShop
	open     []*types.ShopProgramRate
	programs map[uuid.UUID]evaluation.Program
	rates    []evaluation.Rate
	coupons  []evaluation.Coupon
}

// shopRateLoader gathers everything the evaluation engine needs for one shop:
// rates across every sibling handle, the user's own pending rate proposals and
// the active coupons.
type shopRateLoader struct {
	identity   ShopIdentityService
	rates      repos.ShopProgramRateRepo
	programs   repos.BonusProgramRepo
	categories repos.ShopCategoryRepo
	coupons    repos.CouponRepo
	proposals  repos.ProposalRepo
}

func (l *shopRateLoader) load(dbc dbctx.Context, shopID, phantomUser uuid.UUID, withCoupons bool, now time.Time) (*loadedShopRates, error) {
	resolved, err := l.identity.ResolveShop(dbc, shopID)
	if err != nil {
		return nil, err
	}
	out := &loadedShopRates{resolved: resolved, shop: ShopRef{ID: shopID, Name: resolved.DisplayName()}}
	if resolved.Canonical != nil {
		out.shop.CanonicalID = resolved.Canonical.ID
	}
	siblingIDs := resolved.SiblingIDs()

	open, err := l.rates.ListOpenByShopIDs(dbc, siblingIDs)
	if err != nil {
		return nil, fmt.Errorf("load open rates: %w", err)
	}
	out.open = open

	var pending []*types.Proposal
	if phantomUser != uuid.Nil {
		pending, err = l.proposals.ListPendingRateChanges(dbc, phantomUser, siblingIDs)
		if err != nil {
			return nil, fmt.Errorf("load pending proposals: %w", err)
		}
	}

	var coupons []*types.Coupon
	if withCoupons {
		couponShops := siblingIDs
		if resolved.Canonical != nil {
			couponShops = append(append([]uuid.UUID{}, siblingIDs...), resolved.Canonical.ID)
		}
		coupons, err = l.coupons.ListActiveFor(dbc, couponShops, now)
		if err != nil {
			return nil, fmt.Errorf("load coupons: %w", err)
		}
	}

	programIDs := map[uuid.UUID]bool{}
	categoryIDs := map[uuid.UUID]bool{}
	for _, r := range open {
		programIDs[r.ProgramID] = true
		if r.CategoryID != nil {
			categoryIDs[*r.CategoryID] = true
		}
	}
	for _, p := range pending {
		if p.ProgramID != nil {
			programIDs[*p.ProgramID] = true
		}
	}
	programs, err := l.programs.GetByIDs(dbc, keys(programIDs))
	if err != nil {
		return nil, fmt.Errorf("load programs: %w", err)
	}
	out.programs = make(map[uuid.UUID]evaluation.Program, len(programs))
	for _, p := range programs {
		out.programs[p.ID] = evaluation.Program{ID: p.ID, Name: p.Name, PointValueEUR: p.PointValueEUR}
	}
	categoryNames := map[uuid.UUID]string{}
	if len(categoryIDs) > 0 {
		cats, err := l.categories.GetByIDs(dbc, keys(categoryIDs))
		if err != nil {
			return nil, fmt.Errorf("load categories: %w", err)
		}
		for _, c := range cats {
			categoryNames[c.ID] = c.Name
		}
	}

	// Uncategorised rows first, then by category name, so each program lists
	// its categories in a stable order.
	sort.SliceStable(open, func(i, j int) bool {
		return categoryLabel(open[i], categoryNames) < categoryLabel(open[j], categoryNames)
	})
	for _, r := range open {
		out.rates = append(out.rates, evaluation.Rate{
			ID:               r.ID,
			ShopID:           r.ShopID,
			ProgramID:        r.ProgramID,
			Category:         categoryLabel(r, categoryNames),
			PointsPerEUR:     r.PointsPerEUR,
			PointsAbsolute:   r.PointsAbsolute,
			CashbackPct:      r.CashbackPct,
			CashbackAbsolute: r.CashbackAbsolute,
			RateType:         r.RateType,
			RateNote:         r.RateNote,
		})
	}
	for _, p := range pending {
		if p.ShopID == nil || p.ProgramID == nil {
			continue
		}
		out.rates = append(out.rates, evaluation.Rate{
			ID:               p.ID,
			ShopID:           *p.ShopID,
			ProgramID:        *p.ProgramID,
			PointsPerEUR:     p.ProposedPointsPerEUR,
			PointsAbsolute:   p.ProposedPointsAbsolute,
			CashbackPct:      p.ProposedCashbackPct,
			CashbackAbsolute: p.ProposedCashbackAbsolute,
			RateType:         pointers.Deref(p.ProposedRateType),
			RateNote:         p.ProposedRateNote,
			IsProposal:       true,
		})
	}
	out.coupons = make([]evaluation.Coupon, 0, len(coupons))
	for _, c := range coupons {
		out.coupons = append(out.coupons, evaluation.Coupon{
			ID:         c.ID,
			Type:       c.CouponType,
			Value:      c.Value,
			Name:       c.Name,
			ShopID:     c.ShopID,
			ProgramID:  c.ProgramID,
			Combinable: pointers.Deref(c.Combinable),
		})
	}
	return out, nil
}

func categoryLabel(r *types.ShopProgramRate, names map[uuid.UUID]string) string {
	if r.CategoryID == nil {
		return ""
	}
	return strings.TrimSpace(names[*r.CategoryID])
}

func keys(set map[uuid.UUID]bool) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
