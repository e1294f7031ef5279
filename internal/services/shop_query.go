package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/modules/evaluation"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

const shopNameLimit = 30

type ShopName struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ShopListing struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	URL           *string   `json:"url,omitempty"`
	Logo          *string   `json:"logo,omitempty"`
	AlternateURLs []string  `json:"alternate_urls"`
}

type ProgramRates struct {
	Program       string                   `json:"program"`
	ProgramID     uuid.UUID                `json:"program_id"`
	PointValueEUR float64                  `json:"point_value_eur"`
	BestValue     *float64                 `json:"best_value"`
	Rates         []*types.ShopProgramRate `json:"rates"`
}

type ShopRates struct {
	Shop     ShopRef        `json:"shop"`
	Programs []ProgramRates `json:"programs"`
}

type ShopQueryService interface {
	ShopNames(dbc dbctx.Context, q string) ([]ShopName, error)
	ListShops(dbc dbctx.Context) ([]ShopListing, error)
	// Rates lists a shop's open rates grouped by program, ranked by per-euro
	// value without amount or coupons.
	Rates(dbc dbctx.Context, shopID uuid.UUID) (*ShopRates, error)
	RateHistory(dbc dbctx.Context, shopID, programID uuid.UUID) ([]*types.ShopProgramRate, error)
}

type shopQueryService struct {
	log      *logger.Logger
	shops    repos.CanonicalShopRepo
	urls     repos.ShopURLRepo
	identity ShopIdentityService
	store    RateStore
	loader   *shopRateLoader
}

func NewShopQueryService(
	baseLog *logger.Logger,
	shops repos.CanonicalShopRepo,
	urls repos.ShopURLRepo,
	identity ShopIdentityService,
	store RateStore,
	rates repos.ShopProgramRateRepo,
	programs repos.BonusProgramRepo,
	categories repos.ShopCategoryRepo,
) ShopQueryService {
	return &shopQueryService{
		log:      baseLog.With("service", "ShopQueryService"),
		shops:    shops,
		urls:     urls,
		identity: identity,
		store:    store,
		loader: &shopRateLoader{
			identity:   identity,
			rates:      rates,
			programs:   programs,
			categories: categories,
		},
	}
}

func (s *shopQueryService) ShopNames(dbc dbctx.Context, q string) ([]ShopName, error) {
	rows, err := s.shops.SearchActiveByName(dbc, q, shopNameLimit)
	if err != nil {
		return nil, fmt.Errorf("search shops: %w", err)
	}
	out := make([]ShopName, 0, len(rows))
	for _, r := range rows {
		out = append(out, ShopName{ID: r.ID, Name: r.CanonicalName})
	}
	return out, nil
}

func (s *shopQueryService) ListShops(dbc dbctx.Context) ([]ShopListing, error) {
	rows, err := s.shops.ListActive(dbc)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	urls, err := s.urls.ListByCanonicalIDs(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("list shop urls: %w", err)
	}
	alternates := map[uuid.UUID][]string{}
	for _, u := range urls {
		alternates[u.CanonicalShopID] = append(alternates[u.CanonicalShopID], u.URL)
	}
	out := make([]ShopListing, 0, len(rows))
	for _, r := range rows {
		alts := alternates[r.ID]
		if alts == nil {
			alts = []string{}
		}
		out = append(out, ShopListing{
			ID:            r.ID,
			Name:          r.CanonicalName,
			URL:           r.Website,
			Logo:          r.Logo,
			AlternateURLs: alts,
		})
	}
	return out, nil
}

func (s *shopQueryService) Rates(dbc dbctx.Context, shopID uuid.UUID) (*ShopRates, error) {
	loaded, err := s.loader.load(dbc, shopID, uuid.Nil, false, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	ranked, err := evaluation.Evaluate(evaluation.Input{
		Mode:     evaluation.ModeShopping,
		Programs: loaded.programs,
		Rates:    loaded.rates,
	})
	if err != nil {
		return nil, fmt.Errorf("rank shop %s: %w", shopID, err)
	}

	byProgram := map[uuid.UUID][]*types.ShopProgramRate{}
	for _, r := range loaded.open {
		byProgram[r.ProgramID] = append(byProgram[r.ProgramID], r)
	}
	out := &ShopRates{Shop: loaded.shop, Programs: make([]ProgramRates, 0, len(ranked.Programs))}
	seen := map[uuid.UUID]bool{}
	for _, p := range ranked.Programs {
		seen[p.ProgramID] = true
		out.Programs = append(out.Programs, ProgramRates{
			Program:       p.Program,
			ProgramID:     p.ProgramID,
			PointValueEUR: p.PointValueEUR,
			BestValue:     p.BestValue,
			Rates:         byProgram[p.ProgramID],
		})
	}
	// Contract-only programs have no per-euro value but still belong in the
	// listing.
	for _, r := range loaded.open {
		if seen[r.ProgramID] {
			continue
		}
		prog, ok := loaded.programs[r.ProgramID]
		if !ok {
			continue
		}
		seen[r.ProgramID] = true
		out.Programs = append(out.Programs, ProgramRates{
			Program:       prog.Name,
			ProgramID:     prog.ID,
			PointValueEUR: prog.PointValueEUR,
			Rates:         byProgram[r.ProgramID],
		})
	}
	return out, nil
}

func (s *shopQueryService) RateHistory(dbc dbctx.Context, shopID, programID uuid.UUID) ([]*types.ShopProgramRate, error) {
	resolved, err := s.identity.ResolveShop(dbc, shopID)
	if err != nil {
		return nil, err
	}
	var out []*types.ShopProgramRate
	for _, id := range resolved.SiblingIDs() {
		rows, err := s.store.History(dbc, id, programID)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	s.log.Debug("Loaded rate history", "shop_id", shopID, "program_id", programID, "rows", len(out))
	return out, nil
}
