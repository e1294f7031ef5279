package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/db"
	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	shopdomain "github.com/yungbote/bonusfinder-backend/internal/domain/shop"
	"github.com/yungbote/bonusfinder-backend/internal/events"
	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/fuzzy"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

const maxMergeHops = 16

type IdentityResult struct {
	Canonical  *types.CanonicalShop
	LegacyShop *types.LegacyShop
	Variant    *types.ShopVariant
	Created    bool
	Confidence float64
}

// ResolvedShop is a canonical shop together with every legacy handle whose
// rates aggregate under it. Canonical is nil for an unlinked legacy handle.
type ResolvedShop struct {
	Canonical *types.CanonicalShop
	Siblings  []*types.LegacyShop
}

func (r *ResolvedShop) SiblingIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Siblings))
	for _, s := range r.Siblings {
		ids = append(ids, s.ID)
	}
	return ids
}

// DisplayName prefers the canonical name.
func (r *ResolvedShop) DisplayName() string {
	if r.Canonical != nil {
		return r.Canonical.CanonicalName
	}
	if len(r.Siblings) > 0 {
		return r.Siblings[0].Name
	}
	return ""
}

type ShopIdentityService interface {
	GetOrCreateCanonical(dbc dbctx.Context, name, source string, sourceID *string) (*IdentityResult, error)
	Merge(dbc dbctx.Context, fromID, toID uuid.UUID, byUserID *uuid.UUID) (*types.CanonicalShop, error)
	RescoreVariants(dbc dbctx.Context) (int, error)
	ResolveCanonical(dbc dbctx.Context, id uuid.UUID) (*types.CanonicalShop, error)
	ResolveShop(dbc dbctx.Context, id uuid.UUID) (*ResolvedShop, error)
}

type shopIdentityService struct {
	db        *gorm.DB
	log       *logger.Logger
	matcher   fuzzy.Matcher
	shops     repos.CanonicalShopRepo
	variants  repos.ShopVariantRepo
	legacy    repos.LegacyShopRepo
	urls      repos.ShopURLRepo
	publisher events.Publisher
}

func NewShopIdentityService(
	db *gorm.DB,
	baseLog *logger.Logger,
	matcher fuzzy.Matcher,
	shops repos.CanonicalShopRepo,
	variants repos.ShopVariantRepo,
	legacy repos.LegacyShopRepo,
	urls repos.ShopURLRepo,
	publisher events.Publisher,
) ShopIdentityService {
	if matcher == nil {
		matcher = fuzzy.New()
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &shopIdentityService{
		db:        db,
		log:       baseLog.With("service", "ShopIdentityService"),
		matcher:   matcher,
		shops:     shops,
		variants:  variants,
		legacy:    legacy,
		urls:      urls,
		publisher: publisher,
	}
}

func (s *shopIdentityService) GetOrCreateCanonical(dbc dbctx.Context, name, source string, sourceID *string) (*IdentityResult, error) {
	name = strings.TrimSpace(name)
	source = strings.TrimSpace(source)
	if name == "" {
		return nil, apperr.Invalid("shop name is required")
	}
	if source == "" {
		return nil, apperr.Invalid("source is required")
	}
	if sourceID != nil {
		trimmed := strings.TrimSpace(*sourceID)
		if trimmed == "" {
			sourceID = nil
		} else {
			sourceID = &trimmed
		}
	}

	var out *IdentityResult
	err := inTx(dbc, s.db, func(txc dbctx.Context) error {
		res, err := s.getOrCreate(txc, name, source, sourceID)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *shopIdentityService) getOrCreate(dbc dbctx.Context, name, source string, sourceID *string) (*IdentityResult, error) {
	// A known (source, source_id) keeps its canonical without rescoring.
	if sourceID != nil {
		known, err := s.variants.FindBySource(dbc, source, *sourceID)
		if err != nil {
			return nil, fmt.Errorf("find variant by source: %w", err)
		}
		if len(known) > 0 {
			canonical, err := s.ResolveCanonical(dbc, known[0].CanonicalShopID)
			if err != nil {
				return nil, err
			}
			handle, err := s.ensureLegacyHandle(dbc, name, canonical.ID)
			if err != nil {
				return nil, err
			}
			return &IdentityResult{
				Canonical:  canonical,
				LegacyShop: handle,
				Variant:    known[0],
				Created:    false,
				Confidence: known[0].ConfidenceScore,
			}, nil
		}
	}

	best, bestScore, err := s.bestCandidate(dbc, name)
	if err != nil {
		return nil, err
	}

	var (
		canonical  *types.CanonicalShop
		created    bool
		confidence float64
	)
	switch fuzzy.BandFor(bestScore) {
	case fuzzy.BandAutoMerge:
		canonical, confidence = best, 100
	case fuzzy.BandReview:
		canonical, created, err = s.createCanonical(dbc, name)
		confidence = bestScore
	default:
		canonical, created, err = s.createCanonical(dbc, name)
		confidence = 100
	}
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost a race on the active-name index; the winner is the same shop.
		confidence = 100
	}

	variant, err := s.ensureVariant(dbc, canonical.ID, source, sourceID, name, confidence)
	if err != nil {
		return nil, err
	}
	handle, err := s.ensureLegacyHandle(dbc, name, canonical.ID)
	if err != nil {
		return nil, err
	}

	s.log.Debug("Resolved shop identity",
		"name", name,
		"source", source,
		"canonical_id", canonical.ID,
		"band", fuzzy.BandFor(bestScore).String(),
		"score", bestScore,
		"created", created,
	)
	return &IdentityResult{
		Canonical:  canonical,
		LegacyShop: handle,
		Variant:    variant,
		Created:    created,
		Confidence: confidence,
	}, nil
}

// bestCandidate scores name against every canonical name, merged ones
// included, and every recorded variant name. Scores are credited to the
// surviving canonical, so a name merged away keeps matching its target. Equal
// scores go to the older survivor.
func (s *shopIdentityService) bestCandidate(dbc dbctx.Context, name string) (*types.CanonicalShop, float64, error) {
	all, err := s.shops.ListAll(dbc)
	if err != nil {
		return nil, -1, fmt.Errorf("list canonical shops: %w", err)
	}
	byID := make(map[uuid.UUID]*types.CanonicalShop, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}
	variants, err := s.variants.ListAll(dbc)
	if err != nil {
		return nil, -1, fmt.Errorf("list shop variants: %w", err)
	}

	var best *types.CanonicalShop
	bestScore := -1.0
	consider := func(id uuid.UUID, candidateName string) {
		survivor := survivorOf(byID, id)
		if survivor == nil {
			return
		}
		score := s.matcher.Score(name, candidateName)
		if score > bestScore || (score == bestScore && olderShop(survivor, best)) {
			best, bestScore = survivor, score
		}
	}
	for _, c := range all {
		consider(c.ID, c.CanonicalName)
	}
	for _, v := range variants {
		consider(v.CanonicalShopID, v.SourceName)
	}
	return best, bestScore, nil
}

// survivorOf follows merged_into in memory. Broken or overlong chains yield nil.
func survivorOf(byID map[uuid.UUID]*types.CanonicalShop, id uuid.UUID) *types.CanonicalShop {
	current := byID[id]
	for hop := 0; current != nil && hop < maxMergeHops; hop++ {
		if current.Status != shopdomain.StatusMerged {
			return current
		}
		if current.MergedInto == nil {
			return nil
		}
		current = byID[*current.MergedInto]
	}
	return nil
}

func olderShop(a, b *types.CanonicalShop) bool {
	if b == nil {
		return true
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// createCanonical opens a new canonical. If the active-name index rejects it
// the existing row wins and created is false.
func (s *shopIdentityService) createCanonical(dbc dbctx.Context, name string) (*types.CanonicalShop, bool, error) {
	lower := strings.ToLower(name)
	row := &types.CanonicalShop{
		CanonicalName:      name,
		CanonicalNameLower: lower,
		Status:             shopdomain.StatusActive,
	}
	err := inTx(dbc, s.db, func(txc dbctx.Context) error {
		_, err := s.shops.Create(txc, []*types.CanonicalShop{row})
		return err
	})
	if err == nil {
		return row, true, nil
	}
	if !db.IsUniqueViolation(err) {
		return nil, false, fmt.Errorf("create canonical shop: %w", err)
	}
	existing, gerr := s.shops.GetActiveByLowerName(dbc, lower)
	if gerr != nil {
		return nil, false, fmt.Errorf("reload canonical shop: %w", gerr)
	}
	if existing == nil {
		return nil, false, fmt.Errorf("create canonical shop: %w", err)
	}
	return existing, false, nil
}

func (s *shopIdentityService) ensureVariant(dbc dbctx.Context, canonicalID uuid.UUID, source string, sourceID *string, sourceName string, confidence float64) (*types.ShopVariant, error) {
	existing, err := s.variants.FindIdentical(dbc, canonicalID, source, sourceID, sourceName)
	if err != nil {
		return nil, fmt.Errorf("find variant: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	v := &types.ShopVariant{
		CanonicalShopID: canonicalID,
		Source:          source,
		SourceName:      sourceName,
		SourceID:        sourceID,
		ConfidenceScore: confidence,
	}
	err = inTx(dbc, s.db, func(txc dbctx.Context) error {
		_, err := s.variants.Create(txc, []*types.ShopVariant{v})
		return err
	})
	if err == nil {
		return v, nil
	}
	if !db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("create variant: %w", err)
	}
	existing, ferr := s.variants.FindIdentical(dbc, canonicalID, source, sourceID, sourceName)
	if ferr != nil || existing == nil {
		return nil, fmt.Errorf("create variant: %w", err)
	}
	return existing, nil
}

// ensureLegacyHandle returns the legacy handle for name linked to canonicalID.
// An unlinked handle is adopted; a handle bound to another canonical is left
// alone and a new one is created.
func (s *shopIdentityService) ensureLegacyHandle(dbc dbctx.Context, name string, canonicalID uuid.UUID) (*types.LegacyShop, error) {
	handles, err := s.legacy.FindByName(dbc, name)
	if err != nil {
		return nil, fmt.Errorf("find legacy shop: %w", err)
	}
	for _, h := range handles {
		if h.CanonicalShopID != nil && *h.CanonicalShopID == canonicalID {
			return h, nil
		}
	}
	for _, h := range handles {
		if h.CanonicalShopID == nil {
			if err := s.legacy.SetCanonical(dbc, h.ID, canonicalID); err != nil {
				return nil, fmt.Errorf("link legacy shop: %w", err)
			}
			h.CanonicalShopID = &canonicalID
			return h, nil
		}
	}
	h := &types.LegacyShop{Name: name, CanonicalShopID: &canonicalID}
	if _, err := s.legacy.Create(dbc, []*types.LegacyShop{h}); err != nil {
		return nil, fmt.Errorf("create legacy shop: %w", err)
	}
	return h, nil
}

func (s *shopIdentityService) Merge(dbc dbctx.Context, fromID, toID uuid.UUID, byUserID *uuid.UUID) (*types.CanonicalShop, error) {
	if fromID == toID {
		return nil, ErrSelfMerge
	}
	var target *types.CanonicalShop
	var moved int64
	err := inTx(dbc, s.db, func(txc dbctx.Context) error {
		locked, err := s.shops.LockByIDs(txc, []uuid.UUID{fromID, toID})
		if err != nil {
			return fmt.Errorf("lock shops: %w", err)
		}
		var from, to *types.CanonicalShop
		for _, row := range locked {
			switch row.ID {
			case fromID:
				from = row
			case toID:
				to = row
			}
		}
		if from == nil || to == nil {
			return ErrShopNotFound
		}
		if from.Status == shopdomain.StatusMerged || to.Status == shopdomain.StatusMerged {
			return ErrShopAlreadyMerged
		}

		fromVariants, err := s.variants.ListByCanonical(txc, fromID)
		if err != nil {
			return fmt.Errorf("list source variants: %w", err)
		}
		toVariants, err := s.variants.ListByCanonical(txc, toID)
		if err != nil {
			return fmt.Errorf("list target variants: %w", err)
		}
		taken := make(map[string]bool, len(toVariants))
		for _, v := range toVariants {
			taken[variantKey(v)] = true
		}
		var drop []uuid.UUID
		for _, v := range fromVariants {
			if taken[variantKey(v)] {
				drop = append(drop, v.ID)
			}
		}
		if err := s.variants.DeleteByIDs(txc, drop); err != nil {
			return fmt.Errorf("drop colliding variants: %w", err)
		}
		if moved, err = s.variants.RepointCanonical(txc, fromID, toID); err != nil {
			return fmt.Errorf("repoint variants: %w", err)
		}
		if _, err := s.legacy.RepointCanonical(txc, fromID, toID); err != nil {
			return fmt.Errorf("repoint legacy shops: %w", err)
		}
		if err := s.urls.RepointCanonical(txc, fromID, toID); err != nil {
			return fmt.Errorf("repoint shop urls: %w", err)
		}
		if _, err := s.shops.RepointMerged(txc, fromID, toID); err != nil {
			return fmt.Errorf("repoint merge chain: %w", err)
		}
		if err := s.shops.UpdateFields(txc, fromID, map[string]interface{}{
			"status":             shopdomain.StatusMerged,
			"merged_into":        toID,
			"updated_by_user_id": byUserID,
		}); err != nil {
			return fmt.Errorf("mark shop merged: %w", err)
		}
		target = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Merged canonical shops", "from_id", fromID, "to_id", toID, "variants_moved", moved, "actor_id", byUserID)
	data := map[string]any{"from_id": fromID.String(), "to_id": toID.String()}
	if byUserID != nil {
		data["by_user_id"] = byUserID.String()
	}
	// Inside a caller's transaction the caller publishes after its commit.
	if dbc.Tx == nil {
		if perr := s.publisher.Publish(dbc.Context(), events.New(events.TypeShopMerged, toID.String(), data)); perr != nil {
			s.log.Warn("Failed to publish merge event", "error", perr)
		}
	}
	return target, nil
}

func variantKey(v *types.ShopVariant) string {
	if v.SourceID != nil {
		return v.Source + "\x00id\x00" + *v.SourceID
	}
	return v.Source + "\x00name\x00" + strings.ToLower(v.SourceName)
}

func (s *shopIdentityService) RescoreVariants(dbc dbctx.Context) (int, error) {
	variants, err := s.variants.ListAll(dbc)
	if err != nil {
		return 0, fmt.Errorf("list variants: %w", err)
	}
	idSet := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, v := range variants {
		if !idSet[v.CanonicalShopID] {
			idSet[v.CanonicalShopID] = true
			ids = append(ids, v.CanonicalShopID)
		}
	}
	shops, err := s.shops.GetByIDs(dbc, ids)
	if err != nil {
		return 0, fmt.Errorf("load canonical shops: %w", err)
	}
	byID := make(map[uuid.UUID]*types.CanonicalShop, len(shops))
	for _, sh := range shops {
		byID[sh.ID] = sh
	}

	updated := 0
	for _, v := range variants {
		c := byID[v.CanonicalShopID]
		if c == nil {
			continue
		}
		score := s.matcher.Score(v.SourceName, c.CanonicalName)
		if score == v.ConfidenceScore {
			continue
		}
		if err := s.variants.UpdateConfidence(dbc, v.ID, score); err != nil {
			return updated, fmt.Errorf("update variant %s: %w", v.ID, err)
		}
		updated++
	}
	s.log.Info("Rescored shop variants", "total", len(variants), "updated", updated)
	return updated, nil
}

func (s *shopIdentityService) ResolveCanonical(dbc dbctx.Context, id uuid.UUID) (*types.CanonicalShop, error) {
	current := id
	for hop := 0; hop < maxMergeHops; hop++ {
		row, err := s.shops.GetByID(dbc, current)
		if err != nil {
			return nil, fmt.Errorf("load canonical shop: %w", err)
		}
		if row == nil {
			return nil, ErrShopNotFound
		}
		if row.Status != shopdomain.StatusMerged || row.MergedInto == nil {
			return row, nil
		}
		current = *row.MergedInto
	}
	return nil, fmt.Errorf("merge chain from %s exceeds %d hops", id, maxMergeHops)
}

// ResolveShop accepts either a canonical or a legacy id.
func (s *shopIdentityService) ResolveShop(dbc dbctx.Context, id uuid.UUID) (*ResolvedShop, error) {
	var requested *types.LegacyShop
	canonicalID := id
	canonical, err := s.shops.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load canonical shop: %w", err)
	}
	if canonical == nil {
		requested, err = s.legacy.GetByID(dbc, id)
		if err != nil {
			return nil, fmt.Errorf("load legacy shop: %w", err)
		}
		if requested == nil {
			return nil, ErrShopNotFound
		}
		if requested.CanonicalShopID == nil {
			return &ResolvedShop{Siblings: []*types.LegacyShop{requested}}, nil
		}
		canonicalID = *requested.CanonicalShopID
	}

	resolved, err := s.ResolveCanonical(dbc, canonicalID)
	if err != nil {
		return nil, err
	}
	siblings, err := s.legacy.ListByCanonical(dbc, resolved.ID)
	if err != nil {
		return nil, fmt.Errorf("list sibling shops: %w", err)
	}
	if requested != nil {
		found := false
		for _, sib := range siblings {
			if sib.ID == requested.ID {
				found = true
				break
			}
		}
		if !found {
			siblings = append(siblings, requested)
		}
	}
	return &ResolvedShop{Canonical: resolved, Siblings: siblings}, nil
}
