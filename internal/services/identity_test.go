package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	shopdomain "github.com/yungbote/bonusfinder-backend/internal/domain/shop"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/pointers"
)

func TestIngestAutoMergesEquivalentNames(t *testing.T) {
	f := newFixture(t)

	first := f.ingest(ShopData{Name: "Amazon", Source: "MilesAndMore", SourceID: pointers.String("mam-1")})
	second := f.ingest(ShopData{Name: "amazon", Source: "Payback", SourceID: pointers.String("pb-2")})

	require.True(t, first.CreatedCanonical)
	require.False(t, second.CreatedCanonical)
	require.Equal(t, first.CanonicalID, second.CanonicalID)

	active, err := f.shops.ListActive(f.dbc())
	require.NoError(t, err)
	require.Len(t, active, 1)

	variants, err := f.variants.ListByCanonical(f.dbc(), first.CanonicalID)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	for _, v := range variants {
		require.Equal(t, 100.0, v.ConfidenceScore)
	}
}

func TestIngestFlagsNearMatchAsNewCanonical(t *testing.T) {
	f := newFixture(t)

	amazon := f.ingest(ShopData{Name: "Amazon", Source: "MilesAndMore", SourceID: pointers.String("mam-1")})
	near := f.ingest(ShopData{Name: "Amazone", Source: "manual"})

	require.True(t, near.CreatedCanonical)
	require.NotEqual(t, amazon.CanonicalID, near.CanonicalID)

	variants, err := f.variants.ListByCanonical(f.dbc(), near.CanonicalID)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	require.Less(t, variants[0].ConfidenceScore, 98.0)
	require.InDelta(t, 92.3, variants[0].ConfidenceScore, 1.0)

	// The flagged shop can be reconciled through a merge.
	_, err = f.identity.Merge(f.dbc(), near.CanonicalID, amazon.CanonicalID, nil)
	require.NoError(t, err)
	resolved, err := f.identity.ResolveCanonical(f.dbc(), near.CanonicalID)
	require.NoError(t, err)
	require.Equal(t, amazon.CanonicalID, resolved.ID)
}

func TestKnownSourceIDKeepsCanonical(t *testing.T) {
	f := newFixture(t)

	first := f.ingest(ShopData{Name: "Zalando", Source: "Payback", SourceID: pointers.String("z-1")})
	// A renamed record with the same source id stays put without rescoring.
	again, err := f.identity.GetOrCreateCanonical(f.dbc(), "Completely Different", "Payback", pointers.String("z-1"))
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Equal(t, first.CanonicalID, again.Canonical.ID)
}

func TestGetOrCreateIsIdempotentForNormalizedEqualNames(t *testing.T) {
	f := newFixture(t)

	a, err := f.identity.GetOrCreateCanonical(f.dbc(), "MediaMarkt", "manual", nil)
	require.NoError(t, err)
	b, err := f.identity.GetOrCreateCanonical(f.dbc(), "mediamarkt.de", "manual", nil)
	require.NoError(t, err)
	require.True(t, a.Created)
	require.False(t, b.Created)
	require.Equal(t, a.Canonical.ID, b.Canonical.ID)
}

func TestMergeRules(t *testing.T) {
	f := newFixture(t)
	a := f.ingest(ShopData{Name: "Otto", Source: "Payback", SourceID: pointers.String("o-1")})
	b := f.ingest(ShopData{Name: "Tchibo", Source: "Payback", SourceID: pointers.String("t-1")})

	_, err := f.identity.Merge(f.dbc(), a.CanonicalID, a.CanonicalID, nil)
	require.True(t, errors.Is(err, ErrSelfMerge))

	admin := f.user("root", "admin")
	_, err = f.identity.Merge(f.dbc(), b.CanonicalID, a.CanonicalID, &admin.ID)
	require.NoError(t, err)

	merged, err := f.shops.GetByID(f.dbc(), b.CanonicalID)
	require.NoError(t, err)
	require.Equal(t, shopdomain.StatusMerged, merged.Status)
	require.NotNil(t, merged.MergedInto)
	require.Equal(t, a.CanonicalID, *merged.MergedInto)
	require.Equal(t, admin.ID, *merged.UpdatedByUserID)

	n, err := f.variants.CountByCanonical(f.dbc(), b.CanonicalID)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = f.identity.Merge(f.dbc(), b.CanonicalID, a.CanonicalID, nil)
	require.True(t, errors.Is(err, ErrShopAlreadyMerged))

	require.Len(t, f.events.OfType("shop.merged"), 1)
}

func TestRescoreVariantsUpdatesDriftedScores(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(ShopData{Name: "Douglas", Source: "Payback", SourceID: pointers.String("d-1")})

	// Renaming the canonical leaves the variant's stored score stale.
	require.NoError(t, f.shops.UpdateFields(f.dbc(), res.CanonicalID, map[string]interface{}{
		"canonical_name":       "Douglas Parfuemerie",
		"canonical_name_lower": "douglas parfuemerie",
	}))
	n, err := f.identity.RescoreVariants(f.dbc())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	variants, err := f.variants.ListByCanonical(f.dbc(), res.CanonicalID)
	require.NoError(t, err)
	require.Less(t, variants[0].ConfidenceScore, 100.0)
}

func TestMergedNameKeepsResolvingToSurvivor(t *testing.T) {
	f := newFixture(t)
	amazon := f.ingest(ShopData{Name: "Amazon", Source: "MilesAndMore", SourceID: pointers.String("mam-1")})
	near := f.ingest(ShopData{Name: "Amazone", Source: "manual"})
	require.True(t, near.CreatedCanonical)

	_, err := f.identity.Merge(f.dbc(), near.CanonicalID, amazon.CanonicalID, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		source string
	}{
		{"Amazone", "Shoop"},
		{"amazone", "Payback"},
	}
	for _, tc := range tests {
		res, err := f.identity.GetOrCreateCanonical(f.dbc(), tc.name, tc.source, nil)
		require.NoError(t, err)
		require.False(t, res.Created, tc.source)
		require.Equal(t, amazon.CanonicalID, res.Canonical.ID, tc.source)
		require.Equal(t, 100.0, res.Confidence, tc.source)
	}

	active, err := f.shops.ListActive(f.dbc())
	require.NoError(t, err)
	require.Len(t, active, 1)
}
