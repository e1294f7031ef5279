package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	programdomain "github.com/yungbote/bonusfinder-backend/internal/domain/program"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/pointers"
)

func TestShopNamesFiltersBySubstring(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"Zalando", "Amazon", "Otto", "Mediamarkt"} {
		f.ingest(ShopData{Name: name, Source: "Feed"})
	}

	all, err := f.query.ShopNames(f.dbc(), "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "Amazon", all[0].Name)

	hits, err := f.query.ShopNames(f.dbc(), "AL")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "Zalando", hits[0].Name)

	none, err := f.query.ShopNames(f.dbc(), "100%_")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestListShopsAlwaysHasAlternateSlice(t *testing.T) {
	f := newFixture(t)
	f.ingest(ShopData{Name: "Otto", Source: "Feed"})

	rows, err := f.query.ListShops(f.dbc())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].AlternateURLs)
}

func TestRatesIncludesContractPrograms(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(ShopData{Name: "Telekom", Source: "Feed", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(1), PointValueEUR: pointers.Float64(0.01)},
		{Program: "Shoop", CashbackPct: pointers.Float64(2)},
		{Program: "Miles", PointsAbsolute: pointers.Float64(1500), RateType: pointers.String(programdomain.RateTypeContract)},
	}})

	out, err := f.query.Rates(f.dbc(), res.CanonicalID)
	require.NoError(t, err)
	require.Len(t, out.Programs, 3)
	require.Equal(t, "Shoop", out.Programs[0].Program)
	require.Equal(t, "Payback", out.Programs[1].Program)
	require.Equal(t, "Miles", out.Programs[2].Program)
	require.Nil(t, out.Programs[2].BestValue)
	require.Len(t, out.Programs[2].Rates, 1)

	_, err = f.query.Rates(f.dbc(), res.LegacyShopID)
	require.NoError(t, err)
}

func TestRateHistoryAcrossUpdates(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(ShopData{Name: "Otto", Source: "Feed", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(1)},
	}})
	f.ingest(ShopData{Name: "Otto", Source: "Feed", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(2)},
	}})
	prog, err := f.programs.GetByName(f.dbc(), "Payback")
	require.NoError(t, err)

	rows, err := f.query.RateHistory(f.dbc(), res.CanonicalID, prog.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	open := 0
	for _, r := range rows {
		if r.ValidTo == nil {
			open++
		}
	}
	require.Equal(t, 1, open)
}
