package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/pointers"
)

func TestIngestArchivesChangedRate(t *testing.T) {
	f := newFixture(t)

	first := f.ingest(ShopData{Name: "DemoShop", Source: "Payback", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(1.0)},
	}})
	require.Equal(t, 1, first.RatesChanged)

	second := f.ingest(ShopData{Name: "DemoShop", Source: "Payback", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(2.0)},
	}})
	require.Equal(t, 1, second.RatesChanged)

	open := f.openRates(second.LegacyShopID)
	require.Len(t, open, 1)
	require.Equal(t, 2.0, *open[0].PointsPerEUR)

	history, err := f.rates.History(f.dbc(), second.LegacyShopID, open[0].ProgramID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	var archived int
	for _, row := range history {
		if row.ValidTo == nil {
			continue
		}
		archived++
		require.Equal(t, 1.0, *row.PointsPerEUR)
		require.True(t, row.ValidTo.Equal(open[0].ValidFrom), "archive time %s should equal new valid_from %s", row.ValidTo, open[0].ValidFrom)
	}
	require.Equal(t, 1, archived)
	require.Len(t, f.events.OfType("rate.changed"), 2)
}

func TestIngestIsIdempotentForUnchangedRates(t *testing.T) {
	f := newFixture(t)
	data := ShopData{Name: "DemoShop", Source: "Payback", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(1.0)},
		{Program: "Miles", CashbackPct: pointers.Float64(2.5), Category: pointers.String("Electronics")},
	}}
	f.ingest(data)
	again := f.ingest(data)

	require.Zero(t, again.RatesChanged)
	require.Equal(t, 2, again.RatesUnchanged)
	require.Len(t, f.openRates(again.LegacyShopID), 2)
}

func TestIngestCollectsPerRateErrors(t *testing.T) {
	f := newFixture(t)
	res := f.ingest(ShopData{Name: "DemoShop", Source: "Payback", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(1.0)},
		{Program: "Empty"},
	}})
	require.Equal(t, 1, res.RatesChanged)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "Empty", res.Errors[0].Program)
	require.True(t, errors.Is(res.Errors[0].Err, apperr.ErrInvalidArgument))
	require.Len(t, f.openRates(res.LegacyShopID), 1)
}

func TestIngestRejectsMissingName(t *testing.T) {
	f := newFixture(t)
	_, err := f.ingestion.Ingest(context.Background(), ShopData{Source: "Payback"})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}

func TestIngestBatchIsolatesFailuresAndStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	batch := []ShopData{
		{Name: "Otto", Source: "Payback"},
		{Name: "", Source: "Payback"},
		{Name: "Tchibo", Source: "Payback"},
		{Name: "Lidl", Source: "Payback"},
	}
	calls := 0
	res, err := f.ingestion.IngestBatch(context.Background(), batch, func(ctx context.Context) (bool, error) {
		calls++
		return calls > 3, nil
	})
	require.NoError(t, err)
	require.True(t, res.Cancelled)
	require.Len(t, res.Results, 2)
	require.Len(t, res.Failed, 1)
	require.Equal(t, 1, res.Failed[0].Index)
}

func TestEnsureProgramLastWriterWins(t *testing.T) {
	f := newFixture(t)
	p, err := f.registry.EnsureProgram(f.dbc(), "Payback", pointers.Float64(0.01))
	require.NoError(t, err)
	same, err := f.registry.EnsureProgram(f.dbc(), "Payback", nil)
	require.NoError(t, err)
	require.Equal(t, p.ID, same.ID)
	require.Equal(t, 0.01, same.PointValueEUR)

	updated, err := f.registry.EnsureProgram(f.dbc(), "Payback", pointers.Float64(0.005))
	require.NoError(t, err)
	require.Equal(t, p.ID, updated.ID)
	require.Equal(t, 0.005, updated.PointValueEUR)
}

func TestReconcileRejectsEmptyWrite(t *testing.T) {
	f := newFixture(t)
	shop := f.ingest(ShopData{Name: "DemoShop", Source: "Payback"})
	prog, err := f.registry.EnsureProgram(f.dbc(), "Payback", nil)
	require.NoError(t, err)
	_, _, err = f.rates.Reconcile(f.dbc(), RateWrite{ShopID: shop.LegacyShopID, ProgramID: prog.ID})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}
