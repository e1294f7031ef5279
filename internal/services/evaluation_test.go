package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	programdomain "github.com/yungbote/bonusfinder-backend/internal/domain/program"
	proposaldomain "github.com/yungbote/bonusfinder-backend/internal/domain/proposal"
	"github.com/yungbote/bonusfinder-backend/internal/modules/evaluation"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/pointers"
)

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func programByName(res *EvaluationResult, name string) *evaluation.ProgramResult {
	for i := range res.Programs {
		if res.Programs[i].Program == name {
			return &res.Programs[i]
		}
	}
	return nil
}

func TestEvaluateStackedCoupon(t *testing.T) {
	f := newFixture(t)
	shop := f.ingest(ShopData{Name: "Amazon", Source: "Payback", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(1), PointValueEUR: pointers.Float64(0.005)},
		{Program: "Miles", PointsPerEUR: pointers.Float64(0.5), PointValueEUR: pointers.Float64(0.01)},
		{Program: "Shoop", CashbackPct: pointers.Float64(3)},
	}})
	payback, err := f.programs.GetByName(f.dbc(), "Payback")
	require.NoError(t, err)
	coupon := testutil.SeedCoupon(t, context.Background(), f.db, &types.Coupon{
		CouponType: programdomain.CouponTypeMultiplier,
		Value:      20,
		Name:       "20x Payback",
		ProgramID:  &payback.ID,
	})

	res, err := f.evaluation.Evaluate(f.dbc(), EvaluationQuery{
		ShopID:            shop.CanonicalID,
		Amount:            amount("100"),
		Mode:              evaluation.ModeShopping,
		SelectedCouponIDs: []uuid.UUID{coupon.ID},
	})
	require.NoError(t, err)
	require.Equal(t, shop.CanonicalID, res.Shop.CanonicalID)
	require.NotEmpty(t, res.Programs)
	require.Equal(t, "Payback", res.Programs[0].Program)

	pb := res.Programs[0]
	require.NotNil(t, pb.BestValue)
	require.Equal(t, 10.0, *pb.BestValue)
	require.Equal(t, 2000.0, *pb.Categories[0].CouponPoints)
	require.Equal(t, 10.0, *pb.Categories[0].CouponEuros)

	shoop := programByName(res, "Shoop")
	require.NotNil(t, shoop)
	require.Equal(t, 3.0, *shoop.BestValue)
}

func TestEvaluateWithoutAmountRanksPerEuro(t *testing.T) {
	f := newFixture(t)
	shop := f.ingest(ShopData{Name: "Otto", Source: "Payback", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(1), PointValueEUR: pointers.Float64(0.005)},
		{Program: "Miles", PointsPerEUR: pointers.Float64(2), PointValueEUR: pointers.Float64(0.01)},
	}})
	res, err := f.evaluation.Evaluate(f.dbc(), EvaluationQuery{ShopID: shop.LegacyShopID})
	require.NoError(t, err)
	require.Len(t, res.Programs, 2)
	require.Equal(t, "Miles", res.Programs[0].Program)
	require.Nil(t, res.Programs[0].Categories[0].Euros)
}

func TestEvaluatePhantomRatesStayPrivate(t *testing.T) {
	f := newFixture(t)
	shop := f.ingest(ShopData{Name: "Otto", Source: "Payback", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(1), PointValueEUR: pointers.Float64(0.005)},
	}})
	payback, err := f.programs.GetByName(f.dbc(), "Payback")
	require.NoError(t, err)
	alice := f.user("alice", "user")
	bob := f.user("bob", "user")

	_, err = f.proposal.Create(f.dbc(), alice.ID, ProposalInput{
		ProposalType: proposaldomain.TypeRateChange,
		ShopID:       &shop.LegacyShopID,
		ProgramID:    &payback.ID,
		PointsPerEUR: pointers.Float64(5),
	})
	require.NoError(t, err)

	countPhantoms := func(userID *uuid.UUID, include bool) int {
		res, err := f.evaluation.Evaluate(f.dbc(), EvaluationQuery{
			ShopID:             shop.CanonicalID,
			Amount:             amount("10"),
			IncludeMyProposals: include,
			UserID:             userID,
		})
		require.NoError(t, err)
		n := 0
		for _, p := range res.Programs {
			for _, c := range p.Categories {
				if c.IsProposal {
					n++
				}
			}
		}
		// Phantom rows never lift the best value above the real rate.
		require.Equal(t, 0.05, *res.Programs[0].BestValue)
		return n
	}
	require.Equal(t, 1, countPhantoms(&alice.ID, true))
	require.Zero(t, countPhantoms(&alice.ID, false))
	require.Zero(t, countPhantoms(&bob.ID, true))
	require.Zero(t, countPhantoms(nil, true))
}

func TestEvaluateContractModeIsTextual(t *testing.T) {
	f := newFixture(t)
	shop := f.ingest(ShopData{Name: "Telekom", Source: "Payback", Rates: []RateEntry{
		{Program: "Payback", PointsAbsolute: pointers.Float64(2000), RateType: pointers.String("contract")},
		{Program: "Miles", PointsPerEUR: pointers.Float64(1)},
	}})
	contract, err := f.evaluation.Evaluate(f.dbc(), EvaluationQuery{ShopID: shop.CanonicalID, Mode: evaluation.ModeContract})
	require.NoError(t, err)
	require.Len(t, contract.Contract, 1)
	require.Equal(t, "Payback", contract.Contract[0].Program)
	require.Empty(t, contract.Programs)

	shopping, err := f.evaluation.Evaluate(f.dbc(), EvaluationQuery{ShopID: shop.CanonicalID, Amount: amount("50")})
	require.NoError(t, err)
	require.Len(t, shopping.Programs, 1)
	require.Equal(t, "Miles", shopping.Programs[0].Program)
}

func TestMergedShopsEvaluateTogether(t *testing.T) {
	f := newFixture(t)
	a := f.ingest(ShopData{Name: "Galeria", Source: "Payback", SourceID: pointers.String("g-1"), Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(1), PointValueEUR: pointers.Float64(0.01)},
	}})
	b := f.ingest(ShopData{Name: "Karstadt", Source: "Miles", SourceID: pointers.String("k-1"), Rates: []RateEntry{
		{Program: "Miles", PointsPerEUR: pointers.Float64(2), PointValueEUR: pointers.Float64(0.01)},
	}})
	require.NotEqual(t, a.CanonicalID, b.CanonicalID)

	_, err := f.identity.Merge(f.dbc(), b.CanonicalID, a.CanonicalID, nil)
	require.NoError(t, err)

	handles, err := f.legacy.ListByCanonical(f.dbc(), a.CanonicalID)
	require.NoError(t, err)
	require.Len(t, handles, 2)

	viaA, err := f.evaluation.Evaluate(f.dbc(), EvaluationQuery{ShopID: a.CanonicalID, Amount: amount("100")})
	require.NoError(t, err)
	viaB, err := f.evaluation.Evaluate(f.dbc(), EvaluationQuery{ShopID: b.CanonicalID, Amount: amount("100")})
	require.NoError(t, err)

	require.Equal(t, a.CanonicalID, viaA.Shop.CanonicalID)
	require.Equal(t, a.CanonicalID, viaB.Shop.CanonicalID)
	require.Len(t, viaA.Programs, 2)
	require.Len(t, viaB.Programs, 2)
	require.NotNil(t, programByName(viaA, "Miles"))
	require.Equal(t, "Miles", viaA.Programs[0].Program)
}

func TestEvaluateUnknownShop(t *testing.T) {
	f := newFixture(t)
	_, err := f.evaluation.Evaluate(f.dbc(), EvaluationQuery{ShopID: uuid.New()})
	require.ErrorIs(t, err, ErrShopNotFound)
}
