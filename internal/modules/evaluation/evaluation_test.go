package evaluation

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	programdomain "github.com/yungbote/bonusfinder-backend/internal/domain/program"
)

func f(v float64) *float64 { return &v }

func amt(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func mustEvaluate(t *testing.T, in Input) Result {
	t.Helper()
	res, err := Evaluate(in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return res
}

type fixture struct {
	payback  Program
	miles    Program
	cashback Program
	programs map[uuid.UUID]Program
}

func newFixture() fixture {
	fx := fixture{
		payback:  Program{ID: uuid.New(), Name: "Payback", PointValueEUR: 0.005},
		miles:    Program{ID: uuid.New(), Name: "Miles & More", PointValueEUR: 0.01},
		cashback: Program{ID: uuid.New(), Name: "Shoop", PointValueEUR: 0},
	}
	fx.programs = map[uuid.UUID]Program{
		fx.payback.ID:  fx.payback,
		fx.miles.ID:    fx.miles,
		fx.cashback.ID: fx.cashback,
	}
	return fx
}

func TestEvaluateStackedMultiplierCoupon(t *testing.T) {
	fx := newFixture()
	coupon := Coupon{ID: uuid.New(), Type: programdomain.CouponTypeMultiplier, Value: 20, Name: "20fach", ProgramID: &fx.payback.ID}
	res := mustEvaluate(t, Input{
		Mode:     ModeShopping,
		Amount:   amt("100"),
		Programs: fx.programs,
		Rates: []Rate{
			{ID: uuid.New(), ProgramID: fx.payback.ID, PointsPerEUR: f(1)},
			{ID: uuid.New(), ProgramID: fx.miles.ID, PointsPerEUR: f(0.5)},
			{ID: uuid.New(), ProgramID: fx.cashback.ID, CashbackPct: f(3)},
		},
		Coupons:           []Coupon{coupon},
		SelectedCouponIDs: []uuid.UUID{coupon.ID},
	})

	if len(res.Programs) != 3 {
		t.Fatalf("expected 3 programs, got %d", len(res.Programs))
	}
	top := res.Programs[0]
	if top.ProgramID != fx.payback.ID {
		t.Fatalf("expected Payback first, got %s", top.Program)
	}
	if top.BestValue == nil || *top.BestValue != 10 {
		t.Fatalf("expected best_value 10.00, got %v", top.BestValue)
	}
	cat := top.Categories[0]
	if cat.CouponPoints == nil || *cat.CouponPoints != 2000 {
		t.Fatalf("expected 2000 coupon points, got %v", cat.CouponPoints)
	}
	if cat.CouponEuros == nil || *cat.CouponEuros != 10 {
		t.Fatalf("expected 10.00 coupon euros, got %v", cat.CouponEuros)
	}
	if cat.Points == nil || *cat.Points != 100 {
		t.Fatalf("expected 100 base points, got %v", cat.Points)
	}
	if cat.CouponInfo == "" {
		t.Fatalf("expected coupon info")
	}
	// The coupon is bound to Payback and must not touch other programs.
	for _, p := range res.Programs[1:] {
		if p.Categories[0].CouponEuros != nil {
			t.Fatalf("coupon applied to %s", p.Program)
		}
	}
}

func TestStackComposesMultipliersAndSumsDiscounts(t *testing.T) {
	mult, disc := stack([]Coupon{
		{Type: programdomain.CouponTypeMultiplier, Value: 2},
		{Type: programdomain.CouponTypeMultiplier, Value: 3},
		{Type: programdomain.CouponTypeDiscount, Value: 5},
		{Type: programdomain.CouponTypeDiscount, Value: 2.5},
	})
	if mult != 6 {
		t.Fatalf("multiplier: got %v want 6", mult)
	}
	if disc != 7.5 {
		t.Fatalf("discount: got %v want 7.5", disc)
	}
}

func TestEvaluateDiscountAddsCashback(t *testing.T) {
	fx := newFixture()
	disc := Coupon{ID: uuid.New(), Type: programdomain.CouponTypeDiscount, Value: 5, Name: "5% off"}
	res := mustEvaluate(t, Input{
		Amount:            amt("200"),
		Programs:          fx.programs,
		Rates:             []Rate{{ID: uuid.New(), ProgramID: fx.cashback.ID, CashbackPct: f(2), CashbackAbsolute: f(1)}},
		Coupons:           []Coupon{disc},
		SelectedCouponIDs: []uuid.UUID{disc.ID},
	})
	cat := res.Programs[0].Categories[0]
	// 200*2% + 1 = 5; plus 200*5% = 15
	if *cat.Cashback != 5 || *cat.CouponCashback != 15 || *cat.CouponEuros != 15 {
		t.Fatalf("unexpected cashback: base=%v coupon=%v euros=%v", *cat.Cashback, *cat.CouponCashback, *cat.CouponEuros)
	}
	if res.Mode != ModeShopping {
		t.Fatalf("expected default mode shopping, got %q", res.Mode)
	}
}

func TestEvaluateWithoutAmountRanksPerEuro(t *testing.T) {
	fx := newFixture()
	res := mustEvaluate(t, Input{
		Programs: fx.programs,
		Rates: []Rate{
			{ID: uuid.New(), ProgramID: fx.payback.ID, PointsPerEUR: f(1)},   // 0.005
			{ID: uuid.New(), ProgramID: fx.miles.ID, PointsPerEUR: f(2)},     // 0.02
			{ID: uuid.New(), ProgramID: fx.cashback.ID, CashbackPct: f(1.5)}, // 0.015
		},
	})
	want := []string{"Miles & More", "Shoop", "Payback"}
	for i, name := range want {
		if res.Programs[i].Program != name {
			t.Fatalf("rank %d: got %s want %s", i, res.Programs[i].Program, name)
		}
		if res.Programs[i].Categories[0].Euros != nil {
			t.Fatalf("expected no euro values without amount")
		}
	}
	if *res.Programs[0].BestValue != 0.02 {
		t.Fatalf("expected per-euro best_value 0.02, got %v", *res.Programs[0].BestValue)
	}
}

func TestEvaluateTiesKeepProgramNameOrder(t *testing.T) {
	a := Program{ID: uuid.New(), Name: "Beta", PointValueEUR: 0.01}
	b := Program{ID: uuid.New(), Name: "alpha", PointValueEUR: 0.01}
	res := mustEvaluate(t, Input{
		Amount:   amt("10"),
		Programs: map[uuid.UUID]Program{a.ID: a, b.ID: b},
		Rates: []Rate{
			{ID: uuid.New(), ProgramID: a.ID, PointsPerEUR: f(1)},
			{ID: uuid.New(), ProgramID: b.ID, PointsPerEUR: f(1)},
		},
	})
	if res.Programs[0].Program != "alpha" || res.Programs[1].Program != "Beta" {
		t.Fatalf("unexpected tie order: %s, %s", res.Programs[0].Program, res.Programs[1].Program)
	}
}

func TestEvaluatePhantomExcludedFromBestValue(t *testing.T) {
	fx := newFixture()
	res := mustEvaluate(t, Input{
		Amount:   amt("100"),
		Programs: fx.programs,
		Rates: []Rate{
			{ID: uuid.New(), ProgramID: fx.payback.ID, PointsPerEUR: f(1)},
			{ID: uuid.New(), ProgramID: fx.payback.ID, PointsPerEUR: f(50), IsProposal: true},
			{ID: uuid.New(), ProgramID: fx.miles.ID, PointsPerEUR: f(10), IsProposal: true},
		},
	})
	if len(res.Programs) != 2 {
		t.Fatalf("expected 2 programs, got %d", len(res.Programs))
	}
	pb := res.Programs[0]
	if pb.ProgramID != fx.payback.ID || *pb.BestValue != 0.5 {
		t.Fatalf("expected Payback first with 0.50, got %s %v", pb.Program, pb.BestValue)
	}
	if len(pb.Categories) != 2 || !pb.Categories[1].IsProposal {
		t.Fatalf("expected phantom category to be listed")
	}
	if res.Programs[1].BestValue != nil {
		t.Fatalf("phantom-only program must have no best_value")
	}
}

func TestEvaluateFiltersContractAndEmptyRates(t *testing.T) {
	fx := newFixture()
	in := Input{
		Amount:   amt("50"),
		Programs: fx.programs,
		Rates: []Rate{
			{ID: uuid.New(), ProgramID: fx.payback.ID, PointsPerEUR: f(1)},
			{ID: uuid.New(), ProgramID: fx.miles.ID, PointsAbsolute: f(5000), RateType: programdomain.RateTypeContract, RateNote: ptr("new contract")},
			{ID: uuid.New(), ProgramID: fx.cashback.ID},
		},
	}
	res := mustEvaluate(t, in)
	if len(res.Programs) != 1 || res.Programs[0].ProgramID != fx.payback.ID {
		t.Fatalf("expected only the shopping rate, got %+v", res.Programs)
	}

	in.Mode = ModeContract
	res = mustEvaluate(t, in)
	if len(res.Programs) != 0 || len(res.Contract) != 1 {
		t.Fatalf("expected one contract entry, got programs=%d contract=%d", len(res.Programs), len(res.Contract))
	}
	if res.Contract[0].Bonus != "5000 points" || res.Contract[0].Note != "new contract" {
		t.Fatalf("unexpected contract entry: %+v", res.Contract[0])
	}
}

func TestDefaultCouponsPreferMultiplierThenValue(t *testing.T) {
	fx := newFixture()
	disc := Coupon{ID: uuid.New(), Type: programdomain.CouponTypeDiscount, Value: 50, ProgramID: &fx.payback.ID}
	small := Coupon{ID: uuid.New(), Type: programdomain.CouponTypeMultiplier, Value: 5, ProgramID: &fx.payback.ID}
	big := Coupon{ID: uuid.New(), Type: programdomain.CouponTypeMultiplier, Value: 10, ProgramID: &fx.payback.ID}
	milesOnly := Coupon{ID: uuid.New(), Type: programdomain.CouponTypeMultiplier, Value: 3, ProgramID: &fx.miles.ID}
	g1 := Coupon{ID: uuid.New(), Type: programdomain.CouponTypeDiscount, Value: 2}
	g2 := Coupon{ID: uuid.New(), Type: programdomain.CouponTypeDiscount, Value: 4}

	got := DefaultCoupons([]Coupon{disc, small, big, milesOnly, g1, g2})
	want := []uuid.UUID{big.ID, milesOnly.ID, g2.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %d default coupons, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("default coupon %d: got %s want %s", i, got[i].ID, id)
		}
	}
}

func TestDefaultCouponsCoverProgramsWithoutRealRates(t *testing.T) {
	fx := newFixture()
	milesOnly := Coupon{ID: uuid.New(), Type: programdomain.CouponTypeMultiplier, Value: 3, ProgramID: &fx.miles.ID}
	res := mustEvaluate(t, Input{
		Amount:   amt("100"),
		Programs: fx.programs,
		Rates: []Rate{
			{ID: uuid.New(), ProgramID: fx.payback.ID, PointsPerEUR: f(1)},
			{ID: uuid.New(), ProgramID: fx.miles.ID, PointsPerEUR: f(1), IsProposal: true},
		},
		Coupons:        []Coupon{milesOnly},
		DefaultCoupons: true,
	})
	if len(res.SelectedCouponIDs) != 1 || res.SelectedCouponIDs[0] != milesOnly.ID {
		t.Fatalf("expected the miles coupon to be preselected, got %v", res.SelectedCouponIDs)
	}
}

func TestEvaluateRejectsRateWithUnknownProgram(t *testing.T) {
	fx := newFixture()
	for _, mode := range []string{ModeShopping, ModeContract} {
		_, err := Evaluate(Input{
			Mode:     mode,
			Programs: fx.programs,
			Rates:    []Rate{{ID: uuid.New(), ProgramID: uuid.New(), PointsPerEUR: f(1)}},
		})
		if !errors.Is(err, ErrUnknownProgram) {
			t.Fatalf("%s: expected ErrUnknownProgram, got %v", mode, err)
		}
	}
}

func TestEvaluateIgnoresUnknownSelectedCoupons(t *testing.T) {
	fx := newFixture()
	res := mustEvaluate(t, Input{
		Amount:            amt("10"),
		Programs:          fx.programs,
		Rates:             []Rate{{ID: uuid.New(), ProgramID: fx.payback.ID, PointsPerEUR: f(1)}},
		SelectedCouponIDs: []uuid.UUID{uuid.New()},
	})
	if len(res.SelectedCouponIDs) != 0 {
		t.Fatalf("expected no selected coupons, got %v", res.SelectedCouponIDs)
	}
	if res.Programs[0].Categories[0].CouponEuros != nil {
		t.Fatalf("expected no coupon values")
	}
}

func TestZeroPointValueContributesNothing(t *testing.T) {
	fx := newFixture()
	res := mustEvaluate(t, Input{
		Amount:   amt("100"),
		Programs: fx.programs,
		Rates:    []Rate{{ID: uuid.New(), ProgramID: fx.cashback.ID, PointsPerEUR: f(3), CashbackPct: f(1)}},
	})
	if *res.Programs[0].BestValue != 1 {
		t.Fatalf("expected 1.00 from cashback only, got %v", *res.Programs[0].BestValue)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantNil bool
		wantErr bool
	}{
		{in: "", wantNil: true},
		{in: "  ", wantNil: true},
		{in: "100", want: "100"},
		{in: "12,50", want: "12.5"},
		{in: "abc", wantErr: true},
		{in: "-3", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if tc.wantNil {
			if got != nil {
				t.Fatalf("%q: expected nil amount", tc.in)
			}
			continue
		}
		if got.String() != tc.want {
			t.Fatalf("%q: got %s want %s", tc.in, got.String(), tc.want)
		}
	}
}

func TestContractBonusText(t *testing.T) {
	got := ContractBonusText(Rate{PointsAbsolute: f(5000), CashbackAbsolute: f(50), CashbackPct: f(2)})
	want := "5000 points + 50.00 EUR + 2% cashback"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func ptr(s string) *string { return &s }
