// Package evaluation ranks bonus programs for one shop purchase. It is pure:
// callers load rates, programs and coupons and pass them in.
package evaluation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	programdomain "github.com/yungbote/bonusfinder-backend/internal/domain/program"
)

const (
	ModeShopping = "shopping"
	ModeContract = "contract"
)

// ErrUnknownProgram marks a rate whose program was not passed in.
var ErrUnknownProgram = errors.New("rate references an unknown program")

type Program struct {
	ID            uuid.UUID
	Name          string
	PointValueEUR float64
}

// Rate is one open rate row, or a phantom built from the caller's own pending
// proposal when IsProposal is set.
type Rate struct {
	ID               uuid.UUID
	ShopID           uuid.UUID
	ProgramID        uuid.UUID
	Category         string
	PointsPerEUR     *float64
	PointsAbsolute   *float64
	CashbackPct      *float64
	CashbackAbsolute *float64
	RateType         string
	RateNote         *string
	IsProposal       bool
}

func (r Rate) hasEconomics() bool {
	return r.PointsPerEUR != nil || r.PointsAbsolute != nil || r.CashbackPct != nil || r.CashbackAbsolute != nil
}

func (r Rate) isContract() bool {
	return r.RateType == programdomain.RateTypeContract
}

type Coupon struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"coupon_type"`
	Value      float64    `json:"value"`
	Name       string     `json:"name"`
	ShopID     *uuid.UUID `json:"shop_id,omitempty"`
	ProgramID  *uuid.UUID `json:"program_id,omitempty"`
	Combinable bool       `json:"combinable"`
}

type Input struct {
	Mode     string
	Amount   *decimal.Decimal
	Programs map[uuid.UUID]Program
	Rates    []Rate
	// Coupons are the active coupons for the shop; selection only picks from
	// this set.
	Coupons           []Coupon
	SelectedCouponIDs []uuid.UUID
	DefaultCoupons    bool
}

type Category struct {
	RateID           uuid.UUID `json:"rate_id"`
	Category         string    `json:"category,omitempty"`
	PointsPerEUR     *float64  `json:"points_per_eur,omitempty"`
	PointsAbsolute   *float64  `json:"points_absolute,omitempty"`
	CashbackPct      *float64  `json:"cashback_pct,omitempty"`
	CashbackAbsolute *float64  `json:"cashback_absolute,omitempty"`
	RateNote         *string   `json:"rate_note,omitempty"`
	PerEuro          float64   `json:"per_euro"`

	Points         *float64 `json:"points,omitempty"`
	Cashback       *float64 `json:"cashback,omitempty"`
	Euros          *float64 `json:"euros,omitempty"`
	CouponPoints   *float64 `json:"coupon_points,omitempty"`
	CouponCashback *float64 `json:"coupon_cashback,omitempty"`
	CouponEuros    *float64 `json:"coupon_euros,omitempty"`
	CouponInfo     string   `json:"coupon_info,omitempty"`
	IsProposal     bool     `json:"is_proposal,omitempty"`
}

type ProgramResult struct {
	ProgramID     uuid.UUID  `json:"program_id"`
	Program       string     `json:"program"`
	PointValueEUR float64    `json:"point_value_eur"`
	BestValue     *float64   `json:"best_value"`
	Categories    []Category `json:"categories"`
}

type ContractEntry struct {
	ProgramID  uuid.UUID `json:"program_id"`
	Program    string    `json:"program"`
	Bonus      string    `json:"bonus"`
	Note       string    `json:"note,omitempty"`
	IsProposal bool      `json:"is_proposal,omitempty"`
}

type Result struct {
	Mode              string          `json:"mode"`
	Amount            *float64        `json:"amount,omitempty"`
	Programs          []ProgramResult `json:"programs,omitempty"`
	Contract          []ContractEntry `json:"contract,omitempty"`
	Coupons           []Coupon        `json:"coupons"`
	SelectedCouponIDs []uuid.UUID     `json:"selected_coupon_ids"`
}

// Evaluate scores in.Rates. Without an amount the programs are ranked by
// their per-euro value and no euro amounts are filled in. Every rate's
// program must be present in in.Programs.
func Evaluate(in Input) (Result, error) {
	for _, r := range in.Rates {
		if _, ok := in.Programs[r.ProgramID]; !ok {
			return Result{}, fmt.Errorf("%w: rate %s, program %s", ErrUnknownProgram, r.ID, r.ProgramID)
		}
	}
	mode := strings.ToLower(strings.TrimSpace(in.Mode))
	if mode != ModeContract {
		mode = ModeShopping
	}
	out := Result{Mode: mode, Coupons: in.Coupons}
	if mode == ModeContract {
		out.Contract = contractEntries(in)
		out.Coupons = nil
		out.SelectedCouponIDs = []uuid.UUID{}
		return out, nil
	}

	rates := make([]Rate, 0, len(in.Rates))
	for _, r := range in.Rates {
		if r.isContract() || !r.hasEconomics() {
			continue
		}
		rates = append(rates, r)
	}

	var selected []Coupon
	if in.DefaultCoupons {
		selected = DefaultCoupons(in.Coupons)
	} else {
		selected = pickCoupons(in.Coupons, in.SelectedCouponIDs)
	}
	out.SelectedCouponIDs = make([]uuid.UUID, 0, len(selected))
	for _, c := range selected {
		out.SelectedCouponIDs = append(out.SelectedCouponIDs, c.ID)
	}

	var amount float64
	if in.Amount != nil {
		amount = in.Amount.InexactFloat64()
		out.Amount = round2Ptr(amount)
	}

	byProgram := map[uuid.UUID]*ProgramResult{}
	var order []uuid.UUID
	for _, r := range rates {
		prog := in.Programs[r.ProgramID]
		pr := byProgram[r.ProgramID]
		if pr == nil {
			pr = &ProgramResult{
				ProgramID:     prog.ID,
				Program:       prog.Name,
				PointValueEUR: prog.PointValueEUR,
			}
			byProgram[r.ProgramID] = pr
			order = append(order, r.ProgramID)
		}
		cat := baseCategory(r, prog)
		value := cat.PerEuro
		if in.Amount != nil {
			value = scoreAmount(&cat, r, prog, amount, applicableCoupons(selected, r.ProgramID))
		}
		if !r.IsProposal && (pr.BestValue == nil || value > *pr.BestValue) {
			v := value
			pr.BestValue = &v
		}
		pr.Categories = append(pr.Categories, cat)
	}

	out.Programs = make([]ProgramResult, 0, len(order))
	for _, id := range order {
		pr := byProgram[id]
		if pr.BestValue != nil {
			places := int32(2)
			if in.Amount == nil {
				places = perEuroPlaces
			}
			v := roundTo(*pr.BestValue, places)
			pr.BestValue = &v
		}
		out.Programs = append(out.Programs, *pr)
	}
	rankPrograms(out.Programs)
	return out, nil
}

func baseCategory(r Rate, prog Program) Category {
	return Category{
		RateID:           r.ID,
		Category:         r.Category,
		PointsPerEUR:     r.PointsPerEUR,
		PointsAbsolute:   r.PointsAbsolute,
		CashbackPct:      r.CashbackPct,
		CashbackAbsolute: r.CashbackAbsolute,
		RateNote:         r.RateNote,
		PerEuro:          roundTo(perEuro(r, prog), perEuroPlaces),
		IsProposal:       r.IsProposal,
	}
}

// perEuro is the effective euro value of spending one euro, ignoring
// absolute bonuses and coupons.
func perEuro(r Rate, prog Program) float64 {
	return val(r.PointsPerEUR)*prog.PointValueEUR + val(r.CashbackPct)/100
}

// scoreAmount fills the euro fields of cat and returns the value that counts
// towards the program's best_value.
func scoreAmount(cat *Category, r Rate, prog Program, amount float64, coupons []Coupon) float64 {
	points := amount*val(r.PointsPerEUR) + val(r.PointsAbsolute)
	cashback := amount*val(r.CashbackPct)/100 + val(r.CashbackAbsolute)
	euros := points*prog.PointValueEUR + cashback

	cat.Points = round2Ptr(points)
	cat.Cashback = round2Ptr(cashback)
	cat.Euros = round2Ptr(euros)
	if len(coupons) == 0 {
		return euros
	}

	multiplier, discountPct := stack(coupons)
	couponPoints := points * multiplier
	couponCashback := cashback + amount*discountPct/100
	couponEuros := couponPoints*prog.PointValueEUR + couponCashback

	cat.CouponPoints = round2Ptr(couponPoints)
	cat.CouponCashback = round2Ptr(couponCashback)
	cat.CouponEuros = round2Ptr(couponEuros)
	cat.CouponInfo = couponInfo(coupons)
	return couponEuros
}

// rankPrograms orders by best_value descending, programs without a value
// last, and program name among equals.
func rankPrograms(programs []ProgramResult) {
	sort.SliceStable(programs, func(i, j int) bool {
		return strings.ToLower(programs[i].Program) < strings.ToLower(programs[j].Program)
	})
	sort.SliceStable(programs, func(i, j int) bool {
		a, b := programs[i].BestValue, programs[j].BestValue
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
}

func contractEntries(in Input) []ContractEntry {
	out := []ContractEntry{}
	for _, r := range in.Rates {
		if !r.isContract() {
			continue
		}
		prog := in.Programs[r.ProgramID]
		bonus := ContractBonusText(r)
		note := strings.TrimSpace(val(r.RateNote))
		if bonus == "" && note == "" {
			continue
		}
		out = append(out, ContractEntry{
			ProgramID:  prog.ID,
			Program:    prog.Name,
			Bonus:      bonus,
			Note:       note,
			IsProposal: r.IsProposal,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Program) < strings.ToLower(out[j].Program)
	})
	return out
}

func val[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// Per-euro values are fractions of a cent, so they keep more places than
// euro amounts.
const perEuroPlaces = 4

func roundTo(f float64, places int32) float64 {
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}

func round2(f float64) float64 {
	return roundTo(f, 2)
}

func round2Ptr(f float64) *float64 {
	v := round2(f)
	return &v
}
