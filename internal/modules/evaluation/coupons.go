package evaluation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	programdomain "github.com/yungbote/bonusfinder-backend/internal/domain/program"
)

// DefaultCoupons picks the best coupon for every program that has one, plus
// the best global coupon. Multipliers beat discounts; a higher value breaks
// the tie.
func DefaultCoupons(coupons []Coupon) []Coupon {
	best := map[uuid.UUID]Coupon{}
	var order []uuid.UUID
	var global *Coupon
	for _, c := range coupons {
		if c.ProgramID == nil {
			if global == nil || betterCoupon(c, *global) {
				cc := c
				global = &cc
			}
			continue
		}
		pid := *c.ProgramID
		cur, ok := best[pid]
		if !ok {
			order = append(order, pid)
			best[pid] = c
			continue
		}
		if betterCoupon(c, cur) {
			best[pid] = c
		}
	}
	out := make([]Coupon, 0, len(order)+1)
	for _, pid := range order {
		out = append(out, best[pid])
	}
	if global != nil {
		out = append(out, *global)
	}
	return out
}

func betterCoupon(a, b Coupon) bool {
	am := a.Type == programdomain.CouponTypeMultiplier
	bm := b.Type == programdomain.CouponTypeMultiplier
	if am != bm {
		return am
	}
	return a.Value > b.Value
}

// pickCoupons keeps the available coupons named in ids, in available order.
// Unknown or inactive ids are dropped.
func pickCoupons(available []Coupon, ids []uuid.UUID) []Coupon {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Coupon
	for _, c := range available {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func applicableCoupons(selected []Coupon, programID uuid.UUID) []Coupon {
	var out []Coupon
	for _, c := range selected {
		if c.ProgramID == nil || *c.ProgramID == programID {
			out = append(out, c)
		}
	}
	return out
}

// stack composes multipliers multiplicatively and sums discounts.
func stack(coupons []Coupon) (multiplier, discountPct float64) {
	multiplier = 1
	for _, c := range coupons {
		switch c.Type {
		case programdomain.CouponTypeMultiplier:
			multiplier *= c.Value
		case programdomain.CouponTypeDiscount:
			discountPct += c.Value
		}
	}
	return multiplier, discountPct
}

func couponInfo(coupons []Coupon) string {
	parts := make([]string, 0, len(coupons))
	for _, c := range coupons {
		switch c.Type {
		case programdomain.CouponTypeMultiplier:
			parts = append(parts, fmt.Sprintf("%s (%sx)", c.Name, formatNumber(c.Value)))
		case programdomain.CouponTypeDiscount:
			parts = append(parts, fmt.Sprintf("%s (%s%%)", c.Name, formatNumber(c.Value)))
		}
	}
	return strings.Join(parts, ", ")
}
