package evaluation

import (
	"strings"

	"github.com/shopspring/decimal"

	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
)

// ParseAmount reads a purchase amount. Blank input means no amount. A comma
// decimal separator is accepted.
func ParseAmount(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	raw = strings.ReplaceAll(raw, " ", "")
	if strings.Contains(raw, ",") && !strings.Contains(raw, ".") {
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Invalid("amount must be a decimal number")
	}
	if d.IsNegative() {
		return nil, apperr.Invalid("amount must not be negative")
	}
	return &d, nil
}

// ContractBonusText describes a contract rate, e.g. "5000 points + 50.00 EUR".
func ContractBonusText(r Rate) string {
	var parts []string
	if r.PointsAbsolute != nil {
		parts = append(parts, formatNumber(*r.PointsAbsolute)+" points")
	}
	if r.PointsPerEUR != nil {
		parts = append(parts, formatNumber(*r.PointsPerEUR)+" points/EUR")
	}
	if r.CashbackAbsolute != nil {
		parts = append(parts, decimal.NewFromFloat(*r.CashbackAbsolute).StringFixed(2)+" EUR")
	}
	if r.CashbackPct != nil {
		parts = append(parts, formatNumber(*r.CashbackPct)+"% cashback")
	}
	return strings.Join(parts, " + ")
}

func formatNumber(f float64) string {
	return decimal.NewFromFloat(f).Round(2).String()
}
