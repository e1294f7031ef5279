package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	shopdomain "github.com/yungbote/bonusfinder-backend/internal/domain/shop"
	userdomain "github.com/yungbote/bonusfinder-backend/internal/domain/user"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, username, role string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: "x",
		Role:         role,
		Status:       userdomain.StatusActive,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedCanonicalShop(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, createdAt time.Time) *types.CanonicalShop {
	tb.Helper()
	s := &types.CanonicalShop{
		ID:                 uuid.New(),
		CanonicalName:      name,
		CanonicalNameLower: strings.ToLower(name),
		Status:             shopdomain.StatusActive,
		CreatedAt:          createdAt.UTC(),
		UpdatedAt:          createdAt.UTC(),
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed canonical shop: %v", err)
	}
	return s
}

func SeedLegacyShop(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, canonicalID *uuid.UUID) *types.LegacyShop {
	tb.Helper()
	s := &types.LegacyShop{
		ID:              uuid.New(),
		Name:            name,
		CanonicalShopID: canonicalID,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed legacy shop: %v", err)
	}
	return s
}

func SeedVariant(tb testing.TB, ctx context.Context, tx *gorm.DB, canonicalID uuid.UUID, source, sourceName string, sourceID *string, confidence float64) *types.ShopVariant {
	tb.Helper()
	v := &types.ShopVariant{
		ID:              uuid.New(),
		CanonicalShopID: canonicalID,
		Source:          source,
		SourceName:      sourceName,
		SourceID:        sourceID,
		ConfidenceScore: confidence,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed variant: %v", err)
	}
	return v
}

func SeedProgram(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, pointValueEUR float64) *types.BonusProgram {
	tb.Helper()
	p := &types.BonusProgram{
		ID:            uuid.New(),
		Name:          name,
		PointValueEUR: pointValueEUR,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed program: %v", err)
	}
	return p
}

// SeedRate inserts rate as given. ValidFrom defaults to an hour ago.
func SeedRate(tb testing.TB, ctx context.Context, tx *gorm.DB, rate *types.ShopProgramRate) *types.ShopProgramRate {
	tb.Helper()
	if rate.ValidFrom.IsZero() {
		rate.ValidFrom = time.Now().UTC().Add(-time.Hour)
	}
	if err := tx.WithContext(ctx).Create(rate).Error; err != nil {
		tb.Fatalf("seed rate: %v", err)
	}
	return rate
}

func SeedCoupon(tb testing.TB, ctx context.Context, tx *gorm.DB, c *types.Coupon) *types.Coupon {
	tb.Helper()
	now := time.Now().UTC()
	if c.ValidFrom.IsZero() {
		c.ValidFrom = now.Add(-24 * time.Hour)
	}
	if c.ValidTo.IsZero() {
		c.ValidTo = now.Add(24 * time.Hour)
	}
	if c.Name == "" {
		c.Name = "coupon"
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed coupon: %v", err)
	}
	return c
}

func SeedProposal(tb testing.TB, ctx context.Context, tx *gorm.DB, p *types.Proposal) *types.Proposal {
	tb.Helper()
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed proposal: %v", err)
	}
	return p
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

func PtrFloat(v float64) *float64 { return &v }

func PtrString(v string) *string { return &v }
