package expire_coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	"github.com/yungbote/bonusfinder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	programdomain "github.com/yungbote/bonusfinder-backend/internal/domain/program"
	jobrt "github.com/yungbote/bonusfinder-backend/internal/jobs/runtime"
)

func TestRunExpiresOnlyPastCoupons(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := testutil.SeedCoupon(t, ctx, db, &types.Coupon{
		CouponType: programdomain.CouponTypeMultiplier,
		Value:      2,
		ValidFrom:  now.Add(-72 * time.Hour),
		ValidTo:    now.Add(-time.Hour),
	})
	current := testutil.SeedCoupon(t, ctx, db, &types.Coupon{
		CouponType: programdomain.CouponTypeDiscount,
		Value:      5,
	})

	p := New(log, repos.NewCouponRepo(db, log))
	job := &types.JobRun{ID: uuid.New(), JobType: jobsdomain.TypeExpireCoupons, Status: jobsdomain.StatusRunning}
	if err := p.Run(jobrt.NewContext(ctx, db, job, nil, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Status != jobsdomain.StatusSuccess {
		t.Fatalf("expected success, got %s", job.Status)
	}

	var got []types.Coupon
	if err := db.Order("created_at ASC").Find(&got).Error; err != nil {
		t.Fatalf("load coupons: %v", err)
	}
	status := map[uuid.UUID]string{}
	for _, c := range got {
		status[c.ID] = c.Status
	}
	if status[past.ID] != programdomain.CouponStatusExpired {
		t.Fatalf("expected past coupon expired, got %s", status[past.ID])
	}
	if status[current.ID] != programdomain.CouponStatusActive {
		t.Fatalf("expected current coupon active, got %s", status[current.ID])
	}
}
