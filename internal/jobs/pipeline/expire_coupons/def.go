package expire_coupons

import (
	"time"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type Pipeline struct {
	log     *logger.Logger
	coupons repos.CouponRepo
	now     func() time.Time
}

func New(baseLog *logger.Logger, coupons repos.CouponRepo) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("job", jobsdomain.TypeExpireCoupons),
		coupons: coupons,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *Pipeline) Type() string { return jobsdomain.TypeExpireCoupons }
