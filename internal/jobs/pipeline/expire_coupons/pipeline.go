package expire_coupons

import (
	"fmt"

	jobrt "github.com/yungbote/bonusfinder-backend/internal/jobs/runtime"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
)

// Run flips active coupons whose valid_to has passed to expired.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	n, err := p.coupons.ExpireBefore(dbctx.Context{Ctx: jc.Ctx}, p.now())
	if err != nil {
		return fmt.Errorf("expire coupons: %w", err)
	}
	if n > 0 {
		p.log.Info("Coupons expired", "job_id", jc.Job.ID, "count", n)
	}
	jc.Succeed("done", map[string]any{"expired": n})
	return nil
}
