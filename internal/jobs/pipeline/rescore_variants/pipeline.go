package rescore_variants

import (
	"fmt"

	jobrt "github.com/yungbote/bonusfinder-backend/internal/jobs/runtime"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if err := jc.CheckCancelled(); err != nil {
		return err
	}
	jc.Progress("rescore", 10, "Rescoring shop name variants")
	n, err := p.identity.RescoreVariants(dbctx.Context{Ctx: jc.Ctx})
	if err != nil {
		return fmt.Errorf("rescore: %w", err)
	}
	p.log.Info("Variants rescored", "job_id", jc.Job.ID, "updated", n)
	jc.Succeed("done", map[string]any{"variants_updated": n})
	return nil
}
