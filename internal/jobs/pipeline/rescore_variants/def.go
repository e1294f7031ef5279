package rescore_variants

import (
	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

type Pipeline struct {
	log      *logger.Logger
	identity services.ShopIdentityService
}

func New(baseLog *logger.Logger, identity services.ShopIdentityService) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", jobsdomain.TypeRescoreVariants),
		identity: identity,
	}
}

func (p *Pipeline) Type() string { return jobsdomain.TypeRescoreVariants }
