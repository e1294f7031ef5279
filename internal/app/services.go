package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/pkg/fuzzy"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

type Services struct {
	Auth       services.AuthService
	User       services.UserService
	Identity   services.ShopIdentityService
	Registry   services.ProgramRegistry
	Rates      services.RateStore
	Ingestion  services.IngestionService
	Proposal   services.ProposalService
	Evaluation services.EvaluationService
	ShopQuery  services.ShopQueryService
	Jobs       services.JobService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) Services {
	log.Info("Wiring services...")

	identity := services.NewShopIdentityService(
		db, log, fuzzy.New(),
		r.CanonicalShop, r.ShopVariant, r.LegacyShop, r.ShopURL,
		c.Publisher,
	)
	registry := services.NewProgramRegistry(db, log, r.BonusProgram, r.ShopCategory)
	rates := services.NewRateStore(db, log, r.Rate)

	return Services{
		Auth:      services.NewAuthService(db, log, r.User, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		User:      services.NewUserService(db, log, r.User, r.FavoriteProgram, r.BonusProgram),
		Identity:  identity,
		Registry:  registry,
		Rates:     rates,
		Ingestion: services.NewIngestionService(db, log, identity, registry, rates, c.Publisher),
		Proposal: services.NewProposalService(db, log, services.ProposalServiceDeps{
			Proposals: r.Proposal,
			Votes:     r.ProposalVote,
			Audit:     r.ProposalAudit,
			Users:     r.User,
			Shops:     r.CanonicalShop,
			Legacy:    r.LegacyShop,
			URLs:      r.ShopURL,
			Programs:  r.BonusProgram,
			Coupons:   r.Coupon,
			Identity:  identity,
			Registry:  registry,
			Rates:     rates,
			Publisher: c.Publisher,
		}),
		Evaluation: services.NewEvaluationService(
			log, identity, r.Rate, r.BonusProgram, r.ShopCategory, r.Coupon, r.Proposal,
		),
		ShopQuery: services.NewShopQueryService(
			log, r.CanonicalShop, r.ShopURL, identity, rates, r.Rate, r.BonusProgram, r.ShopCategory,
		),
		Jobs: services.NewJobService(db, log, r.JobRun, r.JobRunEvent, c.Dispatcher()),
	}
}
