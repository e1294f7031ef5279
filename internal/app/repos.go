package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type Repos struct {
	CanonicalShop repos.CanonicalShopRepo
	ShopVariant   repos.ShopVariantRepo
	LegacyShop    repos.LegacyShopRepo
	ShopURL       repos.ShopURLRepo

	BonusProgram repos.BonusProgramRepo
	ShopCategory repos.ShopCategoryRepo
	Rate         repos.ShopProgramRateRepo
	Coupon       repos.CouponRepo

	Proposal      repos.ProposalRepo
	ProposalVote  repos.ProposalVoteRepo
	ProposalAudit repos.ProposalAuditLogRepo

	User            repos.UserRepo
	FavoriteProgram repos.UserFavoriteProgramRepo
	JobRun          repos.JobRunRepo
	JobRunEvent     repos.JobRunEventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		CanonicalShop: repos.NewCanonicalShopRepo(db, log),
		ShopVariant:   repos.NewShopVariantRepo(db, log),
		LegacyShop:    repos.NewLegacyShopRepo(db, log),
		ShopURL:       repos.NewShopURLRepo(db, log),

		BonusProgram: repos.NewBonusProgramRepo(db, log),
		ShopCategory: repos.NewShopCategoryRepo(db, log),
		Rate:         repos.NewShopProgramRateRepo(db, log),
		Coupon:       repos.NewCouponRepo(db, log),

		Proposal:      repos.NewProposalRepo(db, log),
		ProposalVote:  repos.NewProposalVoteRepo(db, log),
		ProposalAudit: repos.NewProposalAuditLogRepo(db, log),

		User:            repos.NewUserRepo(db, log),
		FavoriteProgram: repos.NewUserFavoriteProgramRepo(db, log),
		JobRun:          repos.NewJobRunRepo(db, log),
		JobRunEvent:     repos.NewJobRunEventRepo(db, log),
	}
}
