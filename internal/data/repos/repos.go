package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos/jobs"
	"github.com/yungbote/bonusfinder-backend/internal/data/repos/program"
	"github.com/yungbote/bonusfinder-backend/internal/data/repos/proposal"
	"github.com/yungbote/bonusfinder-backend/internal/data/repos/shop"
	"github.com/yungbote/bonusfinder-backend/internal/data/repos/user"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type CanonicalShopRepo = shop.CanonicalShopRepo
type ShopVariantRepo = shop.ShopVariantRepo
type LegacyShopRepo = shop.LegacyShopRepo
type ShopURLRepo = shop.ShopURLRepo

type BonusProgramRepo = program.BonusProgramRepo
type ShopCategoryRepo = program.ShopCategoryRepo
type ShopProgramRateRepo = program.ShopProgramRateRepo
type CouponRepo = program.CouponRepo

type ProposalRepo = proposal.ProposalRepo
type ProposalListFilter = proposal.ListFilter
type ProposalVoteRepo = proposal.ProposalVoteRepo
type ProposalAuditLogRepo = proposal.ProposalAuditLogRepo

type UserRepo = user.UserRepo
type UserFavoriteProgramRepo = user.UserFavoriteProgramRepo

type JobRunRepo = jobs.JobRunRepo
type JobRunEventRepo = jobs.JobRunEventRepo

func NewCanonicalShopRepo(db *gorm.DB, baseLog *logger.Logger) CanonicalShopRepo {
	return shop.NewCanonicalShopRepo(db, baseLog)
}
func NewShopVariantRepo(db *gorm.DB, baseLog *logger.Logger) ShopVariantRepo {
	return shop.NewShopVariantRepo(db, baseLog)
}
func NewLegacyShopRepo(db *gorm.DB, baseLog *logger.Logger) LegacyShopRepo {
	return shop.NewLegacyShopRepo(db, baseLog)
}
func NewShopURLRepo(db *gorm.DB, baseLog *logger.Logger) ShopURLRepo {
	return shop.NewShopURLRepo(db, baseLog)
}

func NewBonusProgramRepo(db *gorm.DB, baseLog *logger.Logger) BonusProgramRepo {
	return program.NewBonusProgramRepo(db, baseLog)
}
func NewShopCategoryRepo(db *gorm.DB, baseLog *logger.Logger) ShopCategoryRepo {
	return program.NewShopCategoryRepo(db, baseLog)
}
func NewShopProgramRateRepo(db *gorm.DB, baseLog *logger.Logger) ShopProgramRateRepo {
	return program.NewShopProgramRateRepo(db, baseLog)
}
func NewCouponRepo(db *gorm.DB, baseLog *logger.Logger) CouponRepo {
	return program.NewCouponRepo(db, baseLog)
}

func NewProposalRepo(db *gorm.DB, baseLog *logger.Logger) ProposalRepo {
	return proposal.NewProposalRepo(db, baseLog)
}
func NewProposalVoteRepo(db *gorm.DB, baseLog *logger.Logger) ProposalVoteRepo {
	return proposal.NewProposalVoteRepo(db, baseLog)
}
func NewProposalAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) ProposalAuditLogRepo {
	return proposal.NewProposalAuditLogRepo(db, baseLog)
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }
func NewUserFavoriteProgramRepo(db *gorm.DB, baseLog *logger.Logger) UserFavoriteProgramRepo {
	return user.NewUserFavoriteProgramRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return jobs.NewJobRunEventRepo(db, baseLog)
}
