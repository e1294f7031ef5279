package domain

import (
	"github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	"github.com/yungbote/bonusfinder-backend/internal/domain/program"
	"github.com/yungbote/bonusfinder-backend/internal/domain/proposal"
	"github.com/yungbote/bonusfinder-backend/internal/domain/shop"
	"github.com/yungbote/bonusfinder-backend/internal/domain/user"
)

type CanonicalShop = shop.CanonicalShop
type ShopVariant = shop.ShopVariant
type LegacyShop = shop.LegacyShop
type ShopURL = shop.ShopURL

type BonusProgram = program.BonusProgram
type ShopCategory = program.ShopCategory
type ShopProgramRate = program.ShopProgramRate
type Coupon = program.Coupon

type Proposal = proposal.Proposal
type ProposalVote = proposal.ProposalVote
type ProposalAuditLog = proposal.ProposalAuditLog

type User = user.User
type UserFavoriteProgram = user.UserFavoriteProgram

type JobRun = jobs.JobRun
type JobRunEvent = jobs.JobRunEvent

// AllModels lists every persisted model in migration order.
func AllModels() []any {
	return []any{
		&User{},
		&UserFavoriteProgram{},

		&CanonicalShop{},
		&ShopVariant{},
		&LegacyShop{},
		&ShopURL{},

		&BonusProgram{},
		&ShopCategory{},
		&ShopProgramRate{},
		&Coupon{},

		&Proposal{},
		&ProposalVote{},
		&ProposalAuditLog{},

		&JobRun{},
		&JobRunEvent{},
	}
}
