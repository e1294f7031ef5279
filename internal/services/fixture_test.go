package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	"github.com/yungbote/bonusfinder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/events"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/fuzzy"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
)

// fixture wires every service against a private in-memory database.
type fixture struct {
	t  *testing.T
	db *gorm.DB

	shops      repos.CanonicalShopRepo
	variants   repos.ShopVariantRepo
	legacy     repos.LegacyShopRepo
	urls       repos.ShopURLRepo
	programs   repos.BonusProgramRepo
	categories repos.ShopCategoryRepo
	rateRows   repos.ShopProgramRateRepo
	coupons    repos.CouponRepo
	proposals  repos.ProposalRepo
	votes      repos.ProposalVoteRepo
	audit      repos.ProposalAuditLogRepo
	users      repos.UserRepo
	favorites  repos.UserFavoriteProgramRepo
	jobRuns    repos.JobRunRepo
	jobEvents  repos.JobRunEventRepo

	events     *events.Recorder
	identity   ShopIdentityService
	registry   ProgramRegistry
	rates      RateStore
	ingestion  IngestionService
	proposal   ProposalService
	evaluation EvaluationService
	query      ShopQueryService
	account    UserService
	auth       AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &fixture{
		t:          t,
		db:         db,
		shops:      repos.NewCanonicalShopRepo(db, log),
		variants:   repos.NewShopVariantRepo(db, log),
		legacy:     repos.NewLegacyShopRepo(db, log),
		urls:       repos.NewShopURLRepo(db, log),
		programs:   repos.NewBonusProgramRepo(db, log),
		categories: repos.NewShopCategoryRepo(db, log),
		rateRows:   repos.NewShopProgramRateRepo(db, log),
		coupons:    repos.NewCouponRepo(db, log),
		proposals:  repos.NewProposalRepo(db, log),
		votes:      repos.NewProposalVoteRepo(db, log),
		audit:      repos.NewProposalAuditLogRepo(db, log),
		users:      repos.NewUserRepo(db, log),
		favorites:  repos.NewUserFavoriteProgramRepo(db, log),
		jobRuns:    repos.NewJobRunRepo(db, log),
		jobEvents:  repos.NewJobRunEventRepo(db, log),
		events:     events.NewRecorder(),
	}
	f.identity = NewShopIdentityService(db, log, fuzzy.New(), f.shops, f.variants, f.legacy, f.urls, f.events)
	f.registry = NewProgramRegistry(db, log, f.programs, f.categories)
	f.rates = NewRateStore(db, log, f.rateRows)
	f.ingestion = NewIngestionService(db, log, f.identity, f.registry, f.rates, f.events)
	f.proposal = NewProposalService(db, log, ProposalServiceDeps{
		Proposals: f.proposals,
		Votes:     f.votes,
		Audit:     f.audit,
		Users:     f.users,
		Shops:     f.shops,
		Legacy:    f.legacy,
		URLs:      f.urls,
		Programs:  f.programs,
		Coupons:   f.coupons,
		Identity:  f.identity,
		Registry:  f.registry,
		Rates:     f.rates,
		Publisher: f.events,
	})
	f.evaluation = NewEvaluationService(log, f.identity, f.rateRows, f.programs, f.categories, f.coupons, f.proposals)
	f.query = NewShopQueryService(log, f.shops, f.urls, f.identity, f.rates, f.rateRows, f.programs, f.categories)
	f.account = NewUserService(db, log, f.users, f.favorites, f.programs)
	f.auth = NewAuthService(db, log, f.users, "test-secret", 0)
	return f
}

func (f *fixture) dbc() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }

func (f *fixture) user(name, role string) *types.User {
	f.t.Helper()
	return testutil.SeedUser(f.t, context.Background(), f.db, name, role)
}

func (f *fixture) ingest(data ShopData) *IngestResult {
	f.t.Helper()
	res, err := f.ingestion.Ingest(context.Background(), data)
	if err != nil {
		f.t.Fatalf("Ingest %q: %v", data.Name, err)
	}
	return res
}

func (f *fixture) openRates(shopIDs ...uuid.UUID) []*types.ShopProgramRate {
	f.t.Helper()
	rows, err := f.rateRows.ListOpenByShopIDs(f.dbc(), shopIDs)
	if err != nil {
		f.t.Fatalf("ListOpenByShopIDs: %v", err)
	}
	return rows
}
