package proposal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type ProposalVoteRepo interface {
	Upsert(dbc dbctx.Context, vote *types.ProposalVote) error
	SumPositiveWeight(dbc dbctx.Context, proposalID uuid.UUID) (int, error)
	ListByProposal(dbc dbctx.Context, proposalID uuid.UUID) ([]*types.ProposalVote, error)
}

type proposalVoteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProposalVoteRepo(db *gorm.DB, baseLog *logger.Logger) ProposalVoteRepo {
	return &proposalVoteRepo{db: db, log: baseLog.With("repo", "ProposalVoteRepo")}
}

// Upsert records a vote; a voter's later vote replaces the earlier one.
func (r *proposalVoteRepo) Upsert(dbc dbctx.Context, vote *types.ProposalVote) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	vote.UpdatedAt = time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "proposal_id"}, {Name: "voter_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"vote", "vote_weight", "updated_at"}),
		}).
		Create(vote).Error
}

func (r *proposalVoteRepo) SumPositiveWeight(dbc dbctx.Context, proposalID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var sum int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.ProposalVote{}).
		Where("proposal_id = ? AND vote > 0", proposalID).
		Select("COALESCE(SUM(vote_weight), 0)").
		Scan(&sum).Error
	return int(sum), err
}

func (r *proposalVoteRepo) ListByProposal(dbc dbctx.Context, proposalID uuid.UUID) ([]*types.ProposalVote, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProposalVote
	if err := transaction.WithContext(dbc.Ctx).
		Where("proposal_id = ?", proposalID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
