package proposal

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type ProposalAuditLogRepo interface {
	Create(dbc dbctx.Context, entries []*types.ProposalAuditLog) error
	ListByProposal(dbc dbctx.Context, proposalID uuid.UUID) ([]*types.ProposalAuditLog, error)
}

type proposalAuditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProposalAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) ProposalAuditLogRepo {
	return &proposalAuditLogRepo{db: db, log: baseLog.With("repo", "ProposalAuditLogRepo")}
}

func (r *proposalAuditLogRepo) Create(dbc dbctx.Context, entries []*types.ProposalAuditLog) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(entries) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&entries).Error
}

func (r *proposalAuditLogRepo) ListByProposal(dbc dbctx.Context, proposalID uuid.UUID) ([]*types.ProposalAuditLog, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProposalAuditLog
	if err := transaction.WithContext(dbc.Ctx).
		Where("proposal_id = ?", proposalID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
