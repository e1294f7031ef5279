package proposal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	proposaldomain "github.com/yungbote/bonusfinder-backend/internal/domain/proposal"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type ListFilter struct {
	Status       string
	ProposalType string
	ShopMainID   *uuid.UUID
	Limit        int
	Offset       int
}

type ProposalRepo interface {
	Create(dbc dbctx.Context, proposals []*types.Proposal) ([]*types.Proposal, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Proposal, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Proposal, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	FindPendingRateChange(dbc dbctx.Context, userID, shopID, programID uuid.UUID) (*types.Proposal, error)
	FindURLProposal(dbc dbctx.Context, shopMainID uuid.UUID, url string) (*types.Proposal, error)
	ListPendingRateChanges(dbc dbctx.Context, userID uuid.UUID, shopIDs []uuid.UUID) ([]*types.Proposal, error)
	List(dbc dbctx.Context, f ListFilter) ([]*types.Proposal, error)
}

type proposalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProposalRepo(db *gorm.DB, baseLog *logger.Logger) ProposalRepo {
	return &proposalRepo{db: db, log: baseLog.With("repo", "ProposalRepo")}
}

func (r *proposalRepo) Create(dbc dbctx.Context, proposals []*types.Proposal) ([]*types.Proposal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(proposals) == 0 {
		return []*types.Proposal{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}

func (r *proposalRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Proposal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Proposal
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *proposalRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Proposal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Proposal
	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *proposalRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Proposal{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *proposalRepo) FindPendingRateChange(dbc dbctx.Context, userID, shopID, programID uuid.UUID) (*types.Proposal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Proposal
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND shop_id = ? AND program_id = ? AND proposal_type = ? AND status = ?",
			userID, shopID, programID, proposaldomain.TypeRateChange, proposaldomain.StatusPending).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// FindURLProposal returns a pending or approved url proposal for the pair.
func (r *proposalRepo) FindURLProposal(dbc dbctx.Context, shopMainID uuid.UUID, url string) (*types.Proposal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Proposal
	if err := transaction.WithContext(dbc.Ctx).
		Where("shop_main_id = ? AND source_url = ? AND proposal_type = ? AND status IN ?",
			shopMainID, url, proposaldomain.TypeURL,
			[]string{proposaldomain.StatusPending, proposaldomain.StatusApproved}).
		Order("created_at ASC").
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *proposalRepo) ListPendingRateChanges(dbc dbctx.Context, userID uuid.UUID, shopIDs []uuid.UUID) ([]*types.Proposal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Proposal
	if userID == uuid.Nil || len(shopIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND shop_id IN ? AND proposal_type = ? AND status = ?",
			userID, shopIDs, proposaldomain.TypeRateChange, proposaldomain.StatusPending).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *proposalRepo) List(dbc dbctx.Context, f ListFilter) ([]*types.Proposal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&types.Proposal{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ProposalType != "" {
		q = q.Where("proposal_type = ?", f.ProposalType)
	}
	if f.ShopMainID != nil {
		q = q.Where("shop_main_id = ?", *f.ShopMainID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.Proposal
	if err := q.Order("created_at ASC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
