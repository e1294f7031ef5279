package proposal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	WeightContributor = 1
	WeightAdmin       = 3
	// Quorum is the summed +1 weight that approves a proposal.
	Quorum = 3
)

type ProposalVote struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProposalID uuid.UUID `gorm:"type:uuid;column:proposal_id;not null;uniqueIndex:idx_proposal_vote_proposal_voter,priority:1" json:"proposal_id"`
	VoterID    uuid.UUID `gorm:"type:uuid;column:voter_id;not null;uniqueIndex:idx_proposal_vote_proposal_voter,priority:2" json:"voter_id"`
	Vote       int       `gorm:"column:vote;not null" json:"vote"`
	VoteWeight int       `gorm:"column:vote_weight;not null" json:"vote_weight"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (ProposalVote) TableName() string { return "proposal_vote" }

func (v *ProposalVote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

const (
	AuditCreated  = "created"
	AuditVoted    = "voted"
	AuditApproved = "approved"
	AuditRejected = "rejected"
)

// ProposalAuditLog is written for every proposal state transition.
type ProposalAuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProposalID uuid.UUID      `gorm:"type:uuid;column:proposal_id;not null;index" json:"proposal_id"`
	Action     string         `gorm:"column:action;not null" json:"action"`
	ActorID    *uuid.UUID     `gorm:"type:uuid;column:actor_id" json:"actor_id,omitempty"`
	Details    datatypes.JSON `gorm:"column:details;type:jsonb" json:"details,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
}

func (ProposalAuditLog) TableName() string { return "proposal_audit_log" }

func (l *ProposalAuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
