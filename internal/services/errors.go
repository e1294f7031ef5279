package services

import (
	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
)

var (
	ErrShopNotFound        = apperr.NotFound("shop not found")
	ErrProgramNotFound     = apperr.NotFound("program not found")
	ErrProposalNotFound    = apperr.NotFound("proposal not found")
	ErrJobNotFound         = apperr.NotFound("job not found")
	ErrSelfMerge           = apperr.Invalid("cannot merge a shop into itself")
	ErrShopAlreadyMerged   = apperr.Conflict("shop already merged")
	ErrConcurrentRateWrite = apperr.Conflict("concurrent write to open rate")
	ErrProposalNotPending  = apperr.Conflict("proposal is not pending")
	ErrDuplicateProposal   = apperr.Conflict("a pending proposal for this shop and program already exists")
	ErrCannotVote          = apperr.Forbidden("user may not vote on this proposal")
	ErrInvalidCredentials  = apperr.Unauthorized("invalid username or password")
)
