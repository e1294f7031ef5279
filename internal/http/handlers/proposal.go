package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	proposaldomain "github.com/yungbote/bonusfinder-backend/internal/domain/proposal"
	"github.com/yungbote/bonusfinder-backend/internal/http/response"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

type ProposalHandler struct {
	log       *logger.Logger
	proposals services.ProposalService
}

func NewProposalHandler(log *logger.Logger, proposals services.ProposalService) *ProposalHandler {
	return &ProposalHandler{log: log.With("handler", "ProposalHandler"), proposals: proposals}
}

// POST /proposals/new
func (h *ProposalHandler) Create(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var in services.ProposalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := h.proposals.Create(requestDBC(c), userID, in)
	if err != nil {
		response.RespondServiceError(c, h.log, "create_proposal_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"proposal": p})
}

// POST /api/proposals/url
//
// Answers 201 for a new proposal and 200 with the existing one when the same
// URL was already proposed for the shop.
func (h *ProposalHandler) CreateURL(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		ShopID uuid.UUID `json:"shop_id"`
		URL    string    `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, created, err := h.proposals.CreateURLProposal(requestDBC(c), userID, req.ShopID, req.URL)
	if err != nil {
		response.RespondServiceError(c, h.log, "create_url_proposal_failed", err)
		return
	}
	body := gin.H{"proposal_id": p.ID, "created": created}
	if created {
		response.RespondCreated(c, body)
		return
	}
	response.RespondOK(c, body)
}

// POST /vote/:proposal_id
func (h *ProposalHandler) Vote(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	proposalID, ok := uuidParam(c, "proposal_id")
	if !ok {
		return
	}
	var req struct {
		Vote json.Number `json:"vote" form:"vote"`
	}
	if err := c.ShouldBind(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	vote, err := strconv.Atoi(req.Vote.String())
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_vote", err)
		return
	}
	res, err := h.proposals.Vote(requestDBC(c), proposalID, userID, vote)
	if err != nil {
		response.RespondServiceError(c, h.log, "vote_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /approve/:proposal_id
func (h *ProposalHandler) Approve(c *gin.Context) {
	adminID, ok := mustUserID(c)
	if !ok {
		return
	}
	proposalID, ok := uuidParam(c, "proposal_id")
	if !ok {
		return
	}
	p, err := h.proposals.Approve(requestDBC(c), proposalID, adminID)
	if err != nil {
		response.RespondServiceError(c, h.log, "approve_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"proposal": p})
}

// POST /reject/:proposal_id
func (h *ProposalHandler) Reject(c *gin.Context) {
	adminID, ok := mustUserID(c)
	if !ok {
		return
	}
	proposalID, ok := uuidParam(c, "proposal_id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" form:"reason"`
	}
	if err := c.ShouldBind(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := h.proposals.Reject(requestDBC(c), proposalID, adminID, req.Reason)
	if err != nil {
		response.RespondServiceError(c, h.log, "reject_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"proposal": p})
}

// GET /api/proposals?type=&shop_id=&limit=&offset=
func (h *ProposalHandler) ListPending(c *gin.Context) {
	f := repos.ProposalListFilter{
		Status:       proposaldomain.StatusPending,
		ProposalType: c.Query("type"),
	}
	if raw := c.Query("shop_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_shop_id", err)
			return
		}
		f.ShopMainID = &id
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	rows, err := h.proposals.ListPending(requestDBC(c), f)
	if err != nil {
		response.RespondServiceError(c, h.log, "list_proposals_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"proposals": rows})
}

// GET /api/proposals/:proposal_id
func (h *ProposalHandler) Get(c *gin.Context) {
	proposalID, ok := uuidParam(c, "proposal_id")
	if !ok {
		return
	}
	p, err := h.proposals.Get(requestDBC(c), proposalID)
	if err != nil {
		response.RespondServiceError(c, h.log, "get_proposal_failed", err)
		return
	}
	audit, err := h.proposals.AuditTrail(requestDBC(c), proposalID)
	if err != nil {
		response.RespondServiceError(c, h.log, "get_proposal_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"proposal": p, "audit": audit})
}
