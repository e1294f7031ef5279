package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/bonusfinder-backend/internal/http/response"
	"github.com/yungbote/bonusfinder-backend/internal/modules/evaluation"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

type EvaluateHandler struct {
	log        *logger.Logger
	evaluation services.EvaluationService
}

func NewEvaluateHandler(log *logger.Logger, evaluation services.EvaluationService) *EvaluateHandler {
	return &EvaluateHandler{log: log.With("handler", "EvaluateHandler"), evaluation: evaluation}
}

type evaluateForm struct {
	Shop               string   `form:"shop" json:"shop"`
	Amount             string   `form:"amount" json:"amount"`
	Mode               string   `form:"mode" json:"mode"`
	CouponIDs          []string `form:"coupon_ids" json:"coupon_ids"`
	IncludeMyProposals string   `form:"include_my_proposals" json:"include_my_proposals"`
}

// POST /evaluate
//
// The initial render picks default coupons; XHR re-evaluations honor the
// submitted coupon selection and return only the ranked programs.
func (h *EvaluateHandler) Evaluate(c *gin.Context) {
	var form evaluateForm
	if err := c.ShouldBind(&form); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(form.CouponIDs) == 0 {
		form.CouponIDs = c.PostFormArray("coupon_ids[]")
	}
	shopID, err := uuid.Parse(strings.TrimSpace(form.Shop))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_shop", err)
		return
	}
	amount, err := evaluation.ParseAmount(form.Amount)
	if err != nil {
		response.RespondServiceError(c, h.log, "invalid_amount", err)
		return
	}
	mode := strings.ToLower(strings.TrimSpace(form.Mode))
	switch mode {
	case "":
		mode = evaluation.ModeShopping
	case evaluation.ModeShopping, evaluation.ModeContract:
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_mode", nil)
		return
	}
	couponIDs := make([]uuid.UUID, 0, len(form.CouponIDs))
	for _, raw := range form.CouponIDs {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_coupon_id", err)
			return
		}
		couponIDs = append(couponIDs, id)
	}

	xhr := isXHR(c)
	res, err := h.evaluation.Evaluate(requestDBC(c), services.EvaluationQuery{
		ShopID:             shopID,
		Amount:             amount,
		Mode:               mode,
		SelectedCouponIDs:  couponIDs,
		DefaultCoupons:     !xhr,
		IncludeMyProposals: checkbox(form.IncludeMyProposals),
		UserID:             requestUserID(c),
	})
	if err != nil {
		response.RespondServiceError(c, h.log, "evaluate_failed", err)
		return
	}

	if xhr {
		response.RespondOK(c, gin.H{
			"mode":     res.Mode,
			"programs": res.Programs,
			"contract": res.Contract,
		})
		return
	}
	response.RespondOK(c, res)
}

func checkbox(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}
