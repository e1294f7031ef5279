package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonusfinder-backend/internal/http/response"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

type ShopHandler struct {
	log   *logger.Logger
	query services.ShopQueryService
}

func NewShopHandler(log *logger.Logger, query services.ShopQueryService) *ShopHandler {
	return &ShopHandler{log: log.With("handler", "ShopHandler"), query: query}
}

// GET /shop_names?q=
func (h *ShopHandler) ShopNames(c *gin.Context) {
	rows, err := h.query.ShopNames(requestDBC(c), c.Query("q"))
	if err != nil {
		response.RespondServiceError(c, h.log, "shop_names_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"shops": rows})
}

// GET /api/shops
func (h *ShopHandler) ListShops(c *gin.Context) {
	rows, err := h.query.ListShops(requestDBC(c))
	if err != nil {
		response.RespondServiceError(c, h.log, "list_shops_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"shops": rows})
}

// GET /api/shops/:id/rates
func (h *ShopHandler) Rates(c *gin.Context) {
	shopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	out, err := h.query.Rates(requestDBC(c), shopID)
	if err != nil {
		response.RespondServiceError(c, h.log, "shop_rates_failed", err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/shops/:id/programs/:program_id/history
func (h *ShopHandler) RateHistory(c *gin.Context) {
	shopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	programID, ok := uuidParam(c, "program_id")
	if !ok {
		return
	}
	rows, err := h.query.RateHistory(requestDBC(c), shopID, programID)
	if err != nil {
		response.RespondServiceError(c, h.log, "rate_history_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"rates": rows})
}
