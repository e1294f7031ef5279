package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	"github.com/yungbote/bonusfinder-backend/internal/http/response"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

type AdminHandler struct {
	log      *logger.Logger
	identity services.ShopIdentityService
	jobs     services.JobService
}

func NewAdminHandler(log *logger.Logger, identity services.ShopIdentityService, jobs services.JobService) *AdminHandler {
	return &AdminHandler{log: log.With("handler", "AdminHandler"), identity: identity, jobs: jobs}
}

// POST /api/admin/shops/merge
func (h *AdminHandler) MergeShops(c *gin.Context) {
	adminID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		FromID uuid.UUID `json:"from_id"`
		ToID   uuid.UUID `json:"to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.FromID == uuid.Nil || req.ToID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", nil)
		return
	}
	shop, err := h.identity.Merge(requestDBC(c), req.FromID, req.ToID, &adminID)
	if err != nil {
		response.RespondServiceError(c, h.log, "merge_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"shop": shop})
}

// POST /api/admin/variants/rescore
func (h *AdminHandler) RescoreVariants(c *gin.Context) {
	h.enqueue(c, jobsdomain.TypeRescoreVariants, nil)
}

// POST /api/admin/coupons/expire
func (h *AdminHandler) ExpireCoupons(c *gin.Context) {
	h.enqueue(c, jobsdomain.TypeExpireCoupons, nil)
}

// POST /api/admin/ingest
// body: { "urls": ["https://..."], "source": "Payback" }
func (h *AdminHandler) IngestSource(c *gin.Context) {
	var req struct {
		URLs   []string `json:"urls"`
		Source string   `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	urls := make([]any, 0, len(req.URLs))
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		response.RespondError(c, http.StatusBadRequest, "missing_urls", nil)
		return
	}
	h.enqueue(c, jobsdomain.TypeIngestSource, map[string]any{"urls": urls, "source": strings.TrimSpace(req.Source)})
}

func (h *AdminHandler) enqueue(c *gin.Context, jobType string, payload map[string]any) {
	job, err := h.jobs.Enqueue(requestDBC(c), requestUserID(c), jobType, payload)
	if err != nil {
		response.RespondServiceError(c, h.log, "enqueue_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}
