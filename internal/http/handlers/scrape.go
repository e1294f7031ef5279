package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonusfinder-backend/internal/http/response"
	"github.com/yungbote/bonusfinder-backend/internal/ingestion/feed"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

const maxScrapeBody = 16 << 20

// ScrapeHandler accepts ShopData batches pushed by remote scrapers.
type ScrapeHandler struct {
	log       *logger.Logger
	ingestion services.IngestionService
}

func NewScrapeHandler(log *logger.Logger, ingestion services.IngestionService) *ScrapeHandler {
	return &ScrapeHandler{log: log.With("handler", "ScrapeHandler"), ingestion: ingestion}
}

// POST /api/scrape-results
func (h *ScrapeHandler) Submit(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxScrapeBody))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	batch, err := feed.Decode(body)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(batch) == 0 {
		response.RespondOK(c, gin.H{"shops": 0, "failed": []services.ShopFailure{}, "rates_changed": 0})
		return
	}
	res, err := h.ingestion.IngestBatch(c.Request.Context(), batch, nil)
	if err != nil {
		response.RespondServiceError(c, h.log, "ingest_failed", err)
		return
	}
	failed := res.Failed
	if failed == nil {
		failed = []services.ShopFailure{}
	}
	h.log.Info("Scrape results ingested", "shops", len(res.Results), "failed", len(failed), "rates_changed", res.RatesChanged())
	response.RespondOK(c, gin.H{
		"shops":         len(res.Results),
		"failed":        failed,
		"rates_changed": res.RatesChanged(),
	})
}
