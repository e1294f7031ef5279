package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonusfinder-backend/internal/http/response"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

type JobHandler struct {
	log  *logger.Logger
	jobs services.JobService
}

func NewJobHandler(log *logger.Logger, jobs services.JobService) *JobHandler {
	return &JobHandler{log: log.With("handler", "JobHandler"), jobs: jobs}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(requestDBC(c), jobID)
	if err != nil {
		response.RespondServiceError(c, h.log, "get_job_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.Cancel(requestDBC(c), jobID)
	if err != nil {
		response.RespondServiceError(c, h.log, "cancel_job_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
