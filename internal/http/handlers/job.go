package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/http/response"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type enqueueJobRequest struct {
	JobType types.JobType  `json:"job_type" binding:"required"`
	Payload map[string]any `json:"payload"`
}

// POST /api/jobs
func (h *JobHandler) EnqueueJob(c *gin.Context) {
	teacherID, ok := teacherFromContext(c)
	if !ok {
		return
	}
	var req enqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := h.jobs.Enqueue(dbctx.Context{Ctx: c.Request.Context()}, teacherID, req.JobType, req.Payload)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	teacherID, ok := teacherFromContext(c)
	if !ok {
		return
	}
	jobID, ok := uuidParam(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.GetJobStatus(dbctx.Context{Ctx: c.Request.Context()}, jobID, teacherID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
