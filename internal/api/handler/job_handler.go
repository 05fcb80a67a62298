package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/interpreter-booking/internal/api/dto"
	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
)

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", slog.Any("error", err))
		badRequest(c, "Invalid request body")
		return
	}

	res, err := h.service.Create(c.Request.Context(), Actor(c), req)
	h.respond(c, http.StatusCreated, res, err)
}

// AcceptJob handles POST /api/v1/jobs/:job_id/accept
func (h *JobHandler) AcceptJob(c *gin.Context) {
	jobID, ok := idParam(c, "job_id")
	if !ok {
		return
	}

	res, err := h.service.AcceptJob(c.Request.Context(), jobID, Actor(c))
	h.respond(c, http.StatusOK, res, err)
}

// AcceptJobWithID handles POST /api/v1/jobs/accept
func (h *JobHandler) AcceptJobWithID(c *gin.Context) {
	var req dto.AcceptJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "job_id is required")
		return
	}

	res, err := h.service.AcceptJobWithID(c.Request.Context(), req.JobID, Actor(c))
	h.respond(c, http.StatusOK, res, err)
}

// UpdateJob handles PUT /api/v1/jobs/:job_id
func (h *JobHandler) UpdateJob(c *gin.Context) {
	jobID, ok := idParam(c, "job_id")
	if !ok {
		return
	}

	var req dto.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", slog.Any("error", err))
		badRequest(c, "Invalid request body")
		return
	}

	if req.Status != "" && !domain.Status(req.Status).Valid() {
		badRequest(c, "unknown status "+req.Status)
		return
	}

	res, err := h.service.UpdateJob(c.Request.Context(), jobID, Actor(c), req.ToUpdate())
	h.respond(c, http.StatusOK, res, err)
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	h.jobCommand(c, h.service.CancelJob)
}

// EndJob handles POST /api/v1/jobs/:job_id/end
func (h *JobHandler) EndJob(c *gin.Context) {
	h.jobCommand(c, h.service.EndJob)
}

// CustomerNotCall handles POST /api/v1/jobs/:job_id/customer-not-call
func (h *JobHandler) CustomerNotCall(c *gin.Context) {
	h.jobCommand(c, h.service.CustomerNotCall)
}

// ReopenJob handles POST /api/v1/jobs/:job_id/reopen
func (h *JobHandler) ReopenJob(c *gin.Context) {
	h.jobCommand(c, h.service.Reopen)
}

// ResendNotifications handles POST /api/v1/jobs/:job_id/notifications/resend
func (h *JobHandler) ResendNotifications(c *gin.Context) {
	h.adminJobCommand(c, h.service.ResendNotifications)
}

// ResendSMSNotifications handles POST /api/v1/jobs/:job_id/notifications/resend-sms
func (h *JobHandler) ResendSMSNotifications(c *gin.Context) {
	h.adminJobCommand(c, h.service.ResendSMSNotifications)
}

// GetPotentialJobs handles GET /api/v1/translators/:translator_id/potential-jobs.
// Translators may only list their own jobs.
func (h *JobHandler) GetPotentialJobs(c *gin.Context) {
	translatorID, ok := idParam(c, "translator_id")
	if !ok {
		return
	}

	actor := Actor(c)
	if actor.Role != domain.RoleAdmin && actor.ID != translatorID {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Status: domain.ResultFail, Message: "not allowed to list jobs of another translator"})
		return
	}

	res, err := h.service.GetPotentialJobs(c.Request.Context(), translatorID)
	h.respond(c, http.StatusOK, res, err)
}

func (h *JobHandler) jobCommand(c *gin.Context, cmd func(ctx context.Context, jobID int64, actor domain.User) (domain.Result, error)) {
	jobID, ok := idParam(c, "job_id")
	if !ok {
		return
	}

	res, err := cmd(c.Request.Context(), jobID, Actor(c))
	h.respond(c, http.StatusOK, res, err)
}

func (h *JobHandler) adminJobCommand(c *gin.Context, cmd func(ctx context.Context, jobID int64) (domain.Result, error)) {
	if Actor(c).Role != domain.RoleAdmin {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Status: domain.ResultFail, Message: "admin only"})
		return
	}

	jobID, ok := idParam(c, "job_id")
	if !ok {
		return
	}

	res, err := cmd(c.Request.Context(), jobID)
	h.respond(c, http.StatusOK, res, err)
}
