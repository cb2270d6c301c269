package handler

import (
	"errors"
	"net/http"

	"cvrbackend/internal/middleware"
	"cvrbackend/internal/service"
	"cvrbackend/pkg/pagination"
	"cvrbackend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type JobHandler struct {
	jobService       service.JobService
	dashboardService service.DashboardService
}

func NewJobHandler(jobService service.JobService, dashboardService service.DashboardService) *JobHandler {
	return &JobHandler{jobService: jobService, dashboardService: dashboardService}
}

func (h *JobHandler) RegisterRoutes(router *gin.RouterGroup) {
	jobs := router.Group("/api/jobs")
	jobs.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		jobs.GET("", h.ListJobs)
		jobs.GET("/:id", h.GetJob)
		jobs.GET("/:id/metrics", h.GetJobMetrics)
		jobs.POST("", middleware.RequireRole("admin", "manager"), h.CreateJob)
		jobs.PUT("/:id", middleware.RequireRole("admin", "manager"), h.UpdateJob)
		jobs.PATCH("/:id/progress", middleware.RequireRole("admin", "manager"), h.UpdateProgress)
		jobs.DELETE("/:id", middleware.RequireRole("admin"), h.DeleteJob)
	}
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

// ListJobs handles GET /api/jobs with pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	params := pagination.Parse(c)
	jobs, total, err := h.jobService.ListJobs(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// GetJob handles GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	job, err := h.jobService.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, job))
}

// GetJobMetrics handles GET /api/jobs/:id/metrics returning the full
// financial picture of one job
func (h *JobHandler) GetJobMetrics(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	metrics, err := h.dashboardService.JobDetail(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, metrics))
}

// CreateJob handles POST /api/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req service.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	job, err := h.jobService.CreateJob(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, job))
}

// UpdateJob handles PUT /api/jobs/:id
func (h *JobHandler) UpdateJob(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req service.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	job, err := h.jobService.UpdateJob(c.Request.Context(), id, req)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, job))
}

// UpdateProgress handles PATCH /api/jobs/:id/progress
func (h *JobHandler) UpdateProgress(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req struct {
		ProgressPercentage float64 `json:"progress_percentage" binding:"min=0,max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	job, err := h.jobService.UpdateProgress(c.Request.Context(), id, req.ProgressPercentage)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, job))
}

// DeleteJob handles DELETE /api/jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.jobService.DeleteJob(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "job deleted"}))
}
