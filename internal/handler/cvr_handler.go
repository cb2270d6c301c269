package handler

import (
	"errors"
	"net/http"
	"path/filepath"

	"cvrbackend/internal/middleware"
	"cvrbackend/internal/service"
	"cvrbackend/pkg/response"

	"github.com/gin-gonic/gin"
)

type CVRHandler struct {
	cvrService service.CVRService
}

func NewCVRHandler(cvrService service.CVRService) *CVRHandler {
	return &CVRHandler{cvrService: cvrService}
}

func (h *CVRHandler) RegisterRoutes(router *gin.RouterGroup) {
	cvr := router.Group("/api/cvr")
	cvr.Use(middleware.RequireRole("admin", "manager"))
	{
		cvr.POST("/update/:jobCode", h.UpdateJob)
		cvr.POST("/update-all", h.UpdateAll)
		cvr.GET("/snapshot/:jobCode", h.JobSnapshot)
		cvr.GET("/summary", h.Summary)
		cvr.POST("/process", h.Process)
		cvr.GET("/latest", h.DownloadLatest)
	}
}

// UpdateJob handles POST /api/cvr/update/:jobCode: refreshes one job sheet
// from live metrics
func (h *CVRHandler) UpdateJob(c *gin.Context) {
	result, err := h.cvrService.UpdateJob(c.Request.Context(), c.Param("jobCode"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// UpdateAll handles POST /api/cvr/update-all
func (h *CVRHandler) UpdateAll(c *gin.Context) {
	summary, err := h.cvrService.UpdateAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	status := http.StatusOK
	if !summary.Success {
		status = http.StatusMultiStatus
	}
	c.JSON(status, response.Success(status, summary))
}

// JobSnapshot handles GET /api/cvr/snapshot/:jobCode: reads the numbers back
// out of the ledger sheet
func (h *CVRHandler) JobSnapshot(c *gin.Context) {
	snapshot, err := h.cvrService.JobSnapshot(c.Param("jobCode"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, snapshot))
}

// Summary handles GET /api/cvr/summary across every job sheet
func (h *CVRHandler) Summary(c *gin.Context) {
	summary, err := h.cvrService.SummarizeAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// Process handles POST /api/cvr/process: runs the batch pass over the newest
// template
func (h *CVRHandler) Process(c *gin.Context) {
	result, err := h.cvrService.ProcessAllJobs(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoTemplate) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// DownloadLatest handles GET /api/cvr/latest, streaming the newest processed
// workbook
func (h *CVRHandler) DownloadLatest(c *gin.Context) {
	path, err := h.cvrService.LatestProcessed()
	if err != nil {
		if errors.Is(err, service.ErrNoProcessedFile) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
