package handler

import (
	"errors"
	"net/http"

	"cvrbackend/internal/middleware"
	"cvrbackend/internal/service"
	"cvrbackend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VariationHandler struct {
	variationService service.VariationService
}

func NewVariationHandler(variationService service.VariationService) *VariationHandler {
	return &VariationHandler{variationService: variationService}
}

func (h *VariationHandler) RegisterRoutes(router *gin.RouterGroup) {
	variations := router.Group("/api/variations")
	variations.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		variations.GET("/pending", h.ListPending)
		variations.POST("", middleware.RequireRole("admin", "manager"), h.CreateVariation)
		variations.POST("/:id/approve", middleware.RequireRole("admin", "manager"), h.Approve)
		variations.POST("/:id/reject", middleware.RequireRole("admin", "manager"), h.Reject)
	}

	jobs := router.Group("/api/jobs")
	jobs.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		jobs.GET("/:id/variations", h.ListByJob)
	}
}

func actorName(c *gin.Context) string {
	if userID, ok := c.Get("userID"); ok {
		if s, ok := userID.(string); ok {
			return s
		}
	}
	return "unknown"
}

// CreateVariation handles POST /api/variations
func (h *VariationHandler) CreateVariation(c *gin.Context) {
	var req service.CreateVariationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}
	req.CreatedBy = actorName(c)

	variation, err := h.variationService.CreateVariation(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, variation))
}

// ListPending handles GET /api/variations/pending with an optional job_id
// filter
func (h *VariationHandler) ListPending(c *gin.Context) {
	var jobID *uuid.UUID
	if raw := c.Query("job_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid job_id"))
			return
		}
		jobID = &id
	}

	variations, err := h.variationService.ListPending(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, variations))
}

// ListByJob handles GET /api/jobs/:id/variations
func (h *VariationHandler) ListByJob(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	variations, err := h.variationService.ListByJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, variations))
}

// Approve handles POST /api/variations/:id/approve
func (h *VariationHandler) Approve(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	variation, err := h.variationService.Approve(c.Request.Context(), id, actorName(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, variation))
}

// Reject handles POST /api/variations/:id/reject
func (h *VariationHandler) Reject(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	variation, err := h.variationService.Reject(c.Request.Context(), id, actorName(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, variation))
}
