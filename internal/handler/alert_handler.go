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

type AlertHandler struct {
	alertService service.AlertService
}

func NewAlertHandler(alertService service.AlertService) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

func (h *AlertHandler) RegisterRoutes(router *gin.RouterGroup) {
	alerts := router.Group("/api/alerts")
	alerts.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		alerts.GET("", h.ListActive)
		alerts.POST("/:id/acknowledge", h.Acknowledge)
	}
}

// ListActive handles GET /api/alerts with an optional job_id filter
func (h *AlertHandler) ListActive(c *gin.Context) {
	var jobID *uuid.UUID
	if raw := c.Query("job_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid job_id"))
			return
		}
		jobID = &id
	}

	alerts, err := h.alertService.ListActive(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, alerts))
}

// Acknowledge handles POST /api/alerts/:id/acknowledge
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	alert, err := h.alertService.Acknowledge(c.Request.Context(), id, actorName(c))
	if err != nil {
		if errors.Is(err, service.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, alert))
}
