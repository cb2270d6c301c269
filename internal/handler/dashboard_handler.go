package handler

import (
	"net/http"

	"cvrbackend/internal/middleware"
	"cvrbackend/internal/service"
	"cvrbackend/pkg/response"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
}

func NewDashboardHandler(dashboardService service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) RegisterRoutes(router *gin.RouterGroup) {
	dashboard := router.Group("/api/dashboard")
	dashboard.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		dashboard.GET("", h.Overview)
		dashboard.GET("/jobs", h.JobSummaries)
	}
}

// Overview handles GET /api/dashboard
// @Summary      Portfolio overview
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=model.DashboardMetrics}
// @Router       /api/dashboard [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	metrics, err := h.dashboardService.Overview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, metrics))
}

// JobSummaries handles GET /api/dashboard/jobs
func (h *DashboardHandler) JobSummaries(c *gin.Context) {
	summaries, err := h.dashboardService.JobSummaries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summaries))
}
