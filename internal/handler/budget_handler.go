package handler

import (
	"errors"
	"net/http"

	"cvrbackend/internal/middleware"
	"cvrbackend/internal/service"
	"cvrbackend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type BudgetHandler struct {
	budgetService service.BudgetService
}

func NewBudgetHandler(budgetService service.BudgetService) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService}
}

func (h *BudgetHandler) RegisterRoutes(router *gin.RouterGroup) {
	budgets := router.Group("/api/budgets")
	budgets.Use(middleware.RequireRole("admin", "manager"))
	{
		budgets.POST("", h.CreateBudget)
		budgets.PUT("/:id", h.UpdateBudget)
	}

	jobs := router.Group("/api/jobs")
	jobs.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		jobs.GET("/:id/budgets", h.JobBudgetStatus)
	}

	checks := router.Group("/api/alerts")
	checks.Use(middleware.RequireRole("admin", "manager"))
	{
		checks.POST("/check", h.CheckAll)
	}
}

// CreateBudget handles POST /api/budgets
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	var req service.CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	budget, err := h.budgetService.CreateBudget(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		case errors.Is(err, service.ErrDuplicateBudget):
			c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
		default:
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		}
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, budget))
}

// UpdateBudget handles PUT /api/budgets/:id
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req struct {
		BudgetedAmount decimal.Decimal `json:"budgeted_amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	budget, err := h.budgetService.UpdateBudget(c.Request.Context(), id, req.BudgetedAmount)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, budget))
}

// JobBudgetStatus handles GET /api/jobs/:id/budgets, returning the evaluated
// position of each category budget
func (h *BudgetHandler) JobBudgetStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	statuses, err := h.budgetService.JobBudgetStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, statuses))
}

// CheckAll handles POST /api/alerts/check, sweeping every job for budget
// overruns and overdue invoices
func (h *BudgetHandler) CheckAll(c *gin.Context) {
	raised, err := h.budgetService.CheckAllJobs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"alerts_raised": raised,
		"count":         len(raised),
	}))
}
