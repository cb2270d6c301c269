package handler

import (
	"errors"
	"net/http"

	"cvrbackend/internal/middleware"
	"cvrbackend/internal/service"
	"cvrbackend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ExpenseHandler struct {
	expenseService service.ExpenseService
}

func NewExpenseHandler(expenseService service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

func (h *ExpenseHandler) RegisterRoutes(router *gin.RouterGroup) {
	expenses := router.Group("/api/expenses")
	expenses.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		expenses.POST("", middleware.RequireRole("admin", "manager"), h.CreateExpense)
	}

	jobs := router.Group("/api/jobs")
	jobs.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		jobs.GET("/:id/expenses", h.ListByJob)
	}
}

// CreateExpense handles POST /api/expenses for manual cost entry
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	var req service.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	expense, err := h.expenseService.CreateExpense(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, expense))
}

// ListByJob handles GET /api/jobs/:id/expenses
func (h *ExpenseHandler) ListByJob(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	expenses, err := h.expenseService.ListByJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, expenses))
}
