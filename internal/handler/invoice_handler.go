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

type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices")
	invoices.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		invoices.GET("/overdue", h.ListOverdue)
		invoices.POST("", middleware.RequireRole("admin", "manager"), h.CreateInvoice)
		invoices.POST("/:id/pay", middleware.RequireRole("admin", "manager"), h.MarkPaid)
	}

	jobs := router.Group("/api/jobs")
	jobs.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		jobs.GET("/:id/invoices", h.ListByJob)
	}
}

// CreateInvoice handles POST /api/invoices
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListByJob handles GET /api/jobs/:id/invoices
func (h *InvoiceHandler) ListByJob(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	invoices, err := h.invoiceService.ListByJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}

// ListOverdue handles GET /api/invoices/overdue with an optional job_id
// filter
func (h *InvoiceHandler) ListOverdue(c *gin.Context) {
	var jobID *uuid.UUID
	if raw := c.Query("job_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid job_id"))
			return
		}
		jobID = &id
	}

	invoices, err := h.invoiceService.ListOverdue(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}

// MarkPaid handles POST /api/invoices/:id/pay
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req struct {
		PaymentReference string `json:"payment_reference"`
	}
	_ = c.ShouldBindJSON(&req)

	invoice, err := h.invoiceService.MarkPaid(c.Request.Context(), id, req.PaymentReference)
	if err != nil {
		if errors.Is(err, service.ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}
