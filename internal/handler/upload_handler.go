package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"cvrbackend/internal/middleware"
	"cvrbackend/internal/service"
	"cvrbackend/pkg/response"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	importService service.ImportService
	cvrService    service.CVRService
	templateDir   string
}

func NewUploadHandler(importService service.ImportService, cvrService service.CVRService, templateDir string) *UploadHandler {
	return &UploadHandler{importService: importService, cvrService: cvrService, templateDir: templateDir}
}

func (h *UploadHandler) RegisterRoutes(router *gin.RouterGroup) {
	uploads := router.Group("/api/uploads")
	uploads.Use(middleware.RequireRole("admin", "manager"))
	{
		uploads.POST("/pnl", h.UploadPnL)
		uploads.POST("/invoices", h.UploadInvoices)
		uploads.POST("/cvr-template", h.UploadTemplate)
	}
}

// saveUpload stages the multipart file into a temp path. Caller removes it.
func saveUpload(c *gin.Context) (string, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Missing file upload"))
		return "", false
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Only .xlsx files are accepted"))
		return "", false
	}

	tmp, err := os.CreateTemp("", "upload-*.xlsx")
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to stage upload"))
		return "", false
	}
	tmp.Close()
	if err := c.SaveUploadedFile(file, tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to save upload"))
		return "", false
	}
	return tmp.Name(), true
}

func writeParseFailure(c *gin.Context, err error) {
	var parseErr *service.ParseError
	if errors.As(err, &parseErr) {
		c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, parseErr.Error()))
		return
	}
	c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
}

// UploadPnL handles POST /api/uploads/pnl
// @Summary      Import a P&L by class report
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "P&L workbook (.xlsx)"
// @Success      200   {object}  response.Response{data=service.PnLImportResult}
// @Failure      422   {object}  response.Response
// @Router       /api/uploads/pnl [post]
func (h *UploadHandler) UploadPnL(c *gin.Context) {
	path, ok := saveUpload(c)
	if !ok {
		return
	}
	defer os.Remove(path)

	result, err := h.importService.ImportPnL(c.Request.Context(), path)
	if err != nil {
		writeParseFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// UploadInvoices handles POST /api/uploads/invoices
func (h *UploadHandler) UploadInvoices(c *gin.Context) {
	path, ok := saveUpload(c)
	if !ok {
		return
	}
	defer os.Remove(path)

	result, err := h.importService.ImportInvoices(c.Request.Context(), path)
	if err != nil {
		writeParseFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// UploadTemplate handles POST /api/uploads/cvr-template: validates the
// workbook and stores it for the batch pass.
func (h *UploadHandler) UploadTemplate(c *gin.Context) {
	path, ok := saveUpload(c)
	if !ok {
		return
	}
	defer os.Remove(path)

	validation, err := h.cvrService.ValidateTemplate(path)
	if err != nil {
		writeParseFailure(c, err)
		return
	}
	if !validation.Valid {
		c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, strings.Join(validation.Issues, "; ")))
		return
	}

	if err := os.MkdirAll(h.templateDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to store template"))
		return
	}
	file, _ := c.FormFile("file")
	dest := filepath.Join(h.templateDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, dest); err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to store template"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"stored":     dest,
		"validation": validation,
	}))
}
