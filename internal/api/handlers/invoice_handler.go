package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/indraargamuria/opexio/internal/api/middleware"
	"github.com/indraargamuria/opexio/internal/auth"
	"github.com/indraargamuria/opexio/internal/repositories"
	"github.com/indraargamuria/opexio/internal/services"
)

// InvoiceHandler handles invoice-related HTTP requests
type InvoiceHandler struct {
	invoices *services.InvoiceService
	resolver *auth.SessionResolver
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoices *services.InvoiceService, resolver *auth.SessionResolver) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, resolver: resolver}
}

// HandleList returns invoices filtered by the query parameters
func (h *InvoiceHandler) HandleList(c *gin.Context) {
	filter := repositories.InvoiceFilter{Status: c.Query("status")}

	if v := c.Query("customerId"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.CustomerID = &id
		}
	}
	if v := c.Query("shipmentId"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.ShipmentID = &id
		}
	}
	if v := c.Query("startDate"); v != "" {
		if t, err := parseDate(v); err == nil {
			filter.StartDate = &t
		}
	}
	if v := c.Query("endDate"); v != "" {
		if t, err := parseDate(v); err == nil {
			filter.EndDate = &t
		}
	}

	rows, err := h.invoices.List(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err, "Invoice not found")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// HandleGet returns one invoice with names joined
func (h *InvoiceHandler) HandleGet(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return
	}

	row, err := h.invoices.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err, "Invoice not found")
		return
	}
	c.JSON(http.StatusOK, row)
}

// HandleCreate accepts either a JSON body or a multipart form with an
// optional document attachment.
func (h *InvoiceHandler) HandleCreate(c *gin.Context) {
	var input services.CreateInvoiceInput
	var doc *services.InvoiceDocument

	if strings.Contains(c.ContentType(), "multipart/form-data") {
		parsed, parsedDoc, err := parseInvoiceForm(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		input, doc = parsed, parsedDoc
	} else {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	invoice, err := h.invoices.Create(c.Request.Context(), middleware.CurrentUser(c), input, doc)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create invoice")
		abortWithError(c, err, "Invoice not found")
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

// HandleUpdate applies invoice mutations
func (h *InvoiceHandler) HandleUpdate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return
	}

	var input services.UpdateInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	invoice, err := h.invoices.Update(c.Request.Context(), id, input)
	if err != nil {
		abortWithError(c, err, "Invoice not found")
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// HandleDelete archives an invoice (soft delete)
func (h *InvoiceHandler) HandleDelete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return
	}

	invoice, err := h.invoices.Archive(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err, "Invoice not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invoice archived successfully", "invoice": invoice})
}

// HandleGetFile streams the attached document for preview or download
func (h *InvoiceHandler) HandleGetFile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return
	}

	data, contentType, filename, err := h.invoices.GetFile(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err, "Invoice not found")
		return
	}

	disposition := "inline"
	if c.Query("download") == "true" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))
	c.Data(http.StatusOK, contentType, data)
}

// RegisterRoutes registers the handler's routes; mutations require a session
func (h *InvoiceHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/invoices")
	api.GET("", h.HandleList)
	api.GET("/:id", h.HandleGet)
	api.POST("", middleware.RequireSession(h.resolver), h.HandleCreate)
	api.PUT("/:id", middleware.RequireSession(h.resolver), h.HandleUpdate)
	api.DELETE("/:id", middleware.RequireSession(h.resolver), h.HandleDelete)
	api.GET("/:id/file", h.HandleGetFile)
}

func parseInvoiceForm(c *gin.Context) (services.CreateInvoiceInput, *services.InvoiceDocument, error) {
	input := services.CreateInvoiceInput{
		InvoiceNumber: c.PostForm("invoiceNumber"),
		CustomerID:    c.PostForm("customerId"),
		Amount:        c.PostForm("amount"),
		Status:        c.PostForm("status"),
		EntryType:     c.PostForm("entryType"),
	}
	if v := c.PostForm("shipmentId"); v != "" {
		input.ShipmentID = &v
	}
	if v := c.PostForm("issueDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return input, nil, fmt.Errorf("invalid issueDate")
		}
		input.IssueDate = t
	}
	if v := c.PostForm("dueDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return input, nil, fmt.Errorf("invalid dueDate")
		}
		input.DueDate = t
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		// No attachment is fine
		return input, nil, nil
	}
	file, err := fileHeader.Open()
	if err != nil {
		return input, nil, fmt.Errorf("failed to read file")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return input, nil, fmt.Errorf("failed to read file")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return input, &services.InvoiceDocument{Data: data, ContentType: contentType}, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
