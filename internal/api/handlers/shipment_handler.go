package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/indraargamuria/opexio/internal/api/middleware"
	"github.com/indraargamuria/opexio/internal/auth"
	"github.com/indraargamuria/opexio/internal/models"
	"github.com/indraargamuria/opexio/internal/services"
)

// ShipmentHandler handles shipment-related HTTP requests
type ShipmentHandler struct {
	shipments *services.ShipmentService
	resolver  *auth.SessionResolver
}

// NewShipmentHandler creates a new shipment handler
func NewShipmentHandler(shipments *services.ShipmentService, resolver *auth.SessionResolver) *ShipmentHandler {
	return &ShipmentHandler{shipments: shipments, resolver: resolver}
}

// shipmentResponse is a header with its details inlined
type shipmentResponse struct {
	models.ShipmentHeader
	Details []models.ShipmentDetail `json:"details"`
}

// HandleCreate handles the multipart shipment create request: a PDF under
// "file", header JSON under "header" and a details JSON array under "details".
func (h *ShipmentHandler) HandleCreate(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}

	var input services.CreateShipmentInput
	if err := json.Unmarshal([]byte(c.PostForm("header")), &input.Header); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": "header must be a JSON object"})
		return
	}
	if err := json.Unmarshal([]byte(c.PostForm("details")), &input.Details); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": "details must be a JSON array"})
		return
	}

	header, details, err := h.shipments.Create(c.Request.Context(), middleware.CurrentUser(c), input, fileBytes)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create shipment")
		abortWithError(c, err, "Shipment not found")
		return
	}

	c.JSON(http.StatusCreated, shipmentResponse{ShipmentHeader: *header, Details: details})
}

// HandleList returns all shipments with the creator name joined
func (h *ShipmentHandler) HandleList(c *gin.Context) {
	rows, err := h.shipments.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err, "Shipment not found")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// HandleGet returns one shipment with its details
func (h *ShipmentHandler) HandleGet(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Shipment not found"})
		return
	}

	header, details, err := h.shipments.GetWithDetails(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err, "Shipment not found")
		return
	}
	c.JSON(http.StatusOK, shipmentResponse{ShipmentHeader: *header, Details: details})
}

// updateShipmentRequest carries a status change and an optional full
// replacement of the detail set.
type updateShipmentRequest struct {
	Status  string                          `json:"status"`
	Details *[]services.ShipmentDetailInput `json:"details"`
}

// HandleUpdate updates a shipment header and optionally replaces its details
func (h *ShipmentHandler) HandleUpdate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Shipment not found"})
		return
	}

	var req updateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var details []services.ShipmentDetailInput
	if req.Details != nil {
		details = *req.Details
	}

	header, err := h.shipments.Update(c.Request.Context(), id, req.Status, details)
	if err != nil {
		log.Error().Err(err).Str("shipment_id", id.String()).Msg("Failed to update shipment")
		abortWithError(c, err, "Shipment not found")
		return
	}
	c.JSON(http.StatusOK, header)
}

// HandleDelete removes a shipment, its details and its stored files
func (h *ShipmentHandler) HandleDelete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Shipment not found"})
		return
	}

	header, err := h.shipments.Delete(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err, "Shipment not found")
		return
	}
	c.JSON(http.StatusOK, header)
}

// HandleGetFile streams the original or stamped PDF for preview or download
func (h *ShipmentHandler) HandleGetFile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Shipment not found"})
		return
	}

	data, contentType, filename, err := h.shipments.GetFile(c.Request.Context(), id, c.Query("type"))
	if err != nil {
		abortWithError(c, err, "Shipment not found")
		return
	}

	disposition := "inline"
	if c.Query("download") == "true" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))
	c.Data(http.StatusOK, contentType, data)
}

// RegisterRoutes registers the handler's routes. Creation is the only
// session-gated shipment route.
func (h *ShipmentHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/shipments")
	api.POST("", middleware.RequireSession(h.resolver), h.HandleCreate)
	api.GET("", h.HandleList)
	api.GET("/:id", h.HandleGet)
	api.PUT("/:id", h.HandleUpdate)
	api.DELETE("/:id", h.HandleDelete)
	api.GET("/:id/file", h.HandleGetFile)
}
