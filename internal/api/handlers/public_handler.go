package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/indraargamuria/opexio/internal/services"
)

// PublicHandler serves the tokenized delivery-confirmation flow. These routes
// bypass the auth gate: possession of the token is the credential.
type PublicHandler struct {
	shipments *services.ShipmentService
}

// NewPublicHandler creates a new public handler
func NewPublicHandler(shipments *services.ShipmentService) *PublicHandler {
	return &PublicHandler{shipments: shipments}
}

// HandleGetShipment resolves a verification token into the payload for the
// confirmation page. Delivered shipments get only the reduced processed
// marker, never their item list.
func (h *PublicHandler) HandleGetShipment(c *gin.Context) {
	result, err := h.shipments.GetPublicShipment(c.Request.Context(), c.Param("token"))
	if err != nil {
		abortWithError(c, err, "Invalid shipment token")
		return
	}

	if result.Processed != nil {
		c.JSON(http.StatusOK, result.Processed)
		return
	}
	c.JSON(http.StatusOK, result.Shipment)
}

// confirmRequest keeps details raw so a missing or non-array value can be
// rejected before anything is written.
type confirmRequest struct {
	DeliveryComments *string         `json:"deliveryComments"`
	Details          json.RawMessage `json:"details"`
}

// HandleConfirm accepts the delivery confirmation submission
func (h *PublicHandler) HandleConfirm(c *gin.Context) {
	token := c.Param("token")

	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid details format"})
		return
	}

	var details []services.ConfirmDetailInput
	if req.Details == nil || json.Unmarshal(req.Details, &details) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid details format"})
		return
	}

	input := services.ConfirmDeliveryInput{
		DeliveryComments: req.DeliveryComments,
		Details:          details,
	}

	if err := h.shipments.ConfirmDelivery(c.Request.Context(), token, input); err != nil {
		log.Error().Err(err).Msg("Failed to confirm shipment")
		abortWithError(c, err, "Invalid shipment token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RegisterRoutes registers the public verification routes
func (h *PublicHandler) RegisterRoutes(router *gin.Engine) {
	public := router.Group("/public/shipments")
	public.GET("/:token", h.HandleGetShipment)
	public.POST("/:token/confirm", h.HandleConfirm)
}
