package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/indraargamuria/opexio/internal/services"
)

// abortWithError maps a service failure onto the contractual status code and
// JSON body. notFoundMsg names the resource for the generic not-found case.
func abortWithError(c *gin.Context, err error, notFoundMsg string) {
	if ve, ok := services.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": ve.Fields})
		return
	}

	switch {
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, services.ErrUnsupportedMedia):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF files are accepted"})
	case errors.Is(err, services.ErrInvalidFileType),
		errors.Is(err, services.ErrFileTooLarge),
		errors.Is(err, services.ErrInvoiceNumberTaken),
		errors.Is(err, services.ErrInvalidInvoiceStatus),
		errors.Is(err, services.ErrLockedInvoiceNumber),
		errors.Is(err, services.ErrLockedInvoiceAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidToken):
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid shipment token"})
	case errors.Is(err, services.ErrLinkExpired):
		c.JSON(http.StatusGone, gin.H{"error": "This link is no longer active"})
	case errors.Is(err, services.ErrCustomerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
	case errors.Is(err, services.ErrShipmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Shipment not found"})
	case errors.Is(err, services.ErrNoFileAttached):
		c.JSON(http.StatusNotFound, gin.H{"error": "No file attached"})
	case errors.Is(err, services.ErrFileMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found in storage"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
	case errors.Is(err, services.ErrProcessingFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process PDF", "details": err.Error()})
	case errors.Is(err, services.ErrStorageFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file to storage", "details": err.Error()})
	case errors.Is(err, services.ErrPersistenceFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save shipment to database", "details": err.Error()})
	case errors.Is(err, services.ErrConfirmationFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm shipment", "details": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
	}
}
