package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/indraargamuria/opexio/internal/models"
	"github.com/indraargamuria/opexio/internal/repositories"
)

// CustomerHandler handles the plain customer CRUD routes. There is no
// business logic behind these, so the handler talks to the repository
// directly.
type CustomerHandler struct {
	customers *repositories.CustomerRepository
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(customers *repositories.CustomerRepository) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// HandleList returns all customers
func (h *CustomerHandler) HandleList(c *gin.Context) {
	customers, err := h.customers.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list customers", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, customers)
}

type createCustomerRequest struct {
	CustomerID   string  `json:"customerId" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	EmailAddress *string `json:"emailAddress"`
}

// HandleCreate inserts a new customer
func (h *CustomerHandler) HandleCreate(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customer := &models.Customer{
		ID:           uuid.New(),
		CustomerID:   req.CustomerID,
		Name:         req.Name,
		EmailAddress: req.EmailAddress,
	}
	if err := h.customers.Create(c.Request.Context(), customer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create customer", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, customer)
}

type updateCustomerRequest struct {
	CustomerID   *string `json:"customerId"`
	Name         *string `json:"name"`
	EmailAddress *string `json:"emailAddress"`
}

// HandleUpdate updates a customer in place
func (h *CustomerHandler) HandleUpdate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}

	var req updateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]interface{}{}
	if req.CustomerID != nil {
		fields["customer_code"] = *req.CustomerID
	}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.EmailAddress != nil {
		fields["email_address"] = *req.EmailAddress
	}

	customer, err := h.customers.Update(c.Request.Context(), id, fields)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update customer", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, customer)
}

// HandleDelete hard-deletes a customer and returns the deleted row
func (h *CustomerHandler) HandleDelete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}

	customer, err := h.customers.Delete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete customer", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, customer)
}

// RegisterRoutes registers the customer routes
func (h *CustomerHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/customers")
	api.GET("", h.HandleList)
	api.POST("", h.HandleCreate)
	api.PUT("/:id", h.HandleUpdate)
	api.DELETE("/:id", h.HandleDelete)
}
