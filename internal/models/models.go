package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Shipment header statuses
const (
	ShipmentStatusOnGoing   = "On Going"
	ShipmentStatusDelivered = "Delivered"
)

// Default status for a freshly created shipment detail
const DetailStatusPending = "pending"

// Invoice statuses
const (
	InvoiceStatusDraft     = "Draft"
	InvoiceStatusSent      = "Sent"
	InvoiceStatusPaid      = "Paid"
	InvoiceStatusOverdue   = "Overdue"
	InvoiceStatusCancelled = "Cancelled"
)

// Invoice entry types
const (
	EntryTypeManual          = "Manual"
	EntryTypeSystemGenerated = "System_Generated"
)

// ValidInvoiceStatus reports whether s is one of the known invoice statuses.
func ValidInvoiceStatus(s string) bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// User represents an authenticated back-office user
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"not null;uniqueIndex" json:"email"`
}

// Session represents an authenticated session issued by the auth provider
type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
	Token     string    `gorm:"not null;uniqueIndex" json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;not null" json:"userId"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	IPAddress *string   `json:"ipAddress,omitempty"`
	UserAgent *string   `json:"userAgent,omitempty"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}

// Customer represents a customer account
type Customer struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	CustomerID   string     `gorm:"column:customer_code;not null;uniqueIndex" json:"customerId"`
	Name         string     `gorm:"not null" json:"name"`
	EmailAddress *string    `json:"emailAddress,omitempty"`
	CreatedBy    *uuid.UUID `gorm:"type:uuid" json:"createdBy,omitempty"`
}

// ShipmentHeader carries shipment-level metadata. The details hold one row
// per line item and are owned by exactly one header.
type ShipmentHeader struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
	ShipmentNumber   string           `gorm:"not null;uniqueIndex" json:"shipmentNumber"`
	CustomerID       uuid.UUID        `gorm:"type:uuid;not null" json:"customerId"`
	OriginalFileKey  string           `json:"originalFileKey"`
	StampedFileKey   *string          `json:"stampedFileKey"`
	Status           string           `gorm:"not null" json:"status"`
	PublicToken      *string          `gorm:"uniqueIndex" json:"publicToken,omitempty"`
	IsLinkActive     bool             `gorm:"default:true" json:"isLinkActive"`
	DeliveryComments *string          `json:"deliveryComments"`
	CreatedBy        *uuid.UUID       `gorm:"type:uuid" json:"createdBy,omitempty"`
	Customer         Customer         `gorm:"foreignKey:CustomerID" json:"-"`
	Details          []ShipmentDetail `gorm:"foreignKey:ShipmentHeaderID" json:"-"`
}

// ShipmentDetail is a single line item belonging to a shipment header.
// Quantity is the ordered amount; QtyDelivered stays nil until the delivery
// is confirmed through the public verification flow.
type ShipmentDetail struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
	ShipmentHeaderID uuid.UUID `gorm:"type:uuid;not null;index" json:"shipmentHeaderId"`
	ItemCode         string    `gorm:"not null" json:"itemCode"`
	ItemDescription  *string   `json:"itemDescription"`
	Quantity         int       `gorm:"not null" json:"quantity"`
	QtyDelivered     *int      `json:"qtyDelivered"`
	Status           string    `gorm:"not null" json:"status"`
}

// Invoice represents a customer invoice. Rows are soft-deleted: DeletedAt is
// set instead of removing the row, and every read excludes archived rows.
type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
	InvoiceNumber string          `gorm:"not null;uniqueIndex" json:"invoiceNumber"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null" json:"customerId"`
	ShipmentID    *uuid.UUID      `gorm:"type:uuid" json:"shipmentId"`
	Amount        string          `gorm:"not null" json:"amount"`
	Status        string          `gorm:"not null" json:"status"`
	DocumentPath  *string         `json:"documentPath"`
	EntryType     string          `gorm:"not null" json:"entryType"`
	IssueDate     time.Time       `gorm:"not null" json:"issueDate"`
	DueDate       time.Time       `gorm:"not null" json:"dueDate"`
	CreatedBy     *uuid.UUID      `gorm:"type:uuid" json:"createdBy,omitempty"`
	Customer      Customer        `gorm:"foreignKey:CustomerID" json:"-"`
	Shipment      *ShipmentHeader `gorm:"foreignKey:ShipmentID" json:"-"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	// Apply all migrations
	err := db.AutoMigrate(
		&User{},
		&Session{},
		&Customer{},
		&ShipmentHeader{},
		&ShipmentDetail{},
		&Invoice{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
