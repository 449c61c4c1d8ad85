package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/indraargamuria/opexio/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = gorm.ErrRecordNotFound

// ShipmentRepository provides access to shipment headers and details
type ShipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository creates a new shipment repository
func NewShipmentRepository(db *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

// ShipmentListRow is a shipment header joined with the creator's name
type ShipmentListRow struct {
	models.ShipmentHeader
	CreatedByName *string `json:"createdByName"`
}

// CreateWithDetails inserts a header and its details as one atomic batch.
// Either everything is persisted or nothing is.
func (r *ShipmentRepository) CreateWithDetails(ctx context.Context, header *models.ShipmentHeader, details []models.ShipmentDetail) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(header).Error; err != nil {
			return err
		}
		for i := range details {
			details[i].ShipmentHeaderID = header.ID
			if err := tx.Create(&details[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to create shipment batch")
	}
	return nil
}

// List returns all shipment headers with the creator name joined
func (r *ShipmentRepository) List(ctx context.Context) ([]ShipmentListRow, error) {
	var rows []ShipmentListRow
	err := r.db.WithContext(ctx).
		Model(&models.ShipmentHeader{}).
		Select("shipment_headers.*, users.name AS created_by_name").
		Joins("LEFT JOIN users ON users.id = shipment_headers.created_by").
		Order("shipment_headers.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list shipments")
	}
	return rows, nil
}

// GetByID gets a shipment header by ID
func (r *ShipmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ShipmentHeader, error) {
	var header models.ShipmentHeader
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&header).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get shipment by ID")
	}
	return &header, nil
}

// TokenLookup is a shipment header joined with the customer name,
// resolved through its public token.
type TokenLookup struct {
	models.ShipmentHeader
	CustomerName *string
}

// GetByToken resolves a shipment by its public verification token
func (r *ShipmentRepository) GetByToken(ctx context.Context, token string) (*TokenLookup, error) {
	var row TokenLookup
	err := r.db.WithContext(ctx).
		Model(&models.ShipmentHeader{}).
		Select("shipment_headers.*, customers.name AS customer_name").
		Joins("LEFT JOIN customers ON customers.id = shipment_headers.customer_id").
		Where("shipment_headers.public_token = ?", token).
		First(&row).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get shipment by token")
	}
	return &row, nil
}

// DetailsForHeader returns the ordered line items for a header
func (r *ShipmentRepository) DetailsForHeader(ctx context.Context, headerID uuid.UUID) ([]models.ShipmentDetail, error) {
	var details []models.ShipmentDetail
	err := r.db.WithContext(ctx).
		Where("shipment_header_id = ?", headerID).
		Order("created_at ASC").
		Find(&details).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get shipment details")
	}
	return details, nil
}

// UpdateStatus updates a header's status and, when newDetails is non-nil,
// replaces the detail set wholesale. Detail rows are never patched in place:
// the existing set is deleted and the new set inserted, all inside one
// transaction with the header update.
func (r *ShipmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, newDetails []models.ShipmentDetail, now time.Time) (*models.ShipmentHeader, error) {
	var header models.ShipmentHeader
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ShipmentHeader{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"status": status, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if newDetails != nil {
			if err := tx.Where("shipment_header_id = ?", id).Delete(&models.ShipmentDetail{}).Error; err != nil {
				return err
			}
			for i := range newDetails {
				newDetails[i].ShipmentHeaderID = id
				if err := tx.Create(&newDetails[i]).Error; err != nil {
					return err
				}
			}
		}
		return tx.Where("id = ?", id).First(&header).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to update shipment")
	}
	return &header, nil
}

// Delete removes a header and its details inside one transaction. Details go
// first since the storage layer carries no FK cascade. The deleted header is
// returned so callers can release the blobs it referenced.
func (r *ShipmentRepository) Delete(ctx context.Context, id uuid.UUID) (*models.ShipmentHeader, error) {
	var header models.ShipmentHeader
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&header).Error; err != nil {
			return err
		}
		if err := tx.Where("shipment_header_id = ?", id).Delete(&models.ShipmentDetail{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.ShipmentHeader{}).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to delete shipment")
	}
	return &header, nil
}

// DetailCorrection carries a delivered-quantity correction for one line item
type DetailCorrection struct {
	ID           uuid.UUID
	QtyDelivered int
}

// ConfirmDelivery applies a delivery confirmation: the header moves to
// Delivered with the courier's comments, and each correction updates the
// matching detail's delivered quantity. Corrections referencing unknown
// detail ids match zero rows and are skipped. All writes run inside one
// transaction.
func (r *ShipmentRepository) ConfirmDelivery(ctx context.Context, headerID uuid.UUID, comments *string, corrections []DetailCorrection, now time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ShipmentHeader{}).
			Where("id = ?", headerID).
			Updates(map[string]interface{}{
				"delivery_comments": comments,
				"status":            models.ShipmentStatusDelivered,
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		for _, c := range corrections {
			err := tx.Model(&models.ShipmentDetail{}).
				Where("id = ? AND shipment_header_id = ?", c.ID, headerID).
				Updates(map[string]interface{}{
					"qty_delivered": c.QtyDelivered,
					"updated_at":    now,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to confirm delivery")
	}
	return nil
}

// CustomerRepository provides access to customer data
type CustomerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// List returns all customers
func (r *CustomerRepository) List(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&customers).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list customers")
	}
	return customers, nil
}

// GetByID gets a customer by ID
func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get customer by ID")
	}
	return &customer, nil
}

// Create inserts a new customer
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return errors.Wrap(err, "failed to create customer")
	}
	return nil
}

// Update updates a customer in place and returns the updated row
func (r *CustomerRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.Customer, error) {
	res := r.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to update customer")
	}
	if res.RowsAffected == 0 {
		return nil, errors.Wrap(gorm.ErrRecordNotFound, "failed to update customer")
	}
	return r.GetByID(ctx, id)
}

// Delete hard-deletes a customer and returns the deleted row
func (r *CustomerRepository) Delete(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	customer, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Customer{}).Error; err != nil {
		return nil, errors.Wrap(err, "failed to delete customer")
	}
	return customer, nil
}

// InvoiceRepository provides access to invoice data. Soft-deleted rows are
// excluded from every read through the gorm.DeletedAt scope.
type InvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// InvoiceFilter narrows an invoice listing
type InvoiceFilter struct {
	Status     string
	CustomerID *uuid.UUID
	ShipmentID *uuid.UUID
	StartDate  *time.Time
	EndDate    *time.Time
}

// InvoiceRow is an invoice joined with customer, shipment and creator names
type InvoiceRow struct {
	models.Invoice
	CustomerName   *string `json:"customerName"`
	ShipmentNumber *string `json:"shipmentNumber"`
	CreatedByName  *string `json:"createdByName"`
}

func (r *InvoiceRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Select("invoices.*, customers.name AS customer_name, shipment_headers.shipment_number AS shipment_number, users.name AS created_by_name").
		Joins("LEFT JOIN customers ON customers.id = invoices.customer_id").
		Joins("LEFT JOIN shipment_headers ON shipment_headers.id = invoices.shipment_id").
		Joins("LEFT JOIN users ON users.id = invoices.created_by")
}

// List returns invoices matching the filter
func (r *InvoiceRepository) List(ctx context.Context, filter InvoiceFilter) ([]InvoiceRow, error) {
	q := r.joined(ctx)
	if filter.Status != "" {
		q = q.Where("invoices.status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		q = q.Where("invoices.customer_id = ?", *filter.CustomerID)
	}
	if filter.ShipmentID != nil {
		q = q.Where("invoices.shipment_id = ?", *filter.ShipmentID)
	}
	if filter.StartDate != nil {
		q = q.Where("invoices.issue_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("invoices.due_date <= ?", *filter.EndDate)
	}

	var rows []InvoiceRow
	if err := q.Order("invoices.created_at DESC").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list invoices")
	}
	return rows, nil
}

// GetByID gets an invoice by ID with names joined
func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*InvoiceRow, error) {
	var row InvoiceRow
	err := r.joined(ctx).Where("invoices.id = ?", id).First(&row).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get invoice by ID")
	}
	return &row, nil
}

// GetRaw gets a bare invoice row by ID
func (r *InvoiceRepository) GetRaw(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get invoice by ID")
	}
	return &invoice, nil
}

// GetByNumber gets an invoice by its business number, including soft-deleted
// rows so a reused number still trips the uniqueness check.
func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).Unscoped().Where("invoice_number = ?", number).First(&invoice).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get invoice by number")
	}
	return &invoice, nil
}

// Create inserts a new invoice
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	if err := r.db.WithContext(ctx).Create(invoice).Error; err != nil {
		return errors.Wrap(err, "failed to create invoice")
	}
	return nil
}

// Update applies the given fields and returns the updated row
func (r *InvoiceRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.Invoice, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to update invoice")
	}
	if res.RowsAffected == 0 {
		return nil, errors.Wrap(gorm.ErrRecordNotFound, "failed to update invoice")
	}
	return r.GetRaw(ctx, id)
}

// SoftDelete archives an invoice and returns the archived row
func (r *InvoiceRepository) SoftDelete(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := r.GetRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Invoice{}).Error; err != nil {
		return nil, errors.Wrap(err, "failed to archive invoice")
	}
	return invoice, nil
}

// MarkOverdue flips Sent invoices whose due date has passed to Overdue.
// Returns the number of rows updated.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceStatusSent, now).
		Updates(map[string]interface{}{"status": models.InvoiceStatusOverdue, "updated_at": now})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to mark overdue invoices")
	}
	return res.RowsAffected, nil
}

// SessionRepository resolves session tokens issued by the auth provider
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetByToken resolves a session token to the session and its user
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).Preload("User").Where("token = ?", token).First(&session).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session by token")
	}
	return &session, nil
}
