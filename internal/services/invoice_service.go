package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/indraargamuria/opexio/internal/models"
	"github.com/indraargamuria/opexio/internal/repositories"
	"github.com/indraargamuria/opexio/internal/storage"
)

// Invoice-specific failures, mapped to status codes by the handler.
var (
	ErrInvoiceNumberTaken   = errors.New("Invoice number already exists")
	ErrCustomerNotFound     = errors.New("Customer not found")
	ErrShipmentNotFound     = errors.New("Shipment not found")
	ErrInvalidInvoiceStatus = errors.New("Invalid status value")
	ErrLockedInvoiceNumber  = errors.New("Cannot modify invoice number for system-generated invoices")
	ErrLockedInvoiceAmount  = errors.New("Cannot modify amount for system-generated invoices")
	ErrInvalidFileType      = errors.New("Invalid file type. Only PDF, PNG, and JPG files are allowed.")
	ErrFileTooLarge         = errors.New("File size exceeds 5MB limit.")
)

var invoiceDocumentTypes = map[string]string{
	"application/pdf": "pdf",
	"image/png":       "png",
	"image/jpeg":      "jpg",
}

// InvoiceService handles the invoice lifecycle, including attached documents
type InvoiceService struct {
	invoices    *repositories.InvoiceRepository
	customers   *repositories.CustomerRepository
	shipments   ShipmentStore
	store       storage.ObjectStore
	clock       Clock
	maxFileSize int64
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(invoices *repositories.InvoiceRepository, customers *repositories.CustomerRepository, shipments ShipmentStore, store storage.ObjectStore, clock Clock, maxFileSize int64) *InvoiceService {
	return &InvoiceService{
		invoices:    invoices,
		customers:   customers,
		shipments:   shipments,
		store:       store,
		clock:       clock,
		maxFileSize: maxFileSize,
	}
}

// CreateInvoiceInput is an invoice create request
type CreateInvoiceInput struct {
	InvoiceNumber string    `json:"invoiceNumber"`
	CustomerID    string    `json:"customerId"`
	ShipmentID    *string   `json:"shipmentId"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	EntryType     string    `json:"entryType"`
	IssueDate     time.Time `json:"issueDate"`
	DueDate       time.Time `json:"dueDate"`
}

// InvoiceDocument is an uploaded document attached to an invoice
type InvoiceDocument struct {
	Data        []byte
	ContentType string
}

func (in CreateInvoiceInput) missingFields() bool {
	return in.InvoiceNumber == "" || in.CustomerID == "" || in.Amount == "" ||
		in.EntryType == "" || in.IssueDate.IsZero() || in.DueDate.IsZero()
}

// Create persists a new invoice. If a document is attached it is uploaded
// first under invoices/{uuid}.{ext}; the blob is removed again if the insert
// fails afterwards.
func (s *InvoiceService) Create(ctx context.Context, user *models.User, input CreateInvoiceInput, doc *InvoiceDocument) (*models.Invoice, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}

	if input.missingFields() {
		return nil, &ValidationError{Fields: []FieldError{{Field: "invoice", Message: "Missing required fields"}}}
	}

	// Reused numbers must fail before any blob is written.
	if _, err := s.invoices.GetByNumber(ctx, input.InvoiceNumber); err == nil {
		return nil, ErrInvoiceNumberTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	customerID, err := uuid.Parse(input.CustomerID)
	if err != nil {
		return nil, ErrCustomerNotFound
	}
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	var shipmentID *uuid.UUID
	if input.ShipmentID != nil && *input.ShipmentID != "" {
		id, err := uuid.Parse(*input.ShipmentID)
		if err != nil {
			return nil, ErrShipmentNotFound
		}
		if _, err := s.shipments.GetByID(ctx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrShipmentNotFound
			}
			return nil, err
		}
		shipmentID = &id
	}

	var documentPath *string
	if doc != nil {
		ext, ok := invoiceDocumentTypes[doc.ContentType]
		if !ok {
			return nil, ErrInvalidFileType
		}
		if int64(len(doc.Data)) > s.maxFileSize {
			return nil, ErrFileTooLarge
		}
		key := fmt.Sprintf("invoices/%s.%s", uuid.New().String(), ext)
		if err := s.store.Put(ctx, key, doc.Data, doc.ContentType); err != nil {
			return nil, errors.Wrap(ErrStorageFailed, err.Error())
		}
		documentPath = &key
	}

	status := input.Status
	if status == "" {
		status = models.InvoiceStatusDraft
	}

	now := s.clock.Now()
	invoice := &models.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: input.InvoiceNumber,
		CustomerID:    customerID,
		ShipmentID:    shipmentID,
		Amount:        input.Amount,
		Status:        status,
		DocumentPath:  documentPath,
		EntryType:     input.EntryType,
		IssueDate:     input.IssueDate,
		DueDate:       input.DueDate,
		CreatedBy:     &user.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.invoices.Create(ctx, invoice); err != nil {
		if documentPath != nil {
			if cleanupErr := s.store.Delete(ctx, *documentPath); cleanupErr != nil {
				log.Error().Err(cleanupErr).Str("key", *documentPath).Msg("Failed to cleanup invoice document")
			}
		}
		return nil, errors.Wrap(ErrPersistenceFailed, err.Error())
	}

	return invoice, nil
}

// List returns invoices matching the filter, names joined
func (s *InvoiceService) List(ctx context.Context, filter repositories.InvoiceFilter) ([]repositories.InvoiceRow, error) {
	return s.invoices.List(ctx, filter)
}

// Get returns one invoice with names joined
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*repositories.InvoiceRow, error) {
	row, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row, nil
}

// UpdateInvoiceInput carries the mutable invoice fields
type UpdateInvoiceInput struct {
	InvoiceNumber *string `json:"invoiceNumber"`
	Amount        *string `json:"amount"`
	Status        *string `json:"status"`
	DocumentPath  *string `json:"documentPath"`
}

// Update applies invoice mutations. System-generated invoices lock their
// number and amount against change.
func (s *InvoiceService) Update(ctx context.Context, id uuid.UUID, input UpdateInvoiceInput) (*models.Invoice, error) {
	existing, err := s.invoices.GetRaw(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if existing.EntryType == models.EntryTypeSystemGenerated {
		if input.InvoiceNumber != nil && *input.InvoiceNumber != existing.InvoiceNumber {
			return nil, ErrLockedInvoiceNumber
		}
		if input.Amount != nil && *input.Amount != existing.Amount {
			return nil, ErrLockedInvoiceAmount
		}
	}

	fields := map[string]interface{}{"updated_at": s.clock.Now()}
	if input.Status != nil {
		if !models.ValidInvoiceStatus(*input.Status) {
			return nil, ErrInvalidInvoiceStatus
		}
		fields["status"] = *input.Status
	}
	if input.DocumentPath != nil {
		fields["document_path"] = *input.DocumentPath
	}
	if input.InvoiceNumber != nil && existing.EntryType != models.EntryTypeSystemGenerated {
		fields["invoice_number"] = *input.InvoiceNumber
	}
	if input.Amount != nil && existing.EntryType != models.EntryTypeSystemGenerated {
		fields["amount"] = *input.Amount
	}

	invoice, err := s.invoices.Update(ctx, id, fields)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return invoice, nil
}

// Archive soft-deletes an invoice. The document blob is kept: the row still
// exists and may be restored from the database directly.
func (s *InvoiceService) Archive(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.invoices.SoftDelete(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return invoice, nil
}

// GetFile streams an invoice's attached document
func (s *InvoiceService) GetFile(ctx context.Context, id uuid.UUID) (data []byte, contentType, filename string, err error) {
	invoice, err := s.invoices.GetRaw(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, "", "", ErrNotFound
		}
		return nil, "", "", err
	}
	if invoice.DocumentPath == nil {
		return nil, "", "", ErrNoFileAttached
	}

	data, contentType, err = s.store.Get(ctx, *invoice.DocumentPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", "", ErrFileMissing
		}
		return nil, "", "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	filename = fmt.Sprintf("%s-%s", invoice.InvoiceNumber, keyBasename(*invoice.DocumentPath))
	return data, contentType, filename, nil
}

// MarkOverdue is the worker entry point: Sent invoices past their due date
// become Overdue.
func (s *InvoiceService) MarkOverdue(ctx context.Context) (int64, error) {
	n, err := s.invoices.MarkOverdue(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("count", n).Msg("Marked invoices overdue")
	}
	return n, nil
}

func keyBasename(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}
