package services

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/indraargamuria/opexio/internal/cache"
	"github.com/indraargamuria/opexio/internal/models"
	"github.com/indraargamuria/opexio/internal/repositories"
	"github.com/indraargamuria/opexio/internal/storage"
)

// How long a resolved public shipment payload may be served from cache.
const publicShipmentCacheTTL = 30 * time.Second

// ShipmentStore is the relational contract the shipment flows depend on
type ShipmentStore interface {
	CreateWithDetails(ctx context.Context, header *models.ShipmentHeader, details []models.ShipmentDetail) error
	List(ctx context.Context) ([]repositories.ShipmentListRow, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ShipmentHeader, error)
	GetByToken(ctx context.Context, token string) (*repositories.TokenLookup, error)
	DetailsForHeader(ctx context.Context, headerID uuid.UUID) ([]models.ShipmentDetail, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, newDetails []models.ShipmentDetail, now time.Time) (*models.ShipmentHeader, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.ShipmentHeader, error)
	ConfirmDelivery(ctx context.Context, headerID uuid.UUID, comments *string, corrections []repositories.DetailCorrection, now time.Time) error
}

// Stamper embeds a verification QR code into a PDF
type Stamper interface {
	Stamp(src []byte, verificationURL string) ([]byte, error)
}

// ShipmentService handles the shipment ingestion pipeline and the public
// delivery-confirmation flow
type ShipmentService struct {
	repo          ShipmentStore
	store         storage.ObjectStore
	stamper       Stamper
	cache         *cache.RedisCache
	clock         Clock
	validate      *validator.Validate
	publicBaseURL string
}

// NewShipmentService creates a new shipment service
func NewShipmentService(repo ShipmentStore, store storage.ObjectStore, stamper Stamper, redisCache *cache.RedisCache, clock Clock, publicBaseURL string) *ShipmentService {
	return &ShipmentService{
		repo:          repo,
		store:         store,
		stamper:       stamper,
		cache:         redisCache,
		clock:         clock,
		validate:      validator.New(),
		publicBaseURL: publicBaseURL,
	}
}

// ShipmentHeaderInput is the header portion of a create request
type ShipmentHeaderInput struct {
	ShipmentNumber string `json:"shipmentNumber" validate:"required"`
	CustomerID     string `json:"customerId" validate:"required,uuid"`
	Status         string `json:"status" validate:"required"`
}

// ShipmentDetailInput is one line item of a create request
type ShipmentDetailInput struct {
	ItemCode        string  `json:"itemCode" validate:"required"`
	ItemDescription *string `json:"itemDescription"`
	Quantity        int     `json:"quantity" validate:"required,gt=0"`
	Status          string  `json:"status" validate:"required"`
}

// CreateShipmentInput is a full shipment create request
type CreateShipmentInput struct {
	Header  ShipmentHeaderInput   `json:"header"`
	Details []ShipmentDetailInput `json:"details" validate:"required,min=1,dive"`
}

// Create runs the ingestion pipeline: validate, stamp the PDF with a
// verification QR, upload original and stamped blobs, then persist header and
// details as one atomic batch. Uploaded blobs are deleted again if the batch
// fails. The pipeline is not idempotent: retrying with the same shipment
// number overwrites the blobs and then loses on the unique constraint.
func (s *ShipmentService) Create(ctx context.Context, user *models.User, input CreateShipmentInput, fileBytes []byte) (*models.ShipmentHeader, []models.ShipmentDetail, error) {
	if user == nil {
		return nil, nil, ErrUnauthorized
	}

	if err := s.validate.Struct(input); err != nil {
		return nil, nil, newValidationError(err)
	}

	if http.DetectContentType(fileBytes) != "application/pdf" {
		return nil, nil, ErrUnsupportedMedia
	}

	originalKey, stampedKey := ShipmentObjectKeys(input.Header.ShipmentNumber)

	token, err := NewPublicToken()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to generate public token")
	}
	verificationURL := VerificationURL(s.publicBaseURL, token)

	// Stamp before any storage write: a stamping failure aborts the whole
	// operation with nothing to clean up.
	stampedBytes, err := s.stamper.Stamp(fileBytes, verificationURL)
	if err != nil {
		log.Error().Err(err).Str("shipment_number", input.Header.ShipmentNumber).Msg("PDF stamping failed")
		return nil, nil, errors.Wrap(ErrProcessingFailed, err.Error())
	}

	now := s.clock.Now()
	customerID, err := uuid.Parse(input.Header.CustomerID)
	if err != nil {
		return nil, nil, &ValidationError{Fields: []FieldError{{Field: "header.customerId", Message: "must be a valid id"}}}
	}

	header := &models.ShipmentHeader{
		ID:              uuid.New(),
		ShipmentNumber:  input.Header.ShipmentNumber,
		CustomerID:      customerID,
		OriginalFileKey: originalKey,
		StampedFileKey:  &stampedKey,
		Status:          input.Header.Status,
		PublicToken:     &token,
		IsLinkActive:    true,
		CreatedBy:       &user.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	details := make([]models.ShipmentDetail, 0, len(input.Details))
	for _, d := range input.Details {
		status := d.Status
		if status == "" {
			status = models.DetailStatusPending
		}
		details = append(details, models.ShipmentDetail{
			ID:              uuid.New(),
			ItemCode:        d.ItemCode,
			ItemDescription: d.ItemDescription,
			Quantity:        d.Quantity,
			Status:          status,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	steps := []sagaStep{
		{
			name: "upload-original",
			run: func(ctx context.Context) error {
				if err := s.store.Put(ctx, originalKey, fileBytes, "application/pdf"); err != nil {
					return errors.Wrap(ErrStorageFailed, err.Error())
				}
				return nil
			},
			compensate: func(ctx context.Context) error {
				return s.store.Delete(ctx, originalKey)
			},
		},
		{
			name: "upload-stamped",
			run: func(ctx context.Context) error {
				if err := s.store.Put(ctx, stampedKey, stampedBytes, "application/pdf"); err != nil {
					return errors.Wrap(ErrStorageFailed, err.Error())
				}
				return nil
			},
			compensate: func(ctx context.Context) error {
				return s.store.Delete(ctx, stampedKey)
			},
		},
		{
			name: "persist-batch",
			run: func(ctx context.Context) error {
				if err := s.repo.CreateWithDetails(ctx, header, details); err != nil {
					return errors.Wrap(ErrPersistenceFailed, err.Error())
				}
				return nil
			},
		},
	}

	if err := (&saga{}).execute(ctx, steps); err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("shipment_id", header.ID.String()).
		Str("shipment_number", header.ShipmentNumber).
		Int("details", len(details)).
		Msg("Shipment created")

	return header, details, nil
}

// List returns all shipments with creator names joined
func (s *ShipmentService) List(ctx context.Context) ([]repositories.ShipmentListRow, error) {
	return s.repo.List(ctx)
}

// GetWithDetails returns one shipment header plus its line items
func (s *ShipmentService) GetWithDetails(ctx context.Context, id uuid.UUID) (*models.ShipmentHeader, []models.ShipmentDetail, error) {
	header, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	details, err := s.repo.DetailsForHeader(ctx, header.ID)
	if err != nil {
		return nil, nil, err
	}
	return header, details, nil
}

// Update sets a header's status and optionally replaces its detail set.
// Replacement details always start out pending.
func (s *ShipmentService) Update(ctx context.Context, id uuid.UUID, status string, detailInputs []ShipmentDetailInput) (*models.ShipmentHeader, error) {
	now := s.clock.Now()

	var details []models.ShipmentDetail
	if detailInputs != nil {
		details = make([]models.ShipmentDetail, 0, len(detailInputs))
		for _, d := range detailInputs {
			details = append(details, models.ShipmentDetail{
				ID:              uuid.New(),
				ItemCode:        d.ItemCode,
				ItemDescription: d.ItemDescription,
				Quantity:        d.Quantity,
				Status:          models.DetailStatusPending,
				CreatedAt:       now,
				UpdatedAt:       now,
			})
		}
	}

	header, err := s.repo.UpdateStatus(ctx, id, status, details, now)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return header, nil
}

// Delete removes the shipment row set, then releases its blobs best-effort.
// A blob deletion failure is logged, never surfaced.
func (s *ShipmentService) Delete(ctx context.Context, id uuid.UUID) (*models.ShipmentHeader, error) {
	header, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if header.OriginalFileKey != "" {
		if err := s.store.Delete(ctx, header.OriginalFileKey); err != nil {
			log.Error().Err(err).Str("key", header.OriginalFileKey).Msg("Failed to delete shipment blob")
		}
	}
	if header.StampedFileKey != nil {
		if err := s.store.Delete(ctx, *header.StampedFileKey); err != nil {
			log.Error().Err(err).Str("key", *header.StampedFileKey).Msg("Failed to delete shipment blob")
		}
	}

	return header, nil
}

// GetFile streams a shipment's original or stamped PDF out of the object store
func (s *ShipmentService) GetFile(ctx context.Context, id uuid.UUID, fileType string) (data []byte, contentType, filename string, err error) {
	header, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, "", "", ErrNotFound
		}
		return nil, "", "", err
	}

	var key string
	switch fileType {
	case "stamped":
		if header.StampedFileKey == nil {
			return nil, "", "", ErrNoFileAttached
		}
		key = *header.StampedFileKey
		filename = header.ShipmentNumber + "-stamped.pdf"
	default:
		if header.OriginalFileKey == "" {
			return nil, "", "", ErrNoFileAttached
		}
		key = header.OriginalFileKey
		filename = header.ShipmentNumber + ".pdf"
	}

	data, contentType, err = s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", "", ErrFileMissing
		}
		return nil, "", "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, filename, nil
}

// PublicShipmentItem is a line item as shown on the verification page
type PublicShipmentItem struct {
	ID              uuid.UUID `json:"id"`
	ItemCode        string    `json:"itemCode"`
	ItemDescription *string   `json:"itemDescription"`
	Quantity        int       `json:"quantity"`
	QtyDelivered    *int      `json:"qtyDelivered"`
	Status          string    `json:"status"`
}

// PublicShipment is the full verification payload for an undelivered shipment
type PublicShipment struct {
	ID               uuid.UUID            `json:"id"`
	ShipmentNumber   string               `json:"shipmentNumber"`
	Status           string               `json:"status"`
	DeliveryComments *string              `json:"deliveryComments"`
	CreatedAt        time.Time            `json:"createdAt"`
	CustomerName     *string              `json:"customerName"`
	IsLinkActive     bool                 `json:"isLinkActive"`
	Details          []PublicShipmentItem `json:"details"`
}

// ProcessedShipment is the reduced payload for an already delivered shipment.
// It deliberately omits all item-level detail.
type ProcessedShipment struct {
	ShipmentNumber string `json:"shipmentNumber"`
	Status         string `json:"status"`
	IsProcessed    bool   `json:"isProcessed"`
}

// PublicShipmentResult holds exactly one of the two verification payloads
type PublicShipmentResult struct {
	Processed *ProcessedShipment `json:"processed,omitempty"`
	Shipment  *PublicShipment    `json:"shipment,omitempty"`
}

// GetPublicShipment resolves a verification token into the payload shown on
// the public confirmation page.
func (s *ShipmentService) GetPublicShipment(ctx context.Context, token string) (*PublicShipmentResult, error) {
	cacheKey := cache.PublicShipmentCacheKey(token)
	if s.cache.Enabled() {
		var cached PublicShipmentResult
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	row, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if !row.IsLinkActive {
		return nil, ErrLinkExpired
	}

	if row.Status == models.ShipmentStatusDelivered {
		return &PublicShipmentResult{Processed: &ProcessedShipment{
			ShipmentNumber: row.ShipmentNumber,
			Status:         models.ShipmentStatusDelivered,
			IsProcessed:    true,
		}}, nil
	}

	details, err := s.repo.DetailsForHeader(ctx, row.ID)
	if err != nil {
		return nil, err
	}

	items := make([]PublicShipmentItem, 0, len(details))
	for _, d := range details {
		items = append(items, PublicShipmentItem{
			ID:              d.ID,
			ItemCode:        d.ItemCode,
			ItemDescription: d.ItemDescription,
			Quantity:        d.Quantity,
			QtyDelivered:    d.QtyDelivered,
			Status:          d.Status,
		})
	}

	result := &PublicShipmentResult{Shipment: &PublicShipment{
		ID:               row.ID,
		ShipmentNumber:   row.ShipmentNumber,
		Status:           row.Status,
		DeliveryComments: row.DeliveryComments,
		CreatedAt:        row.CreatedAt,
		CustomerName:     row.CustomerName,
		IsLinkActive:     row.IsLinkActive,
		Details:          items,
	}}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, result, publicShipmentCacheTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache public shipment")
		}
	}

	return result, nil
}

// ConfirmDetailInput is one delivered-quantity correction
type ConfirmDetailInput struct {
	ID           *uuid.UUID `json:"id"`
	QtyDelivered *int       `json:"qtyDelivered"`
}

// ConfirmDeliveryInput is the public confirmation submission
type ConfirmDeliveryInput struct {
	DeliveryComments *string              `json:"deliveryComments"`
	Details          []ConfirmDetailInput `json:"details"`
}

// ConfirmDelivery transitions a shipment to Delivered and applies the
// submitted quantity corrections. Corrections referencing unknown detail ids
// are skipped silently. All writes are a single logical unit: a partial
// failure surfaces as a confirmation failure, never as success.
func (s *ShipmentService) ConfirmDelivery(ctx context.Context, token string, input ConfirmDeliveryInput) error {
	row, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if !row.IsLinkActive {
		return ErrLinkExpired
	}

	corrections := make([]repositories.DetailCorrection, 0, len(input.Details))
	for _, d := range input.Details {
		if d.ID == nil || d.QtyDelivered == nil {
			continue
		}
		corrections = append(corrections, repositories.DetailCorrection{
			ID:           *d.ID,
			QtyDelivered: *d.QtyDelivered,
		})
	}

	if err := s.repo.ConfirmDelivery(ctx, row.ID, input.DeliveryComments, corrections, s.clock.Now()); err != nil {
		return errors.Wrap(ErrConfirmationFailed, err.Error())
	}

	if s.cache.Enabled() {
		if err := s.cache.Invalidate(ctx, cache.PublicShipmentCacheKey(token)); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate public shipment cache")
		}
	}

	log.Info().
		Str("shipment_id", row.ID.String()).
		Str("shipment_number", row.ShipmentNumber).
		Int("corrections", len(corrections)).
		Msg("Delivery confirmed")

	return nil
}
