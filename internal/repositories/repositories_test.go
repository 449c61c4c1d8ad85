package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/indraargamuria/opexio/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.SetupModels(db))
	return db
}

func seedCustomer(t *testing.T, db *gorm.DB, name string) *models.Customer {
	t.Helper()
	customer := &models.Customer{
		ID:         uuid.New(),
		CustomerID: "CUST-" + uuid.New().String()[:8],
		Name:       name,
	}
	require.NoError(t, db.Create(customer).Error)
	return customer
}

func newHeader(customerID uuid.UUID, number, token string) *models.ShipmentHeader {
	stamped := "shipments/" + number + "/stamped.pdf"
	return &models.ShipmentHeader{
		ID:              uuid.New(),
		ShipmentNumber:  number,
		CustomerID:      customerID,
		OriginalFileKey: "shipments/" + number + "/original.pdf",
		StampedFileKey:  &stamped,
		Status:          models.ShipmentStatusOnGoing,
		PublicToken:     &token,
		IsLinkActive:    true,
	}
}

func newDetails(codes ...string) []models.ShipmentDetail {
	details := make([]models.ShipmentDetail, 0, len(codes))
	for _, code := range codes {
		details = append(details, models.ShipmentDetail{
			ID:       uuid.New(),
			ItemCode: code,
			Quantity: 1,
			Status:   models.DetailStatusPending,
		})
	}
	return details
}

func TestCreateWithDetailsRollsBackOnDuplicateNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShipmentRepository(db)
	ctx := context.Background()
	customer := seedCustomer(t, db, "Acme")

	first := newHeader(customer.ID, "SHP-100", "token-a")
	require.NoError(t, repo.CreateWithDetails(ctx, first, newDetails("ITEM-1", "ITEM-2")))

	// Same shipment number trips the unique constraint; nothing of the second
	// batch may survive
	second := newHeader(customer.ID, "SHP-100", "token-b")
	err := repo.CreateWithDetails(ctx, second, newDetails("ITEM-3"))
	require.Error(t, err)

	var headerCount, detailCount int64
	require.NoError(t, db.Model(&models.ShipmentHeader{}).Count(&headerCount).Error)
	require.NoError(t, db.Model(&models.ShipmentDetail{}).Count(&detailCount).Error)
	require.EqualValues(t, 1, headerCount)
	require.EqualValues(t, 2, detailCount)
}

func TestUpdateStatusReplacesDetails(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShipmentRepository(db)
	ctx := context.Background()
	customer := seedCustomer(t, db, "Acme")

	header := newHeader(customer.ID, "SHP-200", "token-200")
	require.NoError(t, repo.CreateWithDetails(ctx, header, newDetails("OLD-1", "OLD-2")))

	now := time.Now().UTC().Truncate(time.Second)
	updated, err := repo.UpdateStatus(ctx, header.ID, models.ShipmentStatusDelivered, newDetails("NEW-1"), now)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusDelivered, updated.Status)

	details, err := repo.DetailsForHeader(ctx, header.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, "NEW-1", details[0].ItemCode)
}

func TestUpdateStatusKeepsDetailsWhenNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShipmentRepository(db)
	ctx := context.Background()
	customer := seedCustomer(t, db, "Acme")

	header := newHeader(customer.ID, "SHP-201", "token-201")
	require.NoError(t, repo.CreateWithDetails(ctx, header, newDetails("ITEM-1", "ITEM-2")))

	_, err := repo.UpdateStatus(ctx, header.ID, models.ShipmentStatusDelivered, nil, time.Now())
	require.NoError(t, err)

	details, err := repo.DetailsForHeader(ctx, header.ID)
	require.NoError(t, err)
	require.Len(t, details, 2)
}

func TestUpdateStatusUnknownShipment(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShipmentRepository(db)

	_, err := repo.UpdateStatus(context.Background(), uuid.New(), models.ShipmentStatusDelivered, nil, time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetByTokenJoinsCustomerName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShipmentRepository(db)
	ctx := context.Background()
	customer := seedCustomer(t, db, "Globex")

	header := newHeader(customer.ID, "SHP-300", "token-300")
	require.NoError(t, repo.CreateWithDetails(ctx, header, newDetails("ITEM-1")))

	row, err := repo.GetByToken(ctx, "token-300")
	require.NoError(t, err)
	require.Equal(t, "SHP-300", row.ShipmentNumber)
	require.NotNil(t, row.CustomerName)
	require.Equal(t, "Globex", *row.CustomerName)

	_, err = repo.GetByToken(ctx, "no-such-token")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmDeliverySkipsUnknownDetailIDs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShipmentRepository(db)
	ctx := context.Background()
	customer := seedCustomer(t, db, "Acme")

	header := newHeader(customer.ID, "SHP-400", "token-400")
	details := newDetails("ITEM-1", "ITEM-2")
	require.NoError(t, repo.CreateWithDetails(ctx, header, details))

	comments := "left at reception"
	corrections := []DetailCorrection{
		{ID: details[0].ID, QtyDelivered: 3},
		{ID: uuid.New(), QtyDelivered: 99}, // unknown id, must be ignored
	}
	require.NoError(t, repo.ConfirmDelivery(ctx, header.ID, &comments, corrections, time.Now()))

	updated, err := repo.GetByID(ctx, header.ID)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusDelivered, updated.Status)
	require.NotNil(t, updated.DeliveryComments)
	require.Equal(t, comments, *updated.DeliveryComments)

	rows, err := repo.DetailsForHeader(ctx, header.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, d := range rows {
		if d.ID == details[0].ID {
			require.NotNil(t, d.QtyDelivered)
			require.Equal(t, 3, *d.QtyDelivered)
		} else {
			require.Nil(t, d.QtyDelivered)
		}
	}
}

func TestDeleteRemovesHeaderAndDetails(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShipmentRepository(db)
	ctx := context.Background()
	customer := seedCustomer(t, db, "Acme")

	header := newHeader(customer.ID, "SHP-500", "token-500")
	require.NoError(t, repo.CreateWithDetails(ctx, header, newDetails("ITEM-1", "ITEM-2")))

	deleted, err := repo.Delete(ctx, header.ID)
	require.NoError(t, err)
	require.Equal(t, header.OriginalFileKey, deleted.OriginalFileKey)

	_, err = repo.GetByID(ctx, header.ID)
	require.ErrorIs(t, err, ErrNotFound)

	var detailCount int64
	require.NoError(t, db.Model(&models.ShipmentDetail{}).Where("shipment_header_id = ?", header.ID).Count(&detailCount).Error)
	require.EqualValues(t, 0, detailCount)
}

func seedInvoice(t *testing.T, repo *InvoiceRepository, customerID uuid.UUID, number, status string, dueDate time.Time) *models.Invoice {
	t.Helper()
	invoice := &models.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: number,
		CustomerID:    customerID,
		Amount:        "1500.00",
		Status:        status,
		EntryType:     models.EntryTypeManual,
		IssueDate:     dueDate.AddDate(0, -1, 0),
		DueDate:       dueDate,
	}
	require.NoError(t, repo.Create(context.Background(), invoice))
	return invoice
}

func TestInvoiceSoftDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()
	customer := seedCustomer(t, db, "Acme")

	invoice := seedInvoice(t, repo, customer.ID, "INV-1", models.InvoiceStatusDraft, time.Now().AddDate(0, 0, 14))

	archived, err := repo.SoftDelete(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, invoice.ID, archived.ID)

	// Archived rows vanish from reads
	_, err = repo.GetByID(ctx, invoice.ID)
	require.ErrorIs(t, err, ErrNotFound)

	rows, err := repo.List(ctx, InvoiceFilter{})
	require.NoError(t, err)
	require.Empty(t, rows)

	// but the number stays reserved
	_, err = repo.GetByNumber(ctx, "INV-1")
	require.NoError(t, err)
}

func TestInvoiceListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()
	acme := seedCustomer(t, db, "Acme")
	globex := seedCustomer(t, db, "Globex")

	due := time.Now().AddDate(0, 0, 14)
	seedInvoice(t, repo, acme.ID, "INV-10", models.InvoiceStatusDraft, due)
	seedInvoice(t, repo, acme.ID, "INV-11", models.InvoiceStatusSent, due)
	seedInvoice(t, repo, globex.ID, "INV-12", models.InvoiceStatusSent, due)

	rows, err := repo.List(ctx, InvoiceFilter{Status: models.InvoiceStatusSent})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = repo.List(ctx, InvoiceFilter{Status: models.InvoiceStatusSent, CustomerID: &acme.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "INV-11", rows[0].InvoiceNumber)
	require.NotNil(t, rows[0].CustomerName)
	require.Equal(t, "Acme", *rows[0].CustomerName)
}

func TestMarkOverdue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()
	customer := seedCustomer(t, db, "Acme")

	now := time.Now()
	pastDue := seedInvoice(t, repo, customer.ID, "INV-20", models.InvoiceStatusSent, now.AddDate(0, 0, -3))
	seedInvoice(t, repo, customer.ID, "INV-21", models.InvoiceStatusSent, now.AddDate(0, 0, 3))
	seedInvoice(t, repo, customer.ID, "INV-22", models.InvoiceStatusDraft, now.AddDate(0, 0, -3))

	n, err := repo.MarkOverdue(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	flipped, err := repo.GetRaw(ctx, pastDue.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvoiceStatusOverdue, flipped.Status)

	// Idempotent: a second sweep finds nothing left in Sent
	n, err = repo.MarkOverdue(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestSessionGetByTokenPreloadsUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Name: "Ade", Email: "ade@example.com"}
	require.NoError(t, db.Create(user).Error)

	session := &models.Session{
		ID:        uuid.New(),
		Token:     "session-token",
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(session).Error)

	got, err := repo.GetByToken(ctx, "session-token")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.User.ID)
	require.Equal(t, "Ade", got.User.Name)

	_, err = repo.GetByToken(ctx, "unknown")
	require.ErrorIs(t, err, ErrNotFound)
}
