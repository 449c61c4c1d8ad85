package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/indraargamuria/opexio/internal/models"
	"github.com/indraargamuria/opexio/internal/repositories"
	"github.com/indraargamuria/opexio/internal/storage"
)

type invoiceFixture struct {
	service  *InvoiceService
	store    *storage.MemoryStore
	db       *gorm.DB
	user     *models.User
	customer *models.Customer
	shipment *models.ShipmentHeader
}

func setupInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.SetupModels(db))

	user := &models.User{ID: uuid.New(), Name: "Ade", Email: "ade@example.com"}
	require.NoError(t, db.Create(user).Error)

	customer := &models.Customer{ID: uuid.New(), CustomerID: "CUST-1", Name: "Acme"}
	require.NoError(t, db.Create(customer).Error)

	shipment := &models.ShipmentHeader{
		ID:             uuid.New(),
		ShipmentNumber: "SHP-100",
		CustomerID:     customer.ID,
		Status:         models.ShipmentStatusOnGoing,
	}
	require.NoError(t, db.Create(shipment).Error)

	store := storage.NewMemoryStore()
	service := NewInvoiceService(
		repositories.NewInvoiceRepository(db),
		repositories.NewCustomerRepository(db),
		repositories.NewShipmentRepository(db),
		store,
		FixedClock{T: testTime},
		1024,
	)

	return &invoiceFixture{service: service, store: store, db: db, user: user, customer: customer, shipment: shipment}
}

func (f *invoiceFixture) validInput(number string) CreateInvoiceInput {
	return CreateInvoiceInput{
		InvoiceNumber: number,
		CustomerID:    f.customer.ID.String(),
		Amount:        "1500.00",
		EntryType:     models.EntryTypeManual,
		IssueDate:     testTime,
		DueDate:       testTime.AddDate(0, 0, 14),
	}
}

func TestCreateInvoice(t *testing.T) {
	f := setupInvoiceFixture(t)
	ctx := context.Background()

	shipmentID := f.shipment.ID.String()
	input := f.validInput("INV-1")
	input.ShipmentID = &shipmentID

	invoice, err := f.service.Create(ctx, f.user, input, nil)
	require.NoError(t, err)
	require.Equal(t, "INV-1", invoice.InvoiceNumber)
	require.Equal(t, models.InvoiceStatusDraft, invoice.Status)
	require.Equal(t, f.shipment.ID, *invoice.ShipmentID)
	require.Equal(t, f.user.ID, *invoice.CreatedBy)
	require.Equal(t, testTime, invoice.CreatedAt)
	require.Nil(t, invoice.DocumentPath)
}

func TestCreateInvoiceRequiresUser(t *testing.T) {
	f := setupInvoiceFixture(t)

	_, err := f.service.Create(context.Background(), nil, f.validInput("INV-1"), nil)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateInvoiceMissingFields(t *testing.T) {
	f := setupInvoiceFixture(t)

	input := f.validInput("INV-1")
	input.Amount = ""
	_, err := f.service.Create(context.Background(), f.user, input, nil)
	_, ok := AsValidationError(err)
	require.True(t, ok)
}

func TestCreateInvoiceRejectsDuplicateNumber(t *testing.T) {
	f := setupInvoiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, f.user, f.validInput("INV-1"), nil)
	require.NoError(t, err)

	doc := &InvoiceDocument{Data: []byte("%PDF-1.4"), ContentType: "application/pdf"}
	_, err = f.service.Create(ctx, f.user, f.validInput("INV-1"), doc)
	require.ErrorIs(t, err, ErrInvoiceNumberTaken)

	// The collision is detected before any blob is written
	require.EqualValues(t, 0, f.store.Len())
}

func TestCreateInvoiceNumberStaysTakenAfterArchive(t *testing.T) {
	f := setupInvoiceFixture(t)
	ctx := context.Background()

	invoice, err := f.service.Create(ctx, f.user, f.validInput("INV-1"), nil)
	require.NoError(t, err)

	_, err = f.service.Archive(ctx, invoice.ID)
	require.NoError(t, err)

	_, err = f.service.Create(ctx, f.user, f.validInput("INV-1"), nil)
	require.ErrorIs(t, err, ErrInvoiceNumberTaken)
}

func TestCreateInvoiceUnknownCustomer(t *testing.T) {
	f := setupInvoiceFixture(t)

	input := f.validInput("INV-1")
	input.CustomerID = uuid.New().String()
	_, err := f.service.Create(context.Background(), f.user, input, nil)
	require.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestCreateInvoiceUnknownShipment(t *testing.T) {
	f := setupInvoiceFixture(t)

	unknown := uuid.New().String()
	input := f.validInput("INV-1")
	input.ShipmentID = &unknown
	_, err := f.service.Create(context.Background(), f.user, input, nil)
	require.ErrorIs(t, err, ErrShipmentNotFound)
}

func TestCreateInvoiceRejectsBadDocuments(t *testing.T) {
	f := setupInvoiceFixture(t)
	ctx := context.Background()

	doc := &InvoiceDocument{Data: []byte("GIF89a"), ContentType: "image/gif"}
	_, err := f.service.Create(ctx, f.user, f.validInput("INV-1"), doc)
	require.ErrorIs(t, err, ErrInvalidFileType)

	doc = &InvoiceDocument{Data: make([]byte, 2048), ContentType: "application/pdf"}
	_, err = f.service.Create(ctx, f.user, f.validInput("INV-1"), doc)
	require.ErrorIs(t, err, ErrFileTooLarge)

	require.EqualValues(t, 0, f.store.Len())
}

func TestCreateInvoiceWithDocument(t *testing.T) {
	f := setupInvoiceFixture(t)

	doc := &InvoiceDocument{Data: []byte("%PDF-1.4 invoice"), ContentType: "application/pdf"}
	invoice, err := f.service.Create(context.Background(), f.user, f.validInput("INV-1"), doc)
	require.NoError(t, err)
	require.NotNil(t, invoice.DocumentPath)
	require.True(t, strings.HasPrefix(*invoice.DocumentPath, "invoices/"))
	require.True(t, strings.HasSuffix(*invoice.DocumentPath, ".pdf"))
	require.True(t, f.store.Has(*invoice.DocumentPath))
}

func TestUpdateInvoiceStatus(t *testing.T) {
	f := setupInvoiceFixture(t)
	ctx := context.Background()

	invoice, err := f.service.Create(ctx, f.user, f.validInput("INV-1"), nil)
	require.NoError(t, err)

	sent := models.InvoiceStatusSent
	updated, err := f.service.Update(ctx, invoice.ID, UpdateInvoiceInput{Status: &sent})
	require.NoError(t, err)
	require.Equal(t, models.InvoiceStatusSent, updated.Status)

	bogus := "Shipped"
	_, err = f.service.Update(ctx, invoice.ID, UpdateInvoiceInput{Status: &bogus})
	require.ErrorIs(t, err, ErrInvalidInvoiceStatus)
}

func TestUpdateSystemGeneratedLocksNumberAndAmount(t *testing.T) {
	f := setupInvoiceFixture(t)
	ctx := context.Background()

	input := f.validInput("INV-1")
	input.EntryType = models.EntryTypeSystemGenerated
	invoice, err := f.service.Create(ctx, f.user, input, nil)
	require.NoError(t, err)

	newNumber := "INV-2"
	_, err = f.service.Update(ctx, invoice.ID, UpdateInvoiceInput{InvoiceNumber: &newNumber})
	require.ErrorIs(t, err, ErrLockedInvoiceNumber)

	newAmount := "9000.00"
	_, err = f.service.Update(ctx, invoice.ID, UpdateInvoiceInput{Amount: &newAmount})
	require.ErrorIs(t, err, ErrLockedInvoiceAmount)

	// Re-submitting the unchanged values is not a modification
	sameNumber, sameAmount := invoice.InvoiceNumber, invoice.Amount
	_, err = f.service.Update(ctx, invoice.ID, UpdateInvoiceInput{InvoiceNumber: &sameNumber, Amount: &sameAmount})
	require.NoError(t, err)
}

func TestArchiveKeepsDocumentBlob(t *testing.T) {
	f := setupInvoiceFixture(t)
	ctx := context.Background()

	doc := &InvoiceDocument{Data: []byte("%PDF-1.4 invoice"), ContentType: "application/pdf"}
	invoice, err := f.service.Create(ctx, f.user, f.validInput("INV-1"), doc)
	require.NoError(t, err)

	_, err = f.service.Archive(ctx, invoice.ID)
	require.NoError(t, err)

	_, err = f.service.Get(ctx, invoice.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, f.store.Has(*invoice.DocumentPath))
}

func TestInvoiceGetFile(t *testing.T) {
	f := setupInvoiceFixture(t)
	ctx := context.Background()

	doc := &InvoiceDocument{Data: []byte("%PDF-1.4 invoice"), ContentType: "application/pdf"}
	invoice, err := f.service.Create(ctx, f.user, f.validInput("INV-1"), doc)
	require.NoError(t, err)

	data, contentType, filename, err := f.service.GetFile(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, doc.Data, data)
	require.Equal(t, "application/pdf", contentType)
	require.True(t, strings.HasPrefix(filename, "INV-1-"))
	require.True(t, strings.HasSuffix(filename, ".pdf"))

	// No attachment
	bare, err := f.service.Create(ctx, f.user, f.validInput("INV-2"), nil)
	require.NoError(t, err)
	_, _, _, err = f.service.GetFile(ctx, bare.ID)
	require.ErrorIs(t, err, ErrNoFileAttached)
}

func TestMarkOverdueSweep(t *testing.T) {
	f := setupInvoiceFixture(t)
	ctx := context.Background()

	input := f.validInput("INV-1")
	input.Status = models.InvoiceStatusSent
	input.DueDate = testTime.AddDate(0, 0, -1)
	invoice, err := f.service.Create(ctx, f.user, input, nil)
	require.NoError(t, err)

	n, err := f.service.MarkOverdue(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	row, err := f.service.Get(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvoiceStatusOverdue, row.Status)
}
