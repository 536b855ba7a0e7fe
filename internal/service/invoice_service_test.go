package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanghuy-dev/dorm-api/internal/models"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
)

type invoiceReaderStub struct {
	invoice models.Invoice
	roomFee *models.RoomFeeInvoice
	list    []models.Invoice
	total   int
}

func (s *invoiceReaderStub) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	copied := s.invoice
	return &copied, nil
}

func (s *invoiceReaderStub) FindRoomFeeDetail(ctx context.Context, exec sqlx.ExtContext, invoiceID string) (*models.RoomFeeInvoice, error) {
	if s.roomFee == nil {
		return nil, sql.ErrNoRows
	}
	copied := *s.roomFee
	return &copied, nil
}

func (s *invoiceReaderStub) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	return s.list, s.total, nil
}

func TestInvoiceServiceStatementCSV(t *testing.T) {
	svc := NewInvoiceService(&invoiceReaderStub{invoice: publishedRoomFeeInvoice()}, nil)

	statement, err := svc.Statement(context.Background(), "inv-1", StatementFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "invoice-RF-202601-ABC.csv", statement.FileName)
	assert.Equal(t, "text/csv", statement.ContentType)
	assert.Contains(t, string(statement.Content), "RF-202601-ABC")
	assert.Contains(t, string(statement.Content), "5000000")
}

func TestInvoiceServiceStatementDefaultsToPDF(t *testing.T) {
	svc := NewInvoiceService(&invoiceReaderStub{invoice: publishedRoomFeeInvoice()}, nil)

	statement, err := svc.Statement(context.Background(), "inv-1", "")
	require.NoError(t, err)
	assert.Equal(t, "invoice-RF-202601-ABC.pdf", statement.FileName)
	assert.Equal(t, "application/pdf", statement.ContentType)
	assert.NotEmpty(t, statement.Content)
}

func TestInvoiceServiceStatementRejectsUnknownFormat(t *testing.T) {
	svc := NewInvoiceService(&invoiceReaderStub{invoice: publishedRoomFeeInvoice()}, nil)

	_, err := svc.Statement(context.Background(), "inv-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestInvoiceServiceDetailIncludesRoomFee(t *testing.T) {
	reader := &invoiceReaderStub{
		invoice: publishedRoomFeeInvoice(),
		roomFee: &models.RoomFeeInvoice{ID: "rf-1", InvoiceID: "inv-1", RoomID: "room-1", SemesterID: "sem-1", Price: 5000000},
	}
	svc := NewInvoiceService(reader, nil)

	detail, err := svc.Detail(context.Background(), "inv-1")
	require.NoError(t, err)
	require.NotNil(t, detail.RoomFee)
	assert.Equal(t, "room-1", detail.RoomFee.RoomID)
	assert.EqualValues(t, 5000000, detail.RoomFee.Price)
}

func TestInvoiceServiceDetailToleratesMissingRoomFeeRow(t *testing.T) {
	svc := NewInvoiceService(&invoiceReaderStub{invoice: publishedRoomFeeInvoice()}, nil)

	detail, err := svc.Detail(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Nil(t, detail.RoomFee)
}

func TestInvoiceServiceListPaginates(t *testing.T) {
	reader := &invoiceReaderStub{list: []models.Invoice{publishedRoomFeeInvoice()}, total: 41}
	svc := NewInvoiceService(reader, nil)

	invoices, pagination, err := svc.List(context.Background(), models.InvoiceFilter{Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 41, pagination.TotalCount)
}
