package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/quanghuy-dev/dorm-api/internal/dto"
	"github.com/quanghuy-dev/dorm-api/internal/models"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
	"github.com/quanghuy-dev/dorm-api/pkg/export"
)

// StatementFormatPDF and StatementFormatCSV are the supported statement formats.
const (
	StatementFormatPDF = "pdf"
	StatementFormatCSV = "csv"
)

type invoiceReader interface {
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	FindRoomFeeDetail(ctx context.Context, exec sqlx.ExtContext, invoiceID string) (*models.RoomFeeInvoice, error)
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error)
}

// Statement is a rendered invoice statement ready to stream.
type Statement struct {
	FileName    string
	ContentType string
	Content     []byte
}

// InvoiceService serves invoice listings and statement exports.
type InvoiceService struct {
	invoices invoiceReader
	pdf      *export.PDFExporter
	csv      *export.CSVExporter
	logger   *zap.Logger
}

// NewInvoiceService wires invoice dependencies.
func NewInvoiceService(invoices invoiceReader, logger *zap.Logger) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		invoices: invoices,
		pdf:      export.NewPDFExporter(),
		csv:      export.NewCSVExporter(),
		logger:   logger,
	}
}

// List returns invoices for manager screens.
func (s *InvoiceService) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, *models.Pagination, error) {
	invoices, total, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, total)
	return invoices, &pagination, nil
}

// FindByID returns an invoice by ID.
func (s *InvoiceService) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	return invoice, nil
}

// Detail returns an invoice with its ROOM_FEE satellite row when one exists.
func (s *InvoiceService) Detail(ctx context.Context, id string) (*dto.InvoiceDetailResponse, error) {
	invoice, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := &dto.InvoiceDetailResponse{Invoice: invoice}
	if invoice.Category == models.InvoiceRoomFee {
		detail, err := s.invoices.FindRoomFeeDetail(ctx, nil, invoice.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice detail")
		}
		result.RoomFee = detail
	}
	return result, nil
}

// Statement renders an invoice as a downloadable PDF or CSV document.
func (s *InvoiceService) Statement(ctx context.Context, id, format string) (*Statement, error) {
	invoice, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dataset := statementDataset(invoice)
	switch format {
	case StatementFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return &Statement{
			FileName:    fmt.Sprintf("invoice-%s.csv", invoice.InvoiceCode),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case StatementFormatPDF, "":
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Invoice %s", invoice.InvoiceCode))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return &Statement{
			FileName:    fmt.Sprintf("invoice-%s.pdf", invoice.InvoiceCode),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")
	}
}

func statementDataset(invoice *models.Invoice) export.Dataset {
	paidAt := ""
	if invoice.PaidAt != nil {
		paidAt = invoice.PaidAt.Format(time.RFC3339)
	}
	return export.Dataset{
		Headers: []string{"Code", "Category", "Status", "Amount", "Paid At", "Created At"},
		Rows: []map[string]string{{
			"Code":       invoice.InvoiceCode,
			"Category":   string(invoice.Category),
			"Status":     string(invoice.Status),
			"Amount":     strconv.FormatInt(invoice.TotalAmount, 10),
			"Paid At":    paidAt,
			"Created At": invoice.CreatedAt.Format(time.RFC3339),
		}},
	}
}
